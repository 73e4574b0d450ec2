package nodes

import (
	"math"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

// Distortion modes.
const (
	modeHardClip = 0
	modeSoftClip = 1
)

var distortProto = patch.Prototype{
	Kind:        "distort",
	Description: "Clip a signal, hard or soft",
	Inputs: []patch.Port{
		{Name: "in", Kind: patch.Audio},
		{Name: "level", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "level", Min: 0, Max: 10, Default: 1},
		{Name: "mode", Min: 0, Max: 1, Default: modeSoftClip},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &distort{}, nil
	},
}

type distort struct{}

func (n *distort) Process(in, out []signal.Block, p patch.Params) error {
	level := p.Value("level", 1)
	mode := int(p.Value("mode", modeSoftClip))
	for i, s := range in[0] {
		s *= level + in[1][i]
		switch mode {
		case modeHardClip:
			s = clamp(s, -1, 1)
		default:
			s = math.Tanh(s)
		}
		out[0][i] = s
	}
	return nil
}

var overdriveProto = patch.Prototype{
	Kind:        "overdrive",
	Description: "Smooth arctangent overdrive",
	Inputs: []patch.Port{
		{Name: "in", Kind: patch.Audio},
		{Name: "boost", Kind: patch.Control},
		{Name: "drive", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "boost", Min: 0, Max: 30, Default: 1},
		{Name: "drive", Min: 0, Max: 1, Default: 0.5},
		{Name: "level", Min: 0, Max: 1, Default: 1},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &overdrive{}, nil
	},
}

type overdrive struct{}

func (n *overdrive) Process(in, out []signal.Block, p patch.Params) error {
	boost := p.Value("boost", 1)
	drive := p.Value("drive", 0.5)
	level := p.Value("level", 1)
	for i, s := range in[0] {
		b := s * (boost + in[1][i])
		shaped := (2 / math.Pi) * math.Atan(math.Pi/4*b)
		d := clamp(drive+in[2][i], 0, 1)
		out[0][i] = (d*shaped + (1-d)*s) * level
	}
	return nil
}

var chebyshevProto = patch.Prototype{
	Kind:        "chebyshev",
	Description: "Chebyshev polynomial waveshaper",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "second", Min: 0, Max: 1, Default: 0},
		{Name: "third", Min: 0, Max: 1, Default: 0},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &chebyshev{}, nil
	},
}

type chebyshev struct{}

func (n *chebyshev) Process(in, out []signal.Block, p patch.Params) error {
	second := p.Value("second", 0)
	third := p.Value("third", 0)
	for i, s := range in[0] {
		// T2 and T3 harmonics on top of the dry signal.
		h := s + second*(2*s*s-1) + third*(4*s*s*s-3*s)
		out[0][i] = math.Tanh(h)
	}
	return nil
}
