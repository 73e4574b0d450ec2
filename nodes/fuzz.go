//go:build gpl

package nodes

import (
	"math"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

// The fuzz kind is a big-muff style shaper derived from GPL-licensed
// curves, so it only ships when built with the gpl tag.
func init() {
	prototypes = append(prototypes, fuzzProto)
}

var fuzzProto = patch.Prototype{
	Kind:        "fuzz",
	Description: "Big-muff style fuzz",
	Inputs: []patch.Port{
		{Name: "in", Kind: patch.Audio},
		{Name: "sustain", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "sustain", Min: 0, Max: 1, Default: 0.5},
		{Name: "level", Min: 0, Max: 1, Default: 0.5},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &fuzz{}, nil
	},
}

type fuzz struct{}

func (n *fuzz) Process(in, out []signal.Block, p patch.Params) error {
	sustain := p.Value("sustain", 0.5)
	level := p.Value("level", 0.5)
	for i, s := range in[0] {
		gain := 1 + 40*clamp(sustain+in[1][i], 0, 1)
		x := s * gain
		// asymmetric diode-clipper shape
		if x >= 0 {
			x = 1 - math.Exp(-x)
		} else {
			x = -1 + math.Exp(x*0.9)
		}
		out[0][i] = x * level
	}
	return nil
}
