package nodes

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design/pass"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var lowpassProto = patch.Prototype{
	Kind:        "lowpass",
	Description: "One-pole low pass",
	Inputs: []patch.Port{
		{Name: "in", Kind: patch.Audio},
		{Name: "ratio", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "ratio", Min: 0, Max: 1, Default: 0.5},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &onepole{lowpass: true}, nil
	},
}

var highpassProto = patch.Prototype{
	Kind:        "highpass",
	Description: "One-pole high pass",
	Inputs: []patch.Port{
		{Name: "in", Kind: patch.Audio},
		{Name: "ratio", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "ratio", Min: 0, Max: 1, Default: 0.5},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &onepole{}, nil
	},
}

// onepole keeps one sample of filter history across blocks.
type onepole struct {
	lowpass bool
	z       float64
}

func (f *onepole) Process(in, out []signal.Block, p patch.Params) error {
	ratio := p.Value("ratio", 0.5)
	z := f.z
	for i, s := range in[0] {
		r := clamp(ratio+in[1][i], 0, 1)
		z += (s - z) * r
		if f.lowpass {
			out[0][i] = z
		} else {
			out[0][i] = s - z
		}
	}
	f.z = z
	return nil
}

var biquadProto = patch.Prototype{
	Kind:        "biquad",
	Description: "Butterworth filter of configurable order",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Allocate:    allocateBiquad,
}

// allocateBiquad designs the filter at construction time. Cutoff and
// mode are config, not params: changing the design means replacing the
// node, the same way changing a port set does.
func allocateBiquad(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	freq := cfg.Float("cutoff", 1000)
	order := int(cfg.Float("order", 2))
	if freq <= 0 || freq >= float64(sampleRate)/2 {
		return nil, fmt.Errorf("cutoff %v out of range for sample rate %d", freq, sampleRate)
	}
	var coeffs []biquad.Coefficients
	switch mode := cfg.String("mode"); mode {
	case "", "lowpass":
		coeffs = pass.ButterworthLP(freq, order, float64(sampleRate))
	case "highpass":
		coeffs = pass.ButterworthHP(freq, order, float64(sampleRate))
	default:
		return nil, fmt.Errorf("unknown biquad mode %q", mode)
	}
	return &biquadNode{chain: biquad.NewChain(coeffs)}, nil
}

type biquadNode struct {
	chain *biquad.Chain
}

func (n *biquadNode) Process(in, out []signal.Block, p patch.Params) error {
	out[0].Copy(in[0])
	n.chain.ProcessBlock(out[0])
	return nil
}
