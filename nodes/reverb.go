package nodes

import (
	"github.com/cwbudde/algo-dsp/dsp/effects/reverb"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var reverbProto = patch.Prototype{
	Kind:        "reverb",
	Description: "Feedback delay network reverb",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "rt60", Min: 0.1, Max: 10, Default: 1.5},
		{Name: "wet", Min: 0, Max: 1, Default: 0.3},
	},
	Allocate: allocateReverb,
}

func allocateReverb(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	fdn, err := reverb.NewFDNReverb(float64(sampleRate))
	if err != nil {
		return nil, err
	}
	return &reverbNode{fdn: fdn}, nil
}

// reverbNode tracks applied parameter values: the setters recompute
// feedback gains, so they run only when a value actually changed.
type reverbNode struct {
	fdn  *reverb.FDNReverb
	rt60 float64
	wet  float64
}

func (n *reverbNode) Process(in, out []signal.Block, p patch.Params) error {
	if rt60 := p.Value("rt60", 1.5); rt60 != n.rt60 {
		if err := n.fdn.SetRT60(rt60); err != nil {
			return err
		}
		n.rt60 = rt60
	}
	if wet := p.Value("wet", 0.3); wet != n.wet {
		if err := n.fdn.SetWet(wet); err != nil {
			return err
		}
		if err := n.fdn.SetDry(1 - wet); err != nil {
			return err
		}
		n.wet = wet
	}
	out[0].Copy(in[0])
	n.fdn.ProcessInPlace(out[0])
	return nil
}
