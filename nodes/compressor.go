package nodes

import (
	"github.com/cwbudde/algo-dsp/dsp/effects/dynamics"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var compressorProto = patch.Prototype{
	Kind:        "compressor",
	Description: "Soft-knee compressor",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "threshold", Min: -60, Max: 0, Default: -20},
		{Name: "ratio", Min: 1, Max: 20, Default: 4},
		{Name: "attack", Min: 0.1, Max: 1000, Default: 10},
		{Name: "release", Min: 1, Max: 5000, Default: 100},
	},
	Allocate: allocateCompressor,
}

func allocateCompressor(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	c, err := dynamics.NewCompressor(float64(sampleRate))
	if err != nil {
		return nil, err
	}
	return &compressorNode{comp: c}, nil
}

type compressorNode struct {
	comp      *dynamics.Compressor
	threshold float64
	ratio     float64
	attack    float64
	release   float64
}

func (n *compressorNode) Process(in, out []signal.Block, p patch.Params) error {
	if v := p.Value("threshold", -20); v != n.threshold {
		if err := n.comp.SetThreshold(v); err != nil {
			return err
		}
		n.threshold = v
	}
	if v := p.Value("ratio", 4); v != n.ratio {
		if err := n.comp.SetRatio(v); err != nil {
			return err
		}
		n.ratio = v
	}
	if v := p.Value("attack", 10); v != n.attack {
		if err := n.comp.SetAttack(v); err != nil {
			return err
		}
		n.attack = v
	}
	if v := p.Value("release", 100); v != n.release {
		if err := n.comp.SetRelease(v); err != nil {
			return err
		}
		n.release = v
	}
	for i, s := range in[0] {
		out[0][i] = n.comp.ProcessSample(s)
	}
	return nil
}
