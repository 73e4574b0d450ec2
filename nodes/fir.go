package nodes

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/filter/fir"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var firProto = patch.Prototype{
	Kind:        "fir",
	Description: "Convolve the signal with a configured impulse response",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Allocate:    allocateFir,
}

// allocateFir builds the filter at construction time. Taps are config,
// not params: replacing the impulse response means replacing the node.
func allocateFir(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	taps := cfg.Floats("taps")
	if len(taps) == 0 {
		taps = []float64{1}
	}
	switch mode := cfg.String("mode"); mode {
	case "average":
		scale := 1 / float64(len(taps))
		scaled := make([]float64, len(taps))
		for i, tap := range taps {
			scaled[i] = tap * scale
		}
		taps = scaled
	case "", "balanced":
	default:
		return nil, fmt.Errorf("unknown fir mode %q", mode)
	}
	return &firNode{filter: fir.New(taps)}, nil
}

type firNode struct {
	filter *fir.Filter
}

func (n *firNode) Process(in, out []signal.Block, p patch.Params) error {
	n.filter.ProcessBlockTo(out[0], in[0])
	return nil
}
