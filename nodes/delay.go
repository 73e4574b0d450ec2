package nodes

import (
	"github.com/cwbudde/algo-dsp/dsp/delay"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

const maxDelaySeconds = 2

var delayProto = patch.Prototype{
	Kind:        "delay",
	Description: "Delay line with feedback; closes feedback loops",
	Inputs: []patch.Port{
		{Name: "in", Kind: patch.Audio},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "time", Min: 0, Max: maxDelaySeconds, Default: 0.25},
		{Name: "feedback", Min: 0, Max: 0.95, Default: 0},
		{Name: "mix", Min: 0, Max: 1, Default: 0.5},
	},
	// The delayed output depends only on prior input, so this kind may
	// close a feedback loop in the graph. To keep that true the delay
	// never drops below one block.
	DelayBreaking: true,
	Allocate:      allocateDelay,
}

func allocateDelay(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	line, err := delay.New(maxDelaySeconds * sampleRate)
	if err != nil {
		return nil, err
	}
	return &delayNode{
		line:       line,
		sampleRate: float64(sampleRate),
		minDelay:   float64(blockSize),
	}, nil
}

type delayNode struct {
	line       *delay.Line
	sampleRate float64
	minDelay   float64
}

func (n *delayNode) Process(in, out []signal.Block, p patch.Params) error {
	samples := p.Value("time", 0.25) * n.sampleRate
	if samples < n.minDelay {
		samples = n.minDelay
	}
	if max := float64(n.line.Len() - 1); samples > max {
		samples = max
	}
	feedback := p.Value("feedback", 0)
	mix := p.Value("mix", 0.5)
	for i, s := range in[0] {
		d := n.line.ReadFractional(samples)
		out[0][i] = s*(1-mix) + d*mix
		n.line.Write(s + d*feedback)
	}
	return nil
}
