package nodes

import (
	"math"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var envelopeProto = patch.Prototype{
	Kind:        "envelope",
	Description: "Peak envelope follower, control-rate output",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Control}},
	Params: []patch.ParamSpec{
		{Name: "attack", Min: 0, Max: 1000, Default: 10},
		{Name: "release", Min: 0, Max: 1000, Default: 100},
	},
	Allocate: func(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
		return &envelope{sampleRate: float64(sampleRate)}, nil
	},
}

// envelope keeps follower state across blocks.
type envelope struct {
	sampleRate float64
	env        float64
}

func (n *envelope) Process(in, out []signal.Block, p patch.Params) error {
	attack := coeff(p.Value("attack", 10), n.sampleRate)
	release := coeff(p.Value("release", 100), n.sampleRate)
	env := n.env
	for i, s := range in[0] {
		level := math.Abs(s)
		if level > env {
			env = level + (env-level)*attack
		} else {
			env = level + (env-level)*release
		}
		out[0][i] = env
	}
	n.env = env
	return nil
}

// coeff converts a time constant in milliseconds to a one-pole
// smoothing coefficient.
func coeff(ms, sampleRate float64) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1 / (ms / 1000 * sampleRate))
}
