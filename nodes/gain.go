package nodes

import (
	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var gainProto = patch.Prototype{
	Kind:        "gain",
	Description: "Adjust gain of a signal",
	Inputs: []patch.Port{
		{Name: "in", Kind: patch.Audio},
		{Name: "level", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "level", Min: 0, Max: 10, Default: 1},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &gain{}, nil
	},
}

type gain struct{}

func (g *gain) Process(in, out []signal.Block, p patch.Params) error {
	level := p.Value("level", 1)
	for i, s := range in[0] {
		out[0][i] = s * (level + in[1][i])
	}
	return nil
}
