package nodes

import (
	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var addProto = patch.Prototype{
	Kind:        "add",
	Description: "Sum two signals",
	Inputs: []patch.Port{
		{Name: "a", Kind: patch.Audio},
		{Name: "b", Kind: patch.Audio},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &add{}, nil
	},
}

type add struct{}

func (n *add) Process(in, out []signal.Block, p patch.Params) error {
	for i := range out[0] {
		out[0][i] = in[0][i] + in[1][i]
	}
	return nil
}

var multiplyProto = patch.Prototype{
	Kind:        "multiply",
	Description: "Multiply two signals, e.g. for ring modulation",
	Inputs: []patch.Port{
		{Name: "a", Kind: patch.Audio},
		{Name: "b", Kind: patch.Audio},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &multiply{}, nil
	},
}

type multiply struct{}

func (n *multiply) Process(in, out []signal.Block, p patch.Params) error {
	for i := range out[0] {
		out[0][i] = in[0][i] * in[1][i]
	}
	return nil
}

var mixProto = patch.Prototype{
	Kind:        "mix",
	Description: "Crossfade between two signals",
	Inputs: []patch.Port{
		{Name: "a", Kind: patch.Audio},
		{Name: "b", Kind: patch.Audio},
		{Name: "ratio", Kind: patch.Control},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "ratio", Min: 0, Max: 1, Default: 0.5},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &mix{}, nil
	},
}

type mix struct{}

func (n *mix) Process(in, out []signal.Block, p patch.Params) error {
	ratio := p.Value("ratio", 0.5)
	for i := range out[0] {
		r := clamp(ratio+in[2][i], 0, 1)
		out[0][i] = in[0][i]*(1-r) + in[1][i]*r
	}
	return nil
}
