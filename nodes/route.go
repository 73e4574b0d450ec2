package nodes

import (
	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

var muxProto = patch.Prototype{
	Kind:        "mux",
	Description: "Toggle between two input signals",
	Inputs: []patch.Port{
		{Name: "a", Kind: patch.Audio},
		{Name: "b", Kind: patch.Audio},
	},
	Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
	Params: []patch.ParamSpec{
		{Name: "select", Min: 0, Max: 1, Default: 0},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &mux{}, nil
	},
}

type mux struct{}

func (n *mux) Process(in, out []signal.Block, p patch.Params) error {
	if p.Value("select", 0) >= 0.5 {
		out[0].Copy(in[1])
	} else {
		out[0].Copy(in[0])
	}
	return nil
}

var demuxProto = patch.Prototype{
	Kind:        "demux",
	Description: "Toggle between two output signals",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs: []patch.Port{
		{Name: "a", Kind: patch.Audio},
		{Name: "b", Kind: patch.Audio},
	},
	Params: []patch.ParamSpec{
		{Name: "select", Min: 0, Max: 1, Default: 0},
	},
	Allocate: func(int, int, patch.Config) (patch.Node, error) {
		return &demux{}, nil
	},
}

type demux struct{}

func (n *demux) Process(in, out []signal.Block, p patch.Params) error {
	// the unselected side goes silent rather than holding stale samples
	out[0].Zero()
	out[1].Zero()
	if p.Value("select", 0) >= 0.5 {
		out[1].Copy(in[0])
	} else {
		out[0].Copy(in[0])
	}
	return nil
}
