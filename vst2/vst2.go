//go:build vst2

// Package vst2 provides a node kind hosting a VST2 plugin. It needs
// cgo and a plugin binary, so it ships behind the vst2 build tag.
package vst2

import (
	"errors"

	"github.com/dudk/vst2"

	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

// Register adds the vst2 host kind to the registry.
func Register(r *patch.Registry) {
	r.Add(proto)
}

var proto = patch.Prototype{
	Kind:        "vst2",
	Description: "Host a VST2 effect plugin",
	Inputs:      []patch.Port{{Name: "in", Kind: patch.Audio}},
	Outputs:     []patch.Port{{Name: "out", Kind: patch.Audio}},
	Allocate:    allocate,
}

func allocate(sampleRate, blockSize int, cfg patch.Config) (patch.Node, error) {
	path := cfg.String("path")
	if path == "" {
		return nil, errors.New("vst2: path is required")
	}
	library, err := vst2.Open(path)
	if err != nil {
		return nil, err
	}
	plugin, err := library.Open()
	if err != nil {
		library.Close()
		return nil, err
	}
	plugin.SetBufferSize(blockSize)
	plugin.SetSampleRate(sampleRate)
	plugin.SetSpeakerArrangement(1)
	plugin.Resume()
	return &node{
		library: library,
		plugin:  plugin,
		buffer:  [][]float64{make([]float64, blockSize)},
	}, nil
}

type node struct {
	library *vst2.Library
	plugin  *vst2.Plugin
	buffer  [][]float64
}

func (n *node) Process(in, out []signal.Block, p patch.Params) error {
	copy(n.buffer[0], in[0])
	processed := n.plugin.Process(n.buffer)
	if len(processed) > 0 {
		out[0].Copy(processed[0])
	} else {
		out[0].Zero()
	}
	return nil
}

// Flush suspends the plugin and unloads the library.
func (n *node) Flush() error {
	n.plugin.Suspend()
	n.plugin.Close()
	n.library.Close()
	return nil
}
