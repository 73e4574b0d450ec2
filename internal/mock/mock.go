// Package mock provides node kinds to test the graph and the engine.
package mock

import (
	"github.com/dudk/patch"
	"github.com/dudk/patch/signal"
)

// Source emits a constant value on its output port and counts calls.
type Source struct {
	Value  float64
	Blocks int
}

// SourceProto wraps the source into a prototype for registration.
func (m *Source) SourceProto(kind string) patch.Prototype {
	return patch.Prototype{
		Kind:    kind,
		Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
		Allocate: func(int, int, patch.Config) (patch.Node, error) {
			return m, nil
		},
	}
}

func (m *Source) Process(in, out []signal.Block, p patch.Params) error {
	m.Blocks++
	for i := range out[0] {
		out[0][i] = m.Value
	}
	return nil
}

// Sink records every input block it receives.
type Sink struct {
	Captured []signal.Block
	Flushed  bool
	ErrFlush error
}

// SinkProto wraps the sink into a prototype for registration.
func (m *Sink) SinkProto(kind string) patch.Prototype {
	return patch.Prototype{
		Kind:   kind,
		Inputs: []patch.Port{{Name: "in", Kind: patch.Audio}},
		Allocate: func(int, int, patch.Config) (patch.Node, error) {
			return m, nil
		},
	}
}

func (m *Sink) Process(in, out []signal.Block, p patch.Params) error {
	captured := signal.Make(len(in[0]))
	captured.Copy(in[0])
	m.Captured = append(m.Captured, captured)
	return nil
}

// Flush records that the store released the sink.
func (m *Sink) Flush() error {
	m.Flushed = true
	return m.ErrFlush
}

// Last returns the most recently captured block, or nil.
func (m *Sink) Last() signal.Block {
	if len(m.Captured) == 0 {
		return nil
	}
	return m.Captured[len(m.Captured)-1]
}

// Faulty passes audio through until triggered, then returns the
// configured error or panics. Used to test fault isolation.
type Faulty struct {
	ErrProcess error
	Panic      bool
	FailAfter  int

	calls int
}

// FaultyProto wraps the node into a prototype for registration.
func (m *Faulty) FaultyProto(kind string) patch.Prototype {
	return patch.Prototype{
		Kind:    kind,
		Inputs:  []patch.Port{{Name: "in", Kind: patch.Audio}},
		Outputs: []patch.Port{{Name: "out", Kind: patch.Audio}},
		Allocate: func(int, int, patch.Config) (patch.Node, error) {
			return m, nil
		},
	}
}

func (m *Faulty) Process(in, out []signal.Block, p patch.Params) error {
	m.calls++
	if m.calls > m.FailAfter {
		if m.Panic {
			panic("mock node panic")
		}
		return m.ErrProcess
	}
	out[0].Copy(in[0])
	return nil
}
