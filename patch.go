package patch

import (
	"github.com/dudk/patch/signal"
)

// PortKind is a signal kind carried by a port.
type PortKind int

const (
	// Audio ports carry sample blocks.
	Audio PortKind = iota
	// Control ports carry parameter-rate blocks.
	Control
)

// String returns human-readable kind name.
func (k PortKind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Control:
		return "control"
	}
	return "unknown"
}

// Port is a typed connection point on a node. Ports are declared by the
// node prototype and fixed for the node lifetime. Port identity within a
// node is its index in the prototype's input or output list.
type Port struct {
	Name string
	Kind PortKind
}

// Params is an immutable value bundle for one node. It is replaced
// wholesale on update and never mutated in place, so reading it from the
// audio thread requires no synchronisation beyond the pointer load.
type Params map[string]float64

// Value returns named parameter value or fallback if parameter is not
// present in this bundle.
func (p Params) Value(name string, fallback float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return fallback
}

// ParamSpec declares a single parameter of a node kind: its name, valid
// range and default. Parameter writes are validated against it.
type ParamSpec struct {
	Name    string
	Min     float64
	Max     float64
	Default float64
}

// Config carries construction-time values for a node instance, e.g. a
// file path for a sample player or filter order. It is opaque to the
// graph and round-trips through presets.
type Config map[string]interface{}

// String returns a string config value.
func (c Config) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Float returns a numeric config value or fallback.
func (c Config) Float(key string, fallback float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

// Floats returns a numeric list config value. Non-numeric elements are
// skipped.
func (c Config) Floats(key string) []float64 {
	list, ok := c[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(list))
	for _, v := range list {
		switch v := v.(type) {
		case float64:
			out = append(out, v)
		case int:
			out = append(out, float64(v))
		}
	}
	return out
}

// Node processes one block of samples per port. Process is called on the
// real-time thread with one input block per declared input port and one
// output block per declared output port. Implementations must not
// allocate, block or retain the passed slices; per-instance state
// (filter history, delay contents) is allowed and persists across
// blocks. A returned error marks the node faulted until it is explicitly
// reset.
type Node interface {
	Process(in, out []signal.Block, p Params) error
}

// Flusher is an optional node interface for kinds that hold external
// resources, e.g. an encoder writing to a file. Flush runs on the
// control plane when the node is removed or the graph is closed.
type Flusher interface {
	Flush() error
}

// AllocatorFunc constructs a node instance for negotiated sample rate
// and block size. It runs on the control plane and may block and
// allocate freely.
type AllocatorFunc func(sampleRate, blockSize int, cfg Config) (Node, error)

// Prototype describes a node kind: its ports, parameters and allocator.
// Dispatch over kinds is data-driven through the registry rather than a
// type hierarchy, so optional kinds can be registered behind build tags.
type Prototype struct {
	Kind        string
	Description string
	Inputs      []Port
	Outputs     []Port
	Params      []ParamSpec
	// DelayBreaking marks kinds whose current-block output depends only
	// on prior-block input. Such nodes may close feedback loops.
	DelayBreaking bool
	Allocate      AllocatorFunc
}

// DefaultParams returns the parameter bundle with all declared defaults.
func (p Prototype) DefaultParams() Params {
	params := make(Params, len(p.Params))
	for _, spec := range p.Params {
		params[spec.Name] = spec.Default
	}
	return params
}
