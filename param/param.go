/*
Package param provides live-swappable parameter snapshots per node.

Writes come from the control plane and are published with an atomic
pointer swap: the audio thread always observes either the old or the new
complete bundle, never a partial write, and reading never blocks or
allocates.
*/
package param

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dudk/patch"
)

var (
	// ErrUnknownNode is returned when no cell is bound for the node.
	ErrUnknownNode = errors.New("unknown node")
	// ErrUnknownParam is returned for a parameter the kind does not declare.
	ErrUnknownParam = errors.New("unknown parameter")
	// ErrOutOfRange is returned for a value outside the declared range.
	ErrOutOfRange = errors.New("parameter out of range")
)

// Cell holds the current parameter snapshot of one node. Cells are bound
// once per node and shared by reference with the execution program, so
// the audio thread reads parameters without any map lookup.
type Cell struct {
	specs []patch.ParamSpec
	// serializes writers so concurrent merges cannot lose each other;
	// readers only load the pointer and never take it.
	m   sync.Mutex
	ptr atomic.Pointer[patch.Params]
}

// Load returns the current snapshot.
func (c *Cell) Load() patch.Params {
	return *c.ptr.Load()
}

// Store holds parameter cells for all nodes of a graph.
type Store struct {
	m     sync.RWMutex
	cells map[string]*Cell
}

// NewStore returns an empty parameter store.
func NewStore() *Store {
	return &Store{cells: make(map[string]*Cell)}
}

// Bind creates a cell for the node with kind defaults applied. Binding
// an already bound node replaces its cell.
func (s *Store) Bind(id string, specs []patch.ParamSpec) *Cell {
	c := &Cell{specs: specs}
	params := make(patch.Params, len(specs))
	for _, spec := range specs {
		params[spec.Name] = spec.Default
	}
	c.ptr.Store(&params)

	s.m.Lock()
	s.cells[id] = c
	s.m.Unlock()
	return c
}

// Drop removes the node's cell. An in-flight program still holding the
// cell keeps reading the last snapshot until it is recompiled away.
func (s *Store) Drop(id string) {
	s.m.Lock()
	delete(s.cells, id)
	s.m.Unlock()
}

// Cell returns the cell bound for the node.
func (s *Store) Cell(id string) (*Cell, error) {
	s.m.RLock()
	c, ok := s.cells[id]
	s.m.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownNode, id)
	}
	return c, nil
}

// Get returns the node's current parameter snapshot.
func (s *Store) Get(id string) (patch.Params, error) {
	c, err := s.Cell(id)
	if err != nil {
		return nil, err
	}
	return c.Load(), nil
}

// Set validates values against the kind's parameter specs, merges them
// onto a copy of the current snapshot and publishes the copy. On
// validation failure the current snapshot is left untouched.
func (s *Store) Set(id string, values map[string]float64) error {
	c, err := s.Cell(id)
	if err != nil {
		return err
	}
	for name, value := range values {
		spec, ok := findSpec(c.specs, name)
		if !ok {
			return fmt.Errorf("%w: %q for node %v", ErrUnknownParam, name, id)
		}
		if value < spec.Min || value > spec.Max {
			return fmt.Errorf("%w: %q=%v not in [%v, %v]", ErrOutOfRange, name, value, spec.Min, spec.Max)
		}
	}

	c.m.Lock()
	defer c.m.Unlock()
	current := c.Load()
	next := make(patch.Params, len(current))
	for name, value := range current {
		next[name] = value
	}
	for name, value := range values {
		next[name] = value
	}
	c.ptr.Store(&next)
	return nil
}

func findSpec(specs []patch.ParamSpec, name string) (patch.ParamSpec, bool) {
	for _, spec := range specs {
		if spec.Name == name {
			return spec, true
		}
	}
	return patch.ParamSpec{}, false
}
