package patch

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned when a kind tag is not registered.
var ErrUnknownKind = errors.New("unknown node kind")

// Registry holds node prototypes mapped to their kind tags. It has no
// runtime state beyond construction and is safe for concurrent use.
type Registry struct {
	m          sync.RWMutex
	prototypes map[string]Prototype
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		prototypes: make(map[string]Prototype),
	}
}

// Add registers a prototype. Registering the same kind twice panics:
// kind tags are wired at startup and a duplicate is a programmer error.
func (r *Registry) Add(p Prototype) {
	r.m.Lock()
	defer r.m.Unlock()
	if _, ok := r.prototypes[p.Kind]; ok {
		panic(fmt.Sprintf("patch: kind %q registered twice", p.Kind))
	}
	r.prototypes[p.Kind] = p
}

// Get returns the prototype for provided kind tag.
func (r *Registry) Get(kind string) (Prototype, error) {
	r.m.RLock()
	defer r.m.RUnlock()
	p, ok := r.prototypes[kind]
	if !ok {
		return Prototype{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return p, nil
}

// Kinds returns sorted kind tags of all registered prototypes.
func (r *Registry) Kinds() []string {
	r.m.RLock()
	defer r.m.RUnlock()
	kinds := make([]string, 0, len(r.prototypes))
	for kind := range r.prototypes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
