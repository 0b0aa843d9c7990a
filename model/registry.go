package model

import (
	"sort"
	"sync"
)

// Registry maps graph labels and table names to entity types.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: map[string]*EntityType{}}
}

// Register adds or replaces the type under its full name.
func (r *Registry) Register(t *EntityType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.FullName()] = t
}

// Lookup finds a type by namespace and name.
func (r *Registry) Lookup(namespace, name string) (*EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[namespace+"."+name]
	return t, ok
}

// LookupLabel finds a type by its graph label.
func (r *Registry) LookupLabel(label string) (*EntityType, bool) {
	namespace, name, err := ParseLabel(label)
	if err != nil {
		return nil, false
	}
	return r.Lookup(namespace, name)
}

// Types returns the registered types sorted by full name.
func (r *Registry) Types() []*EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*EntityType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}
