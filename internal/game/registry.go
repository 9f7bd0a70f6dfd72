package game

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds all known rulesets by name.
type Registry struct {
	mu       sync.RWMutex
	rulesets map[string]Ruleset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{rulesets: make(map[string]Ruleset)}
}

// DefaultRegistry returns a registry holding the built-in rulesets.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Standard())
	r.Register(Skirmish())
	r.Register(Siege())
	return r
}

// Register adds a ruleset. Panics on duplicate names or invalid rulesets.
func (r *Registry) Register(rs Ruleset) {
	if err := r.Add(rs); err != nil {
		panic(err)
	}
}

// Add validates and adds a ruleset, failing on duplicates.
func (r *Registry) Add(rs Ruleset) error {
	if err := rs.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rulesets[rs.Name]; exists {
		return fmt.Errorf("ruleset %q already registered", rs.Name)
	}
	r.rulesets[rs.Name] = rs
	return nil
}

// Get returns a ruleset by name.
func (r *Registry) Get(name string) (Ruleset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.rulesets[name]
	return rs, ok
}

// List returns all registered rulesets ordered by name.
func (r *Registry) List() []Ruleset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Ruleset, 0, len(r.rulesets))
	for _, rs := range r.rulesets {
		out = append(out, rs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
