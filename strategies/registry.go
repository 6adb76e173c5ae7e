// Package strategies ships the built-in signal generators and a
// registry for looking them up by name.
package strategies

import (
	"sort"

	"backsim/internal/engine"
)

// Registry holds a named collection of strategies for lookup and
// enumeration.
type Registry struct {
	strategies map[string]engine.Strategy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]engine.Strategy)}
}

// Register adds a strategy, keyed by its Name().
func (r *Registry) Register(s engine.Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name.
func (r *Registry) Get(name string) (engine.Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns the registered strategy names, sorted.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry populated with every built-in strategy
// under its stock parameters.
func Default() *Registry {
	r := NewRegistry()
	r.Register(NewMomentumBreakout())
	r.Register(NewMeanReversion())
	r.Register(NewEMACross())
	r.Register(NewStochRSI())
	r.Register(NewVWAPBounce())
	return r
}
