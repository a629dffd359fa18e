package backtest

import (
	"context"
	"sort"

	"tradebench/internal/domain"
)

// Strategy is the uniform contract every signal generator implements. A
// strategy owns its indicator memory; Init resets it at the start of a run.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Init performs one-time setup and resets any indicator memory carried
	// over from a previous run.
	Init(ctx context.Context) error

	// Evaluate inspects the portfolio and the current bar and returns a
	// signal. Returning an error makes the simulator treat this (strategy,
	// bar) pair as a no-op; the run continues.
	Evaluate(p *Portfolio, bar domain.Bar) (domain.Signal, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// All returns the registered strategies ordered by name.
func (r *Registry) All() []Strategy {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		out = append(out, r.strategies[name])
	}
	return out
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
