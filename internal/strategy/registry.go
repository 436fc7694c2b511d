package strategy

import (
	"context"
	"fmt"
	"sync"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Registry holds the runner for every strategy type and resolves live
// parameters for the dispatcher and executor.
type Registry struct {
	mu      sync.RWMutex
	runners map[domain.StrategyType]*Runner
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[domain.StrategyType]*Runner)}
}

// Register adds a runner. Registering the same strategy twice is a
// programming error.
func (r *Registry) Register(runner *Runner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runners[runner.strategy]; ok {
		return fmt.Errorf("registry: strategy %s: %w", runner.strategy, domain.ErrAlreadyExists)
	}
	r.runners[runner.strategy] = runner
	return nil
}

// Get returns the runner for a strategy.
func (r *Registry) Get(strategy domain.StrategyType) (*Runner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[strategy]
	if !ok {
		return nil, fmt.Errorf("registry: strategy %s: %w", strategy, domain.ErrNotFound)
	}
	return runner, nil
}

// Params resolves the live parameters for a strategy; zero value for
// unknown strategies. Passed as a function value to the dispatcher and
// executor so hot reloads propagate.
func (r *Registry) Params(strategy domain.StrategyType) domain.StrategyParams {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runner, ok := r.runners[strategy]
	if !ok {
		return domain.StrategyParams{}
	}
	return runner.Params()
}

// List returns every registered runner.
func (r *Registry) List() []*Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Runner, 0, len(r.runners))
	for _, runner := range r.runners {
		out = append(out, runner)
	}
	return out
}

// StopAll stops every running strategy, collecting errors.
func (r *Registry) StopAll(ctx context.Context) {
	for _, runner := range r.List() {
		if runner.Running() {
			_ = runner.Stop(ctx)
		}
	}
}
