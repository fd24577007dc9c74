package cost

import (
	"fmt"

	"github.com/finbooks/backend/internal/domain/shared/strategy"
)

// Registry resolves cost strategies by method name. The registry is
// immutable after construction; services hold one instance for the
// process lifetime.
type Registry struct {
	strategies map[strategy.CostMethod]strategy.CostStrategy
}

// NewRegistry creates a registry with all built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[strategy.CostMethod]strategy.CostStrategy)}
	for _, s := range []strategy.CostStrategy{
		NewMovingAverageStrategy(),
		NewFIFOStrategy(),
		NewLIFOStrategy(),
		NewStandardCostStrategy(),
	} {
		r.strategies[s.Method()] = s
	}
	return r
}

// Get returns the strategy for the method, or an error for unknown ones.
func (r *Registry) Get(method strategy.CostMethod) (strategy.CostStrategy, error) {
	s, ok := r.strategies[method]
	if !ok {
		return nil, fmt.Errorf("unknown cost method: %s", method)
	}
	return s, nil
}

// Default returns the moving-average strategy.
func (r *Registry) Default() strategy.CostStrategy {
	return r.strategies[strategy.CostMethodMovingAverage]
}
