package cost

import (
	"context"

	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// LIFOStrategy implements Last-In-First-Out cost calculation: the newest
// layers are consumed first.
type LIFOStrategy struct{}

// NewLIFOStrategy creates a new LIFO cost strategy
func NewLIFOStrategy() *LIFOStrategy {
	return &LIFOStrategy{}
}

// Name returns the strategy name
func (s *LIFOStrategy) Name() string {
	return "lifo"
}

// Method returns the costing method
func (s *LIFOStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodLIFO
}

// CalculateCost consumes layers newest-first until the requested quantity
// is covered.
func (s *LIFOStrategy) CalculateCost(
	ctx context.Context,
	costCtx strategy.CostContext,
	entries []strategy.StockEntry,
) (strategy.CostResult, error) {
	return consumeLayers(costCtx, entries, strategy.CostMethodLIFO, func(a, b strategy.StockEntry) bool {
		return a.EntryDate.After(b.EntryDate)
	})
}

// CalculateAverageCost calculates the weighted average cost (for
// valuation reporting).
func (s *LIFOStrategy) CalculateAverageCost(
	ctx context.Context,
	entries []strategy.StockEntry,
) (decimal.Decimal, error) {
	return averageOverLayers(entries)
}

var _ strategy.CostStrategy = (*LIFOStrategy)(nil)

// StandardCostStrategy prices every movement at a fixed standard cost
// taken from the cost context, ignoring layer history.
type StandardCostStrategy struct{}

// NewStandardCostStrategy creates a new standard cost strategy
func NewStandardCostStrategy() *StandardCostStrategy {
	return &StandardCostStrategy{}
}

// Name returns the strategy name
func (s *StandardCostStrategy) Name() string {
	return "standard"
}

// Method returns the costing method
func (s *StandardCostStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodStandard
}

// CalculateCost prices the quantity at the configured standard cost.
func (s *StandardCostStrategy) CalculateCost(
	ctx context.Context,
	costCtx strategy.CostContext,
	entries []strategy.StockEntry,
) (strategy.CostResult, error) {
	return strategy.CostResult{
		UnitCost:     costCtx.StandardCost,
		TotalCost:    costCtx.StandardCost.Mul(costCtx.Quantity),
		Method:       strategy.CostMethodStandard,
		EntriesUsed:  nil,
		RemainingQty: decimal.Zero,
	}, nil
}

// CalculateAverageCost returns the standard cost when layers are empty,
// the blended average otherwise.
func (s *StandardCostStrategy) CalculateAverageCost(
	ctx context.Context,
	entries []strategy.StockEntry,
) (decimal.Decimal, error) {
	if len(entries) == 0 {
		return decimal.Zero, nil
	}
	return averageOverLayers(entries)
}

var _ strategy.CostStrategy = (*StandardCostStrategy)(nil)
