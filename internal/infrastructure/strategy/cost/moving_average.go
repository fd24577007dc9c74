package cost

import (
	"context"
	"errors"

	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// MovingAverageStrategy implements weighted moving average cost
// calculation. This is the default cost method.
type MovingAverageStrategy struct{}

// NewMovingAverageStrategy creates a new moving average cost strategy
func NewMovingAverageStrategy() *MovingAverageStrategy {
	return &MovingAverageStrategy{}
}

// Name returns the strategy name
func (s *MovingAverageStrategy) Name() string {
	return "moving_average"
}

// Method returns the costing method
func (s *MovingAverageStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodMovingAverage
}

// CalculateCost prices the consumption at the blended average of all
// open layers.
func (s *MovingAverageStrategy) CalculateCost(
	ctx context.Context,
	costCtx strategy.CostContext,
	entries []strategy.StockEntry,
) (strategy.CostResult, error) {
	if len(entries) == 0 {
		return strategy.CostResult{}, errors.New("no stock entries provided")
	}

	avgCost, err := s.CalculateAverageCost(ctx, entries)
	if err != nil {
		return strategy.CostResult{}, err
	}

	return strategy.CostResult{
		UnitCost:     avgCost,
		TotalCost:    avgCost.Mul(costCtx.Quantity),
		Method:       strategy.CostMethodMovingAverage,
		EntriesUsed:  entries,
		RemainingQty: decimal.Zero,
	}, nil
}

// CalculateAverageCost calculates the weighted average cost
func (s *MovingAverageStrategy) CalculateAverageCost(
	ctx context.Context,
	entries []strategy.StockEntry,
) (decimal.Decimal, error) {
	if len(entries) == 0 {
		return decimal.Zero, errors.New("no stock entries provided")
	}

	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for _, entry := range entries {
		totalQty = totalQty.Add(entry.Quantity)
		totalCost = totalCost.Add(entry.TotalCost)
	}

	if totalQty.IsZero() {
		return decimal.Zero, errors.New("total quantity is zero")
	}
	return totalCost.Div(totalQty), nil
}

var _ strategy.CostStrategy = (*MovingAverageStrategy)(nil)
