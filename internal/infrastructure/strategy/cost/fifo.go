package cost

import (
	"context"
	"errors"
	"sort"

	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/shopspring/decimal"
)

// FIFOStrategy implements First-In-First-Out cost calculation: the oldest
// layers are consumed first.
type FIFOStrategy struct{}

// NewFIFOStrategy creates a new FIFO cost strategy
func NewFIFOStrategy() *FIFOStrategy {
	return &FIFOStrategy{}
}

// Name returns the strategy name
func (s *FIFOStrategy) Name() string {
	return "fifo"
}

// Method returns the costing method
func (s *FIFOStrategy) Method() strategy.CostMethod {
	return strategy.CostMethodFIFO
}

// CalculateCost consumes layers oldest-first until the requested quantity
// is covered. RemainingQty is non-zero when the layers run out.
func (s *FIFOStrategy) CalculateCost(
	ctx context.Context,
	costCtx strategy.CostContext,
	entries []strategy.StockEntry,
) (strategy.CostResult, error) {
	return consumeLayers(costCtx, entries, strategy.CostMethodFIFO, func(a, b strategy.StockEntry) bool {
		return a.EntryDate.Before(b.EntryDate)
	})
}

// CalculateAverageCost calculates the weighted average cost (for
// valuation reporting).
func (s *FIFOStrategy) CalculateAverageCost(
	ctx context.Context,
	entries []strategy.StockEntry,
) (decimal.Decimal, error) {
	return averageOverLayers(entries)
}

// consumeLayers walks the layers in the given order and prices the
// requested quantity against them.
func consumeLayers(
	costCtx strategy.CostContext,
	entries []strategy.StockEntry,
	method strategy.CostMethod,
	less func(a, b strategy.StockEntry) bool,
) (strategy.CostResult, error) {
	if len(entries) == 0 {
		return strategy.CostResult{}, errors.New("no stock entries provided")
	}

	sorted := make([]strategy.StockEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})

	remainingQty := costCtx.Quantity
	totalCost := decimal.Zero
	entriesUsed := make([]strategy.StockEntry, 0)

	for _, entry := range sorted {
		if remainingQty.IsZero() {
			break
		}
		usedQty := decimal.Min(remainingQty, entry.Quantity)
		totalCost = totalCost.Add(usedQty.Mul(entry.UnitCost))
		remainingQty = remainingQty.Sub(usedQty)
		entriesUsed = append(entriesUsed, entry)
	}

	usedQty := costCtx.Quantity.Sub(remainingQty)
	var unitCost decimal.Decimal
	if !usedQty.IsZero() {
		unitCost = totalCost.Div(usedQty)
	}

	return strategy.CostResult{
		UnitCost:     unitCost,
		TotalCost:    totalCost,
		Method:       method,
		EntriesUsed:  entriesUsed,
		RemainingQty: remainingQty,
	}, nil
}

func averageOverLayers(entries []strategy.StockEntry) (decimal.Decimal, error) {
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

var _ strategy.CostStrategy = (*FIFOStrategy)(nil)
