package cost

import (
	"context"
	"testing"
	"time"

	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layer(qty, unitCost string, at time.Time) strategy.StockEntry {
	q := decimal.RequireFromString(qty)
	c := decimal.RequireFromString(unitCost)
	return strategy.StockEntry{
		ID:        uuid.New(),
		ItemID:    uuid.New(),
		Quantity:  q,
		UnitCost:  c,
		TotalCost: q.Mul(c),
		EntryDate: at,
	}
}

func TestMovingAverageStrategy_CalculateAverageCost(t *testing.T) {
	s := NewMovingAverageStrategy()
	ctx := context.Background()
	base := time.Now()

	tests := []struct {
		name        string
		entries     []strategy.StockEntry
		expected    string
		expectError bool
	}{
		{
			name:        "empty entries",
			entries:     nil,
			expectError: true,
		},
		{
			name:     "single layer",
			entries:  []strategy.StockEntry{layer("100", "10.00", base)},
			expected: "10.00",
		},
		{
			name: "weighted blend",
			entries: []strategy.StockEntry{
				layer("10", "5.00", base),
				layer("10", "7.00", base.Add(time.Hour)),
			},
			expected: "6.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CalculateAverageCost(ctx, tt.entries)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.expected).Equal(got), "got %s", got)
		})
	}
}

func TestFIFOStrategy_ConsumesOldestFirst(t *testing.T) {
	s := NewFIFOStrategy()
	base := time.Now()
	entries := []strategy.StockEntry{
		layer("10", "7.00", base.Add(time.Hour)), // newer, deliberately first in slice
		layer("10", "5.00", base),
	}

	res, err := s.CalculateCost(context.Background(), strategy.CostContext{
		Quantity: decimal.NewFromInt(15),
	}, entries)
	require.NoError(t, err)

	// 10 @ 5.00 + 5 @ 7.00 = 85.00
	assert.True(t, decimal.RequireFromString("85.00").Equal(res.TotalCost), "total = %s", res.TotalCost)
	assert.True(t, res.RemainingQty.IsZero())
	assert.Len(t, res.EntriesUsed, 2)
}

func TestFIFOStrategy_ShortLayers(t *testing.T) {
	s := NewFIFOStrategy()
	entries := []strategy.StockEntry{layer("5", "5.00", time.Now())}

	res, err := s.CalculateCost(context.Background(), strategy.CostContext{
		Quantity: decimal.NewFromInt(8),
	}, entries)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(3).Equal(res.RemainingQty))
	assert.True(t, decimal.RequireFromString("25.00").Equal(res.TotalCost))
}

func TestLIFOStrategy_ConsumesNewestFirst(t *testing.T) {
	s := NewLIFOStrategy()
	base := time.Now()
	entries := []strategy.StockEntry{
		layer("10", "5.00", base),
		layer("10", "7.00", base.Add(time.Hour)),
	}

	res, err := s.CalculateCost(context.Background(), strategy.CostContext{
		Quantity: decimal.NewFromInt(15),
	}, entries)
	require.NoError(t, err)

	// 10 @ 7.00 + 5 @ 5.00 = 95.00
	assert.True(t, decimal.RequireFromString("95.00").Equal(res.TotalCost), "total = %s", res.TotalCost)
}

func TestStandardCostStrategy_UsesContextCost(t *testing.T) {
	s := NewStandardCostStrategy()

	res, err := s.CalculateCost(context.Background(), strategy.CostContext{
		Quantity:     decimal.NewFromInt(4),
		StandardCost: decimal.RequireFromString("2.50"),
	}, nil)
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("10.00").Equal(res.TotalCost))
	assert.True(t, decimal.RequireFromString("2.50").Equal(res.UnitCost))
}

func TestRegistry_ResolvesAllMethods(t *testing.T) {
	r := NewRegistry()

	for _, m := range []strategy.CostMethod{
		strategy.CostMethodMovingAverage,
		strategy.CostMethodFIFO,
		strategy.CostMethodLIFO,
		strategy.CostMethodStandard,
	} {
		s, err := r.Get(m)
		require.NoError(t, err)
		assert.Equal(t, m, s.Method())
	}

	_, err := r.Get(strategy.CostMethod("bogus"))
	assert.Error(t, err)

	assert.Equal(t, strategy.CostMethodMovingAverage, r.Default().Method())
}
