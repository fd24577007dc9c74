package strategy

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostMethod is the rule for deriving unit cost after a quantity change.
type CostMethod string

const (
	CostMethodMovingAverage CostMethod = "moving_average"
	CostMethodFIFO          CostMethod = "fifo"
	CostMethodLIFO          CostMethod = "lifo"
	CostMethodStandard      CostMethod = "standard"
)

// String returns the string representation of the cost method
func (m CostMethod) String() string {
	return string(m)
}

// IsValid returns true if the cost method is known
func (m CostMethod) IsValid() bool {
	switch m {
	case CostMethodMovingAverage, CostMethodFIFO, CostMethodLIFO, CostMethodStandard:
		return true
	}
	return false
}

// StockEntry is one cost layer available for consumption: a received lot
// that still carries quantity.
type StockEntry struct {
	ID        uuid.UUID
	ItemID    uuid.UUID
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	TotalCost decimal.Decimal
	EntryDate time.Time
	Reference string
}

// CostContext provides context for one cost calculation.
type CostContext struct {
	TenantID   uuid.UUID
	ItemID     uuid.UUID
	LocationID uuid.UUID
	Quantity   decimal.Decimal
	Date       time.Time
	// StandardCost is consulted only by the standard-cost strategy.
	StandardCost decimal.Decimal
}

// CostResult contains the outcome of a cost calculation.
type CostResult struct {
	UnitCost     decimal.Decimal
	TotalCost    decimal.Decimal
	Method       CostMethod
	EntriesUsed  []StockEntry
	RemainingQty decimal.Decimal
}

// CostStrategy derives issue costs and average valuations from the open
// cost layers of an item/location pair.
type CostStrategy interface {
	// Name returns the unique name of the strategy
	Name() string
	// Method returns the costing method used by this strategy
	Method() CostMethod
	// CalculateCost prices the consumption of costCtx.Quantity against the
	// available layers.
	CalculateCost(ctx context.Context, costCtx CostContext, entries []StockEntry) (CostResult, error)
	// CalculateAverageCost derives the average unit cost over all layers.
	CalculateAverageCost(ctx context.Context, entries []StockEntry) (decimal.Decimal, error)
}
