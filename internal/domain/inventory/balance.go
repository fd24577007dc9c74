package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// costScale is the precision kept for the moving average unit cost.
const costScale = 4

// InventoryBalance is the derived, cacheable aggregate for one
// item/location pair.
// Invariant: QuantityAvailable = QuantityOnHand - QuantityAllocated -
// QuantityReserved, and AverageCost is recomputed on every
// quantity-increasing transaction.
type InventoryBalance struct {
	ItemID     uuid.UUID `json:"item_id"`
	LocationID uuid.UUID `json:"location_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	SKU        string    `json:"sku"`
	ItemName   string    `json:"item_name"`
	Category   string    `json:"category"`

	QuantityOnHand    decimal.Decimal `json:"quantity_on_hand"`
	QuantityAllocated decimal.Decimal `json:"quantity_allocated"`
	QuantityReserved  decimal.Decimal `json:"quantity_reserved"`
	QuantityAvailable decimal.Decimal `json:"quantity_available"`

	AverageCost decimal.Decimal `json:"average_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`

	LastTransactionDate *time.Time `json:"last_transaction_date,omitempty"`
	ComputedAt          time.Time  `json:"computed_at"`
}

// NewInventoryBalance returns an empty balance for the item/location pair.
func NewInventoryBalance(meta *ItemMetadata, locationID uuid.UUID) *InventoryBalance {
	return &InventoryBalance{
		ItemID:            meta.ID,
		LocationID:        locationID,
		TenantID:          meta.TenantID,
		SKU:               meta.SKU,
		ItemName:          meta.Name,
		Category:          meta.Category,
		QuantityOnHand:    decimal.Zero,
		QuantityAllocated: decimal.Zero,
		QuantityReserved:  decimal.Zero,
		QuantityAvailable: decimal.Zero,
		AverageCost:       decimal.Zero,
		TotalValue:        decimal.Zero,
		ComputedAt:        time.Now(),
	}
}

// WeightedAverageCost combines an existing position with an incoming lot:
// (oldCost*oldQty + newCost*newQty) / (oldQty + newQty). A non-positive
// resulting quantity yields cost zero instead of dividing by zero or going
// negative.
func WeightedAverageCost(oldQty, oldCost, newQty, newCost decimal.Decimal) decimal.Decimal {
	totalQty := oldQty.Add(newQty)
	if totalQty.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	totalValue := oldQty.Mul(oldCost).Add(newQty.Mul(newCost))
	return totalValue.Div(totalQty).Round(costScale)
}

// Apply folds one movement into the balance. Movements are applied in
// posting order; only quantity-increasing movements touch the average
// cost.
func (b *InventoryBalance) Apply(tx *InventoryTransaction) {
	switch {
	case tx.Type.IncreasesQuantity():
		b.AverageCost = WeightedAverageCost(b.QuantityOnHand, b.AverageCost, tx.Quantity, tx.UnitCost)
		b.QuantityOnHand = b.QuantityOnHand.Add(tx.Quantity)
	case tx.Type.DecreasesQuantity():
		// Issues leave the average cost untouched; an emptied position
		// resets it so the next receipt starts a fresh average.
		b.QuantityOnHand = b.QuantityOnHand.Sub(tx.Quantity)
		if b.QuantityOnHand.IsZero() {
			b.AverageCost = decimal.Zero
		}
	case tx.Type == TransactionTypeAdjustment:
		// Signed quantity; positive adjustments carry a unit cost.
		if tx.Quantity.IsPositive() {
			b.AverageCost = WeightedAverageCost(b.QuantityOnHand, b.AverageCost, tx.Quantity, tx.UnitCost)
		}
		b.QuantityOnHand = b.QuantityOnHand.Add(tx.Quantity)
		if b.QuantityOnHand.LessThanOrEqual(decimal.Zero) {
			b.AverageCost = decimal.Zero
		}
	case tx.Type == TransactionTypeAllocation:
		b.QuantityAllocated = b.QuantityAllocated.Add(tx.Quantity)
	case tx.Type == TransactionTypeRelease:
		b.QuantityAllocated = b.QuantityAllocated.Sub(tx.Quantity)
	case tx.Type == TransactionTypeReservation:
		b.QuantityReserved = b.QuantityReserved.Add(tx.Quantity)
	}

	b.QuantityAvailable = b.QuantityOnHand.Sub(b.QuantityAllocated).Sub(b.QuantityReserved)
	b.TotalValue = b.QuantityOnHand.Mul(b.AverageCost)

	if b.LastTransactionDate == nil || tx.Date.After(*b.LastTransactionDate) {
		d := tx.Date
		b.LastTransactionDate = &d
	}
}

// ComputeInventoryBalance replays the full movement log for one
// item/location pair. Transactions must be ordered by date ascending.
func ComputeInventoryBalance(meta *ItemMetadata, locationID uuid.UUID, transactions []InventoryTransaction) *InventoryBalance {
	bal := NewInventoryBalance(meta, locationID)
	for i := range transactions {
		bal.Apply(&transactions[i])
	}
	bal.ComputedAt = time.Now()
	return bal
}
