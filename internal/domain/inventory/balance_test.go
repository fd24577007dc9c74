package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testItem() *ItemMetadata {
	return &ItemMetadata{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		SKU:      "WIDGET-01",
		Name:     "Widget",
		Category: "Hardware",
	}
}

func movement(meta *ItemMetadata, loc uuid.UUID, txType TransactionType, qty, cost string, at time.Time) InventoryTransaction {
	return InventoryTransaction{
		ID:         uuid.New(),
		TenantID:   meta.TenantID,
		ItemID:     meta.ID,
		LocationID: loc,
		Type:       txType,
		Quantity:   decimal.RequireFromString(qty),
		UnitCost:   decimal.RequireFromString(cost),
		Date:       at,
	}
}

func TestWeightedAverageCost_ExactBlend(t *testing.T) {
	// 10 @ 5.00 blended with 10 @ 7.00 must be exactly 6.00.
	got := WeightedAverageCost(
		decimal.NewFromInt(10), decimal.RequireFromString("5.00"),
		decimal.NewFromInt(10), decimal.RequireFromString("7.00"),
	)
	assert.True(t, decimal.RequireFromString("6.00").Equal(got), "got %s", got)
}

func TestWeightedAverageCost_NonPositiveQuantityClampsToZero(t *testing.T) {
	got := WeightedAverageCost(
		decimal.NewFromInt(-5), decimal.RequireFromString("5.00"),
		decimal.NewFromInt(5), decimal.RequireFromString("7.00"),
	)
	assert.True(t, got.IsZero())

	got = WeightedAverageCost(decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero)
	assert.True(t, got.IsZero())
}

func TestComputeInventoryBalance_ReceiptsBlendCost(t *testing.T) {
	meta := testItem()
	loc := uuid.New()
	base := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)

	bal := ComputeInventoryBalance(meta, loc, []InventoryTransaction{
		movement(meta, loc, TransactionTypeReceipt, "10", "5.00", base),
		movement(meta, loc, TransactionTypeReceipt, "10", "7.00", base.Add(time.Hour)),
	})

	assert.True(t, decimal.NewFromInt(20).Equal(bal.QuantityOnHand))
	assert.True(t, decimal.RequireFromString("6.00").Equal(bal.AverageCost), "avg = %s", bal.AverageCost)
	assert.True(t, decimal.RequireFromString("120.00").Equal(bal.TotalValue), "value = %s", bal.TotalValue)
	require.NotNil(t, bal.LastTransactionDate)
	assert.Equal(t, base.Add(time.Hour), *bal.LastTransactionDate)
}

func TestComputeInventoryBalance_IssueKeepsCostUntilEmpty(t *testing.T) {
	meta := testItem()
	loc := uuid.New()
	now := time.Now()

	bal := ComputeInventoryBalance(meta, loc, []InventoryTransaction{
		movement(meta, loc, TransactionTypeReceipt, "10", "5.00", now),
		movement(meta, loc, TransactionTypeIssue, "4", "0", now.Add(time.Minute)),
	})
	assert.True(t, decimal.NewFromInt(6).Equal(bal.QuantityOnHand))
	assert.True(t, decimal.RequireFromString("5.00").Equal(bal.AverageCost))

	bal = ComputeInventoryBalance(meta, loc, []InventoryTransaction{
		movement(meta, loc, TransactionTypeReceipt, "10", "5.00", now),
		movement(meta, loc, TransactionTypeIssue, "10", "0", now.Add(time.Minute)),
	})
	assert.True(t, bal.QuantityOnHand.IsZero())
	assert.True(t, bal.AverageCost.IsZero())
	assert.True(t, bal.TotalValue.IsZero())
}

func TestComputeInventoryBalance_AvailableIdentity(t *testing.T) {
	meta := testItem()
	loc := uuid.New()
	now := time.Now()

	bal := ComputeInventoryBalance(meta, loc, []InventoryTransaction{
		movement(meta, loc, TransactionTypeReceipt, "100", "2.50", now),
		movement(meta, loc, TransactionTypeAllocation, "30", "0", now.Add(time.Minute)),
		movement(meta, loc, TransactionTypeReservation, "20", "0", now.Add(2*time.Minute)),
		movement(meta, loc, TransactionTypeRelease, "10", "0", now.Add(3*time.Minute)),
	})

	// available = on hand - allocated - reserved
	assert.True(t, decimal.NewFromInt(100).Equal(bal.QuantityOnHand))
	assert.True(t, decimal.NewFromInt(20).Equal(bal.QuantityAllocated))
	assert.True(t, decimal.NewFromInt(20).Equal(bal.QuantityReserved))
	assert.True(t, decimal.NewFromInt(60).Equal(bal.QuantityAvailable))
}

func TestComputeInventoryBalance_NegativeAdjustment(t *testing.T) {
	meta := testItem()
	loc := uuid.New()
	now := time.Now()

	bal := ComputeInventoryBalance(meta, loc, []InventoryTransaction{
		movement(meta, loc, TransactionTypeReceipt, "5", "4.00", now),
		movement(meta, loc, TransactionTypeAdjustment, "-8", "0", now.Add(time.Minute)),
	})

	assert.True(t, decimal.NewFromInt(-3).Equal(bal.QuantityOnHand))
	assert.True(t, bal.AverageCost.IsZero(), "negative position must clamp cost to zero")
}

func TestComputeInventoryBalance_PositiveAdjustmentBlends(t *testing.T) {
	meta := testItem()
	loc := uuid.New()
	now := time.Now()

	bal := ComputeInventoryBalance(meta, loc, []InventoryTransaction{
		movement(meta, loc, TransactionTypeReceipt, "10", "5.00", now),
		movement(meta, loc, TransactionTypeAdjustment, "10", "7.00", now.Add(time.Minute)),
	})

	assert.True(t, decimal.RequireFromString("6.00").Equal(bal.AverageCost))
}

func TestNewInventoryTransaction_Validation(t *testing.T) {
	meta := testItem()
	loc := uuid.New()

	tests := []struct {
		name        string
		itemID      uuid.UUID
		txType      TransactionType
		qty         string
		cost        string
		expectError bool
	}{
		{"valid receipt", meta.ID, TransactionTypeReceipt, "10", "5.00", false},
		{"negative adjustment allowed", meta.ID, TransactionTypeAdjustment, "-3", "0", false},
		{"zero quantity issue", meta.ID, TransactionTypeIssue, "0", "0", true},
		{"negative cost", meta.ID, TransactionTypeReceipt, "10", "-1.00", true},
		{"missing item", uuid.Nil, TransactionTypeReceipt, "10", "5.00", true},
		{"unknown type", meta.ID, TransactionType("BOGUS"), "10", "5.00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInventoryTransaction(
				meta.TenantID, tt.itemID, loc, tt.txType,
				decimal.RequireFromString(tt.qty), decimal.RequireFromString(tt.cost),
				time.Now(), "",
			)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
