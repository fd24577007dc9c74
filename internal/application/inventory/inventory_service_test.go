package inventory

import (
	"context"
	"testing"
	"time"

	domain "github.com/finbooks/backend/internal/domain/inventory"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/finbooks/backend/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type denyAllChecker struct{}

func (denyAllChecker) HasPermission(ctx context.Context, userID uuid.UUID, operation string, tenantID uuid.UUID) (bool, error) {
	return false, nil
}

type fixture struct {
	service    *Service
	repo       *persistence.InMemoryTransactionRepository
	cache      *cache.TaggedCache
	tenantID   uuid.UUID
	userID     uuid.UUID
	itemID     uuid.UUID
	locationID uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repo := persistence.NewInMemoryTransactionRepository()
	c := cache.New()
	f := &fixture{
		service:    NewService(repo, c, opts...),
		repo:       repo,
		cache:      c,
		tenantID:   uuid.New(),
		userID:     uuid.New(),
		itemID:     uuid.New(),
		locationID: uuid.New(),
	}
	repo.SeedItem(domain.ItemMetadata{
		ID:       f.itemID,
		TenantID: f.tenantID,
		SKU:      "WID-1",
		Name:     "Widget",
		Category: "parts",
	})
	return f
}

func (f *fixture) move(t *testing.T, txType domain.TransactionType, qty, cost float64, day int) domain.InventoryTransaction {
	t.Helper()
	res := f.service.RecordTransaction(context.Background(), f.tenantID, f.userID, RecordTransactionInput{
		ItemID:     f.itemID,
		LocationID: f.locationID,
		Type:       txType,
		Quantity:   decimal.NewFromFloat(qty),
		UnitCost:   decimal.NewFromFloat(cost),
		Date:       time.Date(2026, 6, day, 0, 0, 0, 0, time.UTC),
	})
	require.True(t, res.Success, "move failed: %+v", res.Errors)
	return *res.Data
}

func TestService_GetBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.move(t, domain.TransactionTypeReceipt, 10, 5.00, 1)
	f.move(t, domain.TransactionTypeReceipt, 10, 7.00, 2)

	res := f.service.GetBalance(ctx, f.tenantID, f.userID, f.itemID, f.locationID)
	require.True(t, res.Success)
	assert.True(t, res.Data.QuantityOnHand.Equal(decimal.NewFromInt(20)))
	assert.True(t, res.Data.AverageCost.Equal(decimal.NewFromFloat(6.00).Round(4)),
		"weighted average of 10@5.00 and 10@7.00, got %s", res.Data.AverageCost)
	assert.False(t, res.Metadata.CacheHit)

	res = f.service.GetBalance(ctx, f.tenantID, f.userID, f.itemID, f.locationID)
	require.True(t, res.Success)
	assert.True(t, res.Metadata.CacheHit)
}

func TestService_WriteThenReadConsistency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.move(t, domain.TransactionTypeReceipt, 10, 5.00, 1)

	res := f.service.GetBalance(ctx, f.tenantID, f.userID, f.itemID, f.locationID)
	require.True(t, res.Success)
	require.True(t, res.Data.QuantityOnHand.Equal(decimal.NewFromInt(10)))

	f.move(t, domain.TransactionTypeIssue, 4, 0, 2)

	res = f.service.GetBalance(ctx, f.tenantID, f.userID, f.itemID, f.locationID)
	require.True(t, res.Success)
	assert.False(t, res.Metadata.CacheHit)
	assert.True(t, res.Data.QuantityOnHand.Equal(decimal.NewFromInt(6)),
		"read after write must observe the movement, got %s", res.Data.QuantityOnHand)
}

func TestService_NegativeInventoryAllowedByDefault(t *testing.T) {
	f := newFixture(t)

	f.move(t, domain.TransactionTypeReceipt, 5, 5.00, 1)
	f.move(t, domain.TransactionTypeIssue, 8, 0, 2)

	res := f.service.GetBalance(context.Background(), f.tenantID, f.userID, f.itemID, f.locationID)
	require.True(t, res.Success)
	assert.True(t, res.Data.QuantityOnHand.Equal(decimal.NewFromInt(-3)))
}

func TestService_NegativeInventoryRejection(t *testing.T) {
	f := newFixture(t, WithNegativeInventoryRejection(true))
	ctx := context.Background()

	f.move(t, domain.TransactionTypeReceipt, 5, 5.00, 1)

	res := f.service.RecordTransaction(ctx, f.tenantID, f.userID, RecordTransactionInput{
		ItemID:     f.itemID,
		LocationID: f.locationID,
		Type:       domain.TransactionTypeIssue,
		Quantity:   decimal.NewFromInt(8),
		Date:       time.Date(2026, 6, 2, 0, 0, 0, 0, time.UTC),
	})
	assert.False(t, res.Success)
	assert.Equal(t, shared.CodeInsufficientQuantity, res.FirstErrorCode())

	// The rejected movement was never written.
	balance := f.service.GetBalance(ctx, f.tenantID, f.userID, f.itemID, f.locationID)
	require.True(t, balance.Success)
	assert.True(t, balance.Data.QuantityOnHand.Equal(decimal.NewFromInt(5)))
}

func TestService_RejectionConsidersAllocations(t *testing.T) {
	f := newFixture(t, WithNegativeInventoryRejection(true))
	ctx := context.Background()

	f.move(t, domain.TransactionTypeReceipt, 10, 5.00, 1)
	f.move(t, domain.TransactionTypeAllocation, 6, 0, 2)

	// Only 4 available even though 10 are on hand.
	res := f.service.RecordTransaction(ctx, f.tenantID, f.userID, RecordTransactionInput{
		ItemID:     f.itemID,
		LocationID: f.locationID,
		Type:       domain.TransactionTypeIssue,
		Quantity:   decimal.NewFromInt(5),
		Date:       time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC),
	})
	assert.False(t, res.Success)
	assert.Equal(t, shared.CodeInsufficientQuantity, res.FirstErrorCode())
}

func TestService_UnknownItem(t *testing.T) {
	f := newFixture(t)

	res := f.service.GetBalance(context.Background(), f.tenantID, f.userID, uuid.New(), f.locationID)
	assert.False(t, res.Success)
	assert.Equal(t, shared.CodeItemNotFound, res.FirstErrorCode())
}

func TestService_PermissionDenied(t *testing.T) {
	f := newFixture(t, WithPermissionChecker(denyAllChecker{}))

	res := f.service.GetBalance(context.Background(), f.tenantID, f.userID, f.itemID, f.locationID)
	assert.False(t, res.Success)
	assert.Equal(t, shared.CodePermissionDenied, res.FirstErrorCode())
}

func TestService_EstimateIssueCost_FIFO(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.move(t, domain.TransactionTypeReceipt, 10, 5.00, 1)
	f.move(t, domain.TransactionTypeReceipt, 10, 7.00, 2)

	res := f.service.EstimateIssueCost(ctx, f.tenantID, f.userID, f.itemID, f.locationID,
		decimal.NewFromInt(15), strategy.CostMethodFIFO)
	require.True(t, res.Success)
	// 10@5.00 + 5@7.00
	assert.True(t, res.Data.TotalCost.Equal(decimal.NewFromFloat(85.00)),
		"got %s", res.Data.TotalCost)
	assert.Equal(t, strategy.CostMethodFIFO, res.Data.Method)
}

func TestService_EstimateIssueCost_DefaultsToMovingAverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.move(t, domain.TransactionTypeReceipt, 10, 5.00, 1)
	f.move(t, domain.TransactionTypeReceipt, 10, 7.00, 2)

	res := f.service.EstimateIssueCost(ctx, f.tenantID, f.userID, f.itemID, f.locationID,
		decimal.NewFromInt(10), "")
	require.True(t, res.Success)
	assert.Equal(t, strategy.CostMethodMovingAverage, res.Data.Method)
	assert.True(t, res.Data.UnitCost.Equal(decimal.NewFromFloat(6.00).Round(4)),
		"got %s", res.Data.UnitCost)
}

func TestService_EstimateIssueCost_Validation(t *testing.T) {
	f := newFixture(t)

	res := f.service.EstimateIssueCost(context.Background(), f.tenantID, f.userID, f.itemID, f.locationID,
		decimal.Zero, strategy.CostMethodFIFO)
	assert.False(t, res.Success)
	assert.Equal(t, shared.CodeValidationError, res.FirstErrorCode())
}
