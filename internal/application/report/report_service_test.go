package report

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appinventory "github.com/finbooks/backend/internal/application/inventory"
	appledger "github.com/finbooks/backend/internal/application/ledger"
	"github.com/finbooks/backend/internal/domain/inventory"
	"github.com/finbooks/backend/internal/domain/ledger"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
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
	service   *Service
	ledgers   *persistence.InMemoryEntryRepository
	movements *persistence.InMemoryTransactionRepository
	cache     *cache.TaggedCache
	balances  *appledger.BalanceService
	stocks    *appinventory.Service
	tenantID  uuid.UUID
	userID    uuid.UUID
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ledgers := persistence.NewInMemoryEntryRepository()
	movements := persistence.NewInMemoryTransactionRepository()
	c := cache.New()
	balances := appledger.NewBalanceService(ledgers, c)
	stocks := appinventory.NewService(movements, c)
	return &fixture{
		service:   NewService(balances, stocks, ledgers, movements, c, opts...),
		ledgers:   ledgers,
		movements: movements,
		cache:     c,
		balances:  balances,
		stocks:    stocks,
		tenantID:  uuid.New(),
		userID:    uuid.New(),
	}
}

func (f *fixture) account(t *testing.T, code, name string, accountType ledger.AccountType) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.ledgers.SeedAccount(ledger.AccountMetadata{
		ID: id, TenantID: f.tenantID, Code: code, Name: name, Type: accountType,
	})
	return id
}

func (f *fixture) post(t *testing.T, accountID uuid.UUID, debit, credit float64) {
	t.Helper()
	entry, err := ledger.NewLedgerEntry(f.tenantID, accountID,
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		decimal.NewFromFloat(debit), decimal.NewFromFloat(credit),
		valueobject.USD, "")
	require.NoError(t, err)
	_, err = f.ledgers.Insert(context.Background(), entry)
	require.NoError(t, err)
}

func TestService_GetBalanceReport_GroupsByType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.account(t, "1000", "Cash", ledger.AccountTypeAsset)
	receivable := f.account(t, "1100", "Receivables", ledger.AccountTypeAsset)
	revenue := f.account(t, "4000", "Sales", ledger.AccountTypeRevenue)

	f.post(t, cash, 100, 0)
	f.post(t, receivable, 50, 0)
	f.post(t, revenue, 0, 150)

	res := f.service.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, res.Success)
	require.Len(t, res.Data.Groups, 2)

	assert.Equal(t, ledger.AccountTypeAsset, res.Data.Groups[0].AccountType)
	assert.Len(t, res.Data.Groups[0].Lines, 2)
	assert.True(t, res.Data.Groups[0].TotalBalance.Equal(decimal.NewFromInt(150)))

	assert.Equal(t, ledger.AccountTypeRevenue, res.Data.Groups[1].AccountType)
	assert.True(t, res.Data.Groups[1].TotalBalance.Equal(decimal.NewFromInt(150)))

	assert.True(t, res.Data.Balanced)
	assert.Empty(t, res.Warnings)
}

func TestService_GetBalanceReport_MismatchWarning(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.account(t, "1000", "Cash", ledger.AccountTypeAsset)
	f.post(t, cash, 100, 0)

	res := f.service.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, res.Success, "an unbalanced ledger still returns data")
	assert.False(t, res.Data.Balanced)

	mismatches := 0
	for _, w := range res.Warnings {
		if w.Code == shared.CodeBalanceMismatch {
			mismatches++
		}
	}
	assert.Equal(t, 1, mismatches, "exactly one mismatch warning")
}

func TestService_GetBalanceReport_CachedSecondRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.account(t, "1000", "Cash", ledger.AccountTypeAsset)
	revenue := f.account(t, "4000", "Sales", ledger.AccountTypeRevenue)
	f.post(t, cash, 100, 0)
	f.post(t, revenue, 0, 100)

	first := f.service.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, first.Success)
	assert.False(t, first.Metadata.CacheHit)

	second := f.service.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, second.Success)
	assert.True(t, second.Metadata.CacheHit)
}

func TestService_GetBalanceReport_InvalidatedByWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.account(t, "1000", "Cash", ledger.AccountTypeAsset)
	revenue := f.account(t, "4000", "Sales", ledger.AccountTypeRevenue)
	f.post(t, cash, 100, 0)
	f.post(t, revenue, 0, 100)

	first := f.service.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, first.Success)

	// A write through the balance service drops the tenant's cached
	// reports before returning.
	writeRes := f.balances.RecordTransaction(ctx, f.tenantID, f.userID, appledger.RecordTransactionInput{
		AccountID: cash,
		EntryDate: time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC),
		Debit:     decimal.NewFromInt(25),
		Currency:  valueobject.USD,
	})
	require.True(t, writeRes.Success)

	second := f.service.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, second.Success)
	assert.False(t, second.Metadata.CacheHit)
	assert.True(t, second.Data.TotalDebits.Equal(decimal.NewFromInt(125)))
}

func TestService_GetBalanceReport_EmptyTenant(t *testing.T) {
	f := newFixture(t)

	res := f.service.GetBalanceReport(context.Background(), f.tenantID, f.userID, nil)
	require.True(t, res.Success)
	assert.Empty(t, res.Data.Groups)
	assert.True(t, res.Data.Balanced, "zero equals zero")
}

func TestService_GetBalanceReport_PermissionDenied(t *testing.T) {
	f := newFixture(t, WithPermissionChecker(denyAllChecker{}))

	res := f.service.GetBalanceReport(context.Background(), f.tenantID, f.userID, nil)
	assert.False(t, res.Success)
	assert.Equal(t, shared.CodePermissionDenied, res.FirstErrorCode())
}

func TestService_GetValuationReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	partID := uuid.New()
	toolID := uuid.New()
	locationID := uuid.New()
	f.movements.SeedItem(inventory.ItemMetadata{
		ID: partID, TenantID: f.tenantID, SKU: "PART-1", Name: "Part", Category: "parts",
	})
	f.movements.SeedItem(inventory.ItemMetadata{
		ID: toolID, TenantID: f.tenantID, SKU: "TOOL-1", Name: "Tool", Category: "tools",
	})

	for _, m := range []struct {
		itemID uuid.UUID
		qty    int64
		cost   float64
	}{
		{partID, 10, 5.00},
		{toolID, 2, 100.00},
	} {
		tx, err := inventory.NewInventoryTransaction(f.tenantID, m.itemID, locationID,
			inventory.TransactionTypeReceipt,
			decimal.NewFromInt(m.qty), decimal.NewFromFloat(m.cost),
			time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), "")
		require.NoError(t, err)
		_, err = f.movements.Insert(ctx, tx)
		require.NoError(t, err)
	}

	res := f.service.GetValuationReport(ctx, f.tenantID, f.userID)
	require.True(t, res.Success)
	require.Len(t, res.Data.Groups, 2)
	assert.True(t, res.Data.TotalValue.Equal(decimal.NewFromFloat(250.00)),
		"10@5.00 + 2@100.00, got %s", res.Data.TotalValue)

	byCategory := map[string]ValuationGroup{}
	for _, g := range res.Data.Groups {
		byCategory[g.Category] = g
	}
	assert.True(t, byCategory["parts"].TotalValue.Equal(decimal.NewFromFloat(50.00)))
	assert.True(t, byCategory["tools"].TotalValue.Equal(decimal.NewFromFloat(200.00)))
}

func TestService_GetValuationReport_EmptyTenant(t *testing.T) {
	f := newFixture(t)

	res := f.service.GetValuationReport(context.Background(), f.tenantID, f.userID)
	require.True(t, res.Success)
	assert.Empty(t, res.Data.Groups)
	assert.True(t, res.Data.TotalValue.IsZero())
}

// flakyBalanceReader fails for one specific account and delegates the
// rest.
type flakyBalanceReader struct {
	inner BalanceReader
	badID uuid.UUID
}

func (r flakyBalanceReader) GetAccountBalance(ctx context.Context, tenantID, userID, accountID uuid.UUID, asOf *time.Time) shared.Result[ledger.AccountBalance] {
	if accountID == r.badID {
		return shared.Fail[ledger.AccountBalance](shared.CodeDatabaseError, "store unavailable")
	}
	return r.inner.GetAccountBalance(ctx, tenantID, userID, accountID, asOf)
}

func TestService_GetBalanceReport_PartialFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cash := f.account(t, "1000", "Cash", ledger.AccountTypeAsset)
	broken := f.account(t, "1100", "Receivables", ledger.AccountTypeAsset)
	f.post(t, cash, 100, 0)
	f.post(t, broken, 50, 0)

	svc := NewService(flakyBalanceReader{inner: f.balances, badID: broken}, f.stocks, f.ledgers, f.movements, f.cache)

	res := svc.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, res.Success, "one failed account degrades to a warning")
	require.Len(t, res.Data.Groups, 1)
	assert.Len(t, res.Data.Groups[0].Lines, 1)
	assert.True(t, res.Data.TotalDebits.Equal(decimal.NewFromInt(100)))

	found := false
	for _, w := range res.Warnings {
		if w.Code == shared.CodeDatabaseError {
			found = true
		}
	}
	assert.True(t, found, "the failed account surfaces as a warning")

	// Degraded reports are not cached; the next read retries.
	second := svc.GetBalanceReport(ctx, f.tenantID, f.userID, nil)
	require.True(t, second.Success)
	assert.False(t, second.Metadata.CacheHit)
}

// gatedAccountLister blocks account listing until released so concurrent
// report builds can pile up on the same key.
type gatedAccountLister struct {
	*persistence.InMemoryEntryRepository
	calls   atomic.Int64
	release chan struct{}
}

func (l *gatedAccountLister) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]ledger.AccountMetadata, error) {
	l.calls.Add(1)
	<-l.release
	return l.InMemoryEntryRepository.ListAccounts(ctx, tenantID)
}

func TestService_GetBalanceReport_CoalescesConcurrentMisses(t *testing.T) {
	ledgers := persistence.NewInMemoryEntryRepository()
	movements := persistence.NewInMemoryTransactionRepository()
	c := cache.New()
	lister := &gatedAccountLister{
		InMemoryEntryRepository: ledgers,
		release:                 make(chan struct{}),
	}
	svc := NewService(appledger.NewBalanceService(ledgers, c), appinventory.NewService(movements, c), lister, movements, c)

	tenantID, userID := uuid.New(), uuid.New()
	accountID := uuid.New()
	ledgers.SeedAccount(ledger.AccountMetadata{
		ID: accountID, TenantID: tenantID, Code: "1000", Name: "Cash", Type: ledger.AccountTypeAsset,
	})
	entry, err := ledger.NewLedgerEntry(tenantID, accountID,
		time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(100), decimal.Zero, valueobject.USD, "")
	require.NoError(t, err)
	_, err = ledgers.Insert(context.Background(), entry)
	require.NoError(t, err)

	const workers = 10
	var wg sync.WaitGroup
	successes := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := svc.GetBalanceReport(context.Background(), tenantID, userID, nil)
			successes[i] = res.Success
		}(i)
	}

	// Give every worker a chance to reach the flight before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(lister.release)
	wg.Wait()

	assert.Equal(t, int64(1), lister.calls.Load(), "concurrent misses share one report build")
	for i := 0; i < workers; i++ {
		assert.True(t, successes[i])
	}
}
