// Package ledger provides application-level balance and history
// operations over the append-only ledger entry store.
package ledger

import (
	"context"
	"time"

	"github.com/finbooks/backend/internal/domain/ledger"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/finbooks/backend/internal/infrastructure/monitor"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cache TTLs. Balances are invalidated eagerly on every write, so the
// TTL is only the staleness bound for invalidation paths the process
// cannot observe (another instance without fan-out configured).
const (
	DefaultBalanceTTL = 2 * time.Minute
	DefaultHistoryTTL = 1 * time.Minute
)

// Operation names recorded by the monitor.
const (
	opGetBalance        = "ledger.get_balance"
	opGetHistory        = "ledger.get_history"
	opRecordTransaction = "ledger.record_transaction"
	opMarkReconciled    = "ledger.mark_reconciled"
)

// InvalidationPublisher fans invalidations out to other instances after
// the local cache has already been invalidated. Optional; a publish
// failure never fails the write.
type InvalidationPublisher interface {
	PublishTags(ctx context.Context, tags []string) error
	PublishPattern(ctx context.Context, pattern string) error
}

// BalanceService computes, caches, and invalidates account balances.
// Every public method returns a result envelope instead of a raw error.
type BalanceService struct {
	repo       ledger.EntryRepository
	cache      *cache.TaggedCache
	perms      shared.PermissionChecker
	monitor    *monitor.Monitor
	publisher  InvalidationPublisher
	logger     *zap.Logger
	balanceTTL time.Duration
	historyTTL time.Duration
}

// BalanceServiceOption is a functional option for configuring the service
type BalanceServiceOption func(*BalanceService)

// WithPermissionChecker sets the permission checker
func WithPermissionChecker(perms shared.PermissionChecker) BalanceServiceOption {
	return func(s *BalanceService) {
		s.perms = perms
	}
}

// WithMonitor sets the operation monitor
func WithMonitor(m *monitor.Monitor) BalanceServiceOption {
	return func(s *BalanceService) {
		s.monitor = m
	}
}

// WithPublisher sets the cross-instance invalidation publisher
func WithPublisher(p InvalidationPublisher) BalanceServiceOption {
	return func(s *BalanceService) {
		s.publisher = p
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *zap.Logger) BalanceServiceOption {
	return func(s *BalanceService) {
		s.logger = logger
	}
}

// WithTTLs overrides the balance and history cache TTLs
func WithTTLs(balance, history time.Duration) BalanceServiceOption {
	return func(s *BalanceService) {
		if balance > 0 {
			s.balanceTTL = balance
		}
		if history > 0 {
			s.historyTTL = history
		}
	}
}

// NewBalanceService creates a new BalanceService
func NewBalanceService(repo ledger.EntryRepository, c *cache.TaggedCache, opts ...BalanceServiceOption) *BalanceService {
	s := &BalanceService{
		repo:       repo,
		cache:      c,
		perms:      shared.AllowAllChecker{},
		monitor:    monitor.New(),
		logger:     zap.NewNop(),
		balanceTTL: DefaultBalanceTTL,
		historyTTL: DefaultHistoryTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAccountBalance returns the account's derived balance as of the
// given instant (nil means now). Concurrent misses for the same key
// coalesce into one store query.
func (s *BalanceService) GetAccountBalance(ctx context.Context, tenantID, userID, accountID uuid.UUID, asOf *time.Time) shared.Result[ledger.AccountBalance] {
	tracked := s.monitor.Start(opGetBalance)
	start := time.Now()

	res := s.getAccountBalance(ctx, tenantID, userID, accountID, asOf, tracked)
	if res.Metadata == nil {
		res = res.WithMetadata(shared.ResultMetadata{ComputedAt: time.Now()})
	}
	res.Metadata.DurationMs = time.Since(start).Milliseconds()

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *BalanceService) getAccountBalance(ctx context.Context, tenantID, userID, accountID uuid.UUID, asOf *time.Time, tracked *monitor.Tracked) shared.Result[ledger.AccountBalance] {
	if tenantID == uuid.Nil || accountID == uuid.Nil {
		return shared.Fail[ledger.AccountBalance](shared.CodeValidationError, "tenant and account IDs are required")
	}
	if res := checkPermission[ledger.AccountBalance](ctx, s.perms, userID, shared.OpReadBalance, tenantID); res != nil {
		return *res
	}

	key := cache.Key(cache.DomainBalance, tenantID, accountID.String(), cache.AsOfToken(asOf), cache.FilterTokenNone)
	tags := []string{cache.TenantTag(tenantID), cache.AccountTag(accountID)}

	value, hit, err := s.cache.GetOrCompute(ctx, key, s.balanceTTL, tags, func(computeCtx context.Context) (any, error) {
		return s.computeBalance(computeCtx, tenantID, accountID, asOf)
	})
	if err != nil {
		return shared.FailErr[ledger.AccountBalance](err)
	}

	tracked.SetCacheHit(hit)
	balance := value.(*ledger.AccountBalance)
	return shared.OK(*balance).WithMetadata(shared.ResultMetadata{
		CacheHit:   hit,
		ComputedAt: balance.ComputedAt,
	})
}

func (s *BalanceService) computeBalance(ctx context.Context, tenantID, accountID uuid.UUID, asOf *time.Time) (*ledger.AccountBalance, error) {
	meta, err := s.repo.AccountMetadata(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now()
	if asOf != nil {
		cutoff = *asOf
	}

	entries, err := s.repo.Query(ctx, tenantID, accountID, ledger.DateRange{To: &cutoff}, ledger.EntryFilter{})
	if err != nil {
		return nil, err
	}

	balance := ledger.ComputeAccountBalance(meta, entries, cutoff)
	balance.AsOf = asOf
	return balance, nil
}

// GetAccountHistory returns the entries in range plus opening and
// closing balances and summary statistics.
func (s *BalanceService) GetAccountHistory(ctx context.Context, tenantID, userID, accountID uuid.UUID, dateRange ledger.DateRange, filter ledger.EntryFilter) shared.Result[ledger.AccountHistory] {
	tracked := s.monitor.Start(opGetHistory)
	start := time.Now()

	res := s.getAccountHistory(ctx, tenantID, userID, accountID, dateRange, filter, tracked)
	if res.Metadata == nil {
		res = res.WithMetadata(shared.ResultMetadata{ComputedAt: time.Now()})
	}
	res.Metadata.DurationMs = time.Since(start).Milliseconds()

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *BalanceService) getAccountHistory(ctx context.Context, tenantID, userID, accountID uuid.UUID, dateRange ledger.DateRange, filter ledger.EntryFilter, tracked *monitor.Tracked) shared.Result[ledger.AccountHistory] {
	if tenantID == uuid.Nil || accountID == uuid.Nil {
		return shared.Fail[ledger.AccountHistory](shared.CodeValidationError, "tenant and account IDs are required")
	}
	if res := checkPermission[ledger.AccountHistory](ctx, s.perms, userID, shared.OpReadHistory, tenantID); res != nil {
		return *res
	}

	key := cache.Key(cache.DomainHistory, tenantID, accountID.String(),
		cache.RangeToken(dateRange.From, dateRange.To), cache.FilterToken(filter))
	tags := []string{cache.TenantTag(tenantID), cache.AccountTag(accountID)}

	value, hit, err := s.cache.GetOrCompute(ctx, key, s.historyTTL, tags, func(computeCtx context.Context) (any, error) {
		return s.computeHistory(computeCtx, tenantID, accountID, dateRange, filter)
	})
	if err != nil {
		return shared.FailErr[ledger.AccountHistory](err)
	}

	tracked.SetCacheHit(hit)
	history := value.(*ledger.AccountHistory)
	return shared.OK(*history).WithMetadata(shared.ResultMetadata{
		CacheHit:   hit,
		ComputedAt: history.ComputedAt,
	})
}

func (s *BalanceService) computeHistory(ctx context.Context, tenantID, accountID uuid.UUID, dateRange ledger.DateRange, filter ledger.EntryFilter) (*ledger.AccountHistory, error) {
	meta, err := s.repo.AccountMetadata(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}

	var opening []ledger.LedgerEntry
	if dateRange.From != nil {
		// Entries strictly before the range feed the opening balance.
		before := dateRange.From.Add(-time.Nanosecond)
		opening, err = s.repo.Query(ctx, tenantID, accountID, ledger.DateRange{To: &before}, ledger.EntryFilter{})
		if err != nil {
			return nil, err
		}
	}

	entries, err := s.repo.Query(ctx, tenantID, accountID, dateRange, filter)
	if err != nil {
		return nil, err
	}

	return ledger.ComputeAccountHistory(meta, opening, entries), nil
}

// RecordTransactionInput is the write-path request payload.
type RecordTransactionInput struct {
	AccountID uuid.UUID            `json:"account_id"`
	EntryDate time.Time            `json:"entry_date"`
	Debit     decimal.Decimal      `json:"debit"`
	Credit    decimal.Decimal      `json:"credit"`
	Currency  valueobject.Currency `json:"currency"`
	Memo      string               `json:"memo"`
}

// RecordTransaction validates and durably appends one ledger entry, then
// synchronously invalidates the account's cached aggregates before
// returning. A read issued after this method returns always observes the
// new entry.
func (s *BalanceService) RecordTransaction(ctx context.Context, tenantID, userID uuid.UUID, input RecordTransactionInput) shared.Result[ledger.LedgerEntry] {
	tracked := s.monitor.Start(opRecordTransaction)
	start := time.Now()

	res := s.recordTransaction(ctx, tenantID, userID, input)
	res = res.WithMetadata(shared.ResultMetadata{
		DurationMs: time.Since(start).Milliseconds(),
		ComputedAt: time.Now(),
	})

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *BalanceService) recordTransaction(ctx context.Context, tenantID, userID uuid.UUID, input RecordTransactionInput) shared.Result[ledger.LedgerEntry] {
	if res := checkPermission[ledger.LedgerEntry](ctx, s.perms, userID, shared.OpPostTransaction, tenantID); res != nil {
		return *res
	}

	entry, err := ledger.NewLedgerEntry(tenantID, input.AccountID, input.EntryDate,
		input.Debit, input.Credit, input.Currency, input.Memo)
	if err != nil {
		return shared.FailErr[ledger.LedgerEntry](err)
	}

	if _, err := s.repo.AccountMetadata(ctx, tenantID, input.AccountID); err != nil {
		return shared.FailErr[ledger.LedgerEntry](err)
	}

	// Running balance is a posting-time snapshot: the signed sum of
	// everything already on the account plus this entry.
	prior, err := s.repo.Query(ctx, tenantID, input.AccountID, ledger.DateRange{}, ledger.EntryFilter{})
	if err != nil {
		return shared.FailErr[ledger.LedgerEntry](err)
	}
	running := entry.Net()
	for i := range prior {
		running = running.Add(prior[i].Net())
	}
	entry.RunningBalance = running

	if _, err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("Failed to insert ledger entry",
			zap.String("tenant_id", tenantID.String()),
			zap.String("account_id", input.AccountID.String()),
			zap.Error(err))
		return shared.FailErr[ledger.LedgerEntry](err)
	}

	// The entry is durable; invalidate before returning so the caller's
	// next read recomputes.
	s.invalidateAccount(ctx, tenantID, input.AccountID)

	s.logger.Info("Recorded ledger entry",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", input.AccountID.String()),
		zap.String("entry_id", entry.ID.String()))

	return shared.OK(*entry)
}

// MarkReconciled flags the given entries as reconciled and invalidates
// the account's cached aggregates.
func (s *BalanceService) MarkReconciled(ctx context.Context, tenantID, userID, accountID uuid.UUID, entryIDs []uuid.UUID) shared.Result[int] {
	tracked := s.monitor.Start(opMarkReconciled)
	start := time.Now()

	res := s.markReconciled(ctx, tenantID, userID, accountID, entryIDs)
	res = res.WithMetadata(shared.ResultMetadata{
		DurationMs: time.Since(start).Milliseconds(),
		ComputedAt: time.Now(),
	})

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *BalanceService) markReconciled(ctx context.Context, tenantID, userID, accountID uuid.UUID, entryIDs []uuid.UUID) shared.Result[int] {
	if tenantID == uuid.Nil || accountID == uuid.Nil {
		return shared.Fail[int](shared.CodeValidationError, "tenant and account IDs are required")
	}
	if len(entryIDs) == 0 {
		return shared.Fail[int](shared.CodeValidationError, "at least one entry ID is required")
	}
	if res := checkPermission[int](ctx, s.perms, userID, shared.OpMarkReconciled, tenantID); res != nil {
		return *res
	}

	if _, err := s.repo.AccountMetadata(ctx, tenantID, accountID); err != nil {
		return shared.FailErr[int](err)
	}

	if err := s.repo.MarkReconciled(ctx, tenantID, accountID, entryIDs); err != nil {
		return shared.FailErr[int](err)
	}

	s.invalidateAccount(ctx, tenantID, accountID)
	return shared.OK(len(entryIDs))
}

// invalidateAccount drops the account's cached balances and histories
// plus the tenant's report aggregates, locally and (best effort) on
// other instances.
func (s *BalanceService) invalidateAccount(ctx context.Context, tenantID, accountID uuid.UUID) {
	tags := []string{cache.AccountTag(accountID)}
	reportPattern := cache.DomainReport + ":" + tenantID.String()

	s.cache.InvalidateByTags(tags)
	s.cache.Invalidate(reportPattern)

	if s.publisher != nil {
		if err := s.publisher.PublishTags(ctx, tags); err != nil {
			s.logger.Warn("Failed to publish tag invalidation",
				zap.Strings("tags", tags),
				zap.Error(err))
		}
		if err := s.publisher.PublishPattern(ctx, reportPattern); err != nil {
			s.logger.Warn("Failed to publish pattern invalidation",
				zap.String("pattern", reportPattern),
				zap.Error(err))
		}
	}
}

// checkPermission returns a failed result when the user lacks the
// operation for the tenant, or nil when allowed.
func checkPermission[T any](ctx context.Context, perms shared.PermissionChecker, userID uuid.UUID, operation string, tenantID uuid.UUID) *shared.Result[T] {
	allowed, err := perms.HasPermission(ctx, userID, operation, tenantID)
	if err != nil {
		res := shared.FailErr[T](err)
		return &res
	}
	if !allowed {
		res := shared.Fail[T](shared.CodePermissionDenied, "user is not permitted to "+operation)
		return &res
	}
	return nil
}

// resultErr converts envelope success into the error shape the monitor
// tracks.
func resultErr(success bool) error {
	if success {
		return nil
	}
	return errFailedOperation
}

var errFailedOperation = shared.NewDomainError(shared.CodeDatabaseError, "operation failed")
