// Package report builds tenant-wide aggregate reports on top of the
// cached balance services.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finbooks/backend/internal/domain/inventory"
	"github.com/finbooks/backend/internal/domain/ledger"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/finbooks/backend/internal/infrastructure/monitor"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultReportTTL bounds staleness for cached reports; writes
// invalidate them eagerly by key pattern.
const DefaultReportTTL = 5 * time.Minute

// DefaultFetchConcurrency bounds parallel per-account fetches.
const DefaultFetchConcurrency = 8

// Operation names recorded by the monitor.
const (
	opBalanceReport   = "report.balance"
	opValuationReport = "report.valuation"
)

// BalanceReader is the per-account balance source, served from cache
// when warm.
type BalanceReader interface {
	GetAccountBalance(ctx context.Context, tenantID, userID, accountID uuid.UUID, asOf *time.Time) shared.Result[ledger.AccountBalance]
}

// InventoryReader is the per-pair inventory balance source.
type InventoryReader interface {
	GetBalance(ctx context.Context, tenantID, userID, itemID, locationID uuid.UUID) shared.Result[inventory.InventoryBalance]
}

// AccountLister enumerates a tenant's accounts.
type AccountLister interface {
	ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]ledger.AccountMetadata, error)
}

// ItemLister enumerates a tenant's items and their stocked locations.
type ItemLister interface {
	ListItems(ctx context.Context, tenantID uuid.UUID) ([]inventory.ItemMetadata, error)
	ListLocations(ctx context.Context, tenantID, itemID uuid.UUID) ([]uuid.UUID, error)
}

// BalanceReportLine is one account row in a balance report.
type BalanceReportLine struct {
	AccountID   uuid.UUID          `json:"account_id"`
	AccountCode string             `json:"account_code"`
	AccountName string             `json:"account_name"`
	AccountType ledger.AccountType `json:"account_type"`
	Debits      decimal.Decimal    `json:"debits"`
	Credits     decimal.Decimal    `json:"credits"`
	Balance     decimal.Decimal    `json:"balance"`
}

// BalanceReportGroup groups lines by account type.
type BalanceReportGroup struct {
	AccountType  ledger.AccountType  `json:"account_type"`
	Lines        []BalanceReportLine `json:"lines"`
	TotalBalance decimal.Decimal     `json:"total_balance"`
}

// BalanceReport is the tenant-wide balance aggregate grouped by account
// type. Balanced reports have equal total debits and credits.
type BalanceReport struct {
	TenantID     uuid.UUID            `json:"tenant_id"`
	AsOf         *time.Time           `json:"as_of,omitempty"`
	Groups       []BalanceReportGroup `json:"groups"`
	TotalDebits  decimal.Decimal      `json:"total_debits"`
	TotalCredits decimal.Decimal      `json:"total_credits"`
	Balanced     bool                 `json:"balanced"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// ValuationLine is one item/location row in a valuation report.
type ValuationLine struct {
	ItemID     uuid.UUID       `json:"item_id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	LocationID uuid.UUID       `json:"location_id"`
	OnHand     decimal.Decimal `json:"on_hand"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// ValuationGroup groups lines by item category.
type ValuationGroup struct {
	Category   string          `json:"category"`
	Lines      []ValuationLine `json:"lines"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// ValuationReport is the tenant-wide inventory valuation grouped by
// category.
type ValuationReport struct {
	TenantID    uuid.UUID        `json:"tenant_id"`
	Groups      []ValuationGroup `json:"groups"`
	TotalValue  decimal.Decimal  `json:"total_value"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Service builds aggregate reports by fanning per-entity balance reads
// out in parallel. Individual fetch failures degrade to warnings on a
// best-effort report instead of failing the whole call.
type Service struct {
	balances    BalanceReader
	inventories InventoryReader
	accounts    AccountLister
	items       ItemLister
	cache       *cache.TaggedCache
	perms       shared.PermissionChecker
	monitor     *monitor.Monitor
	logger      *zap.Logger
	reportTTL   time.Duration
	concurrency int
}

// Option is a functional option for configuring the service
type Option func(*Service)

// WithPermissionChecker sets the permission checker
func WithPermissionChecker(perms shared.PermissionChecker) Option {
	return func(s *Service) {
		s.perms = perms
	}
}

// WithMonitor sets the operation monitor
func WithMonitor(m *monitor.Monitor) Option {
	return func(s *Service) {
		s.monitor = m
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithReportTTL overrides the report cache TTL
func WithReportTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.reportTTL = ttl
		}
	}
}

// WithFetchConcurrency bounds the parallel per-entity fetches
func WithFetchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewService creates a new report Service
func NewService(balances BalanceReader, inventories InventoryReader, accounts AccountLister, items ItemLister, c *cache.TaggedCache, opts ...Option) *Service {
	s := &Service{
		balances:    balances,
		inventories: inventories,
		accounts:    accounts,
		items:       items,
		cache:       c,
		perms:       shared.AllowAllChecker{},
		monitor:     monitor.New(),
		logger:      zap.NewNop(),
		reportTTL:   DefaultReportTTL,
		concurrency: DefaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetBalanceReport builds the tenant's balance report grouped by account
// type, fetching per-account balances in parallel. An unbalanced ledger
// yields a warning, not an error; so does each account that failed to
// fetch.
func (s *Service) GetBalanceReport(ctx context.Context, tenantID, userID uuid.UUID, asOf *time.Time) shared.Result[BalanceReport] {
	tracked := s.monitor.Start(opBalanceReport)
	start := time.Now()

	res := s.getBalanceReport(ctx, tenantID, userID, asOf, tracked)
	if res.Metadata == nil {
		res = res.WithMetadata(shared.ResultMetadata{ComputedAt: time.Now()})
	}
	res.Metadata.DurationMs = time.Since(start).Milliseconds()

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *Service) getBalanceReport(ctx context.Context, tenantID, userID uuid.UUID, asOf *time.Time, tracked *monitor.Tracked) shared.Result[BalanceReport] {
	if tenantID == uuid.Nil {
		return shared.Fail[BalanceReport](shared.CodeValidationError, "tenant ID is required")
	}
	if res := checkPermission[BalanceReport](ctx, s.perms, userID, shared.OpGenerateReport, tenantID); res != nil {
		return *res
	}

	key := cache.Key(cache.DomainReport, tenantID, EntityBalanceReport, cache.AsOfToken(asOf), cache.FilterTokenNone)
	tags := []string{cache.TenantTag(tenantID)}

	// Only complete reports are cached; a build degraded by fetch
	// failures is handed back through degradedBuild so it reaches every
	// coalesced caller without outliving the failure.
	value, hit, err := s.cache.GetOrCompute(ctx, key, s.reportTTL, tags, func(computeCtx context.Context) (any, error) {
		report, warnings, err := s.buildBalanceReport(computeCtx, tenantID, userID, asOf)
		if err != nil {
			return nil, err
		}
		if len(warnings) > 0 {
			return nil, &degradedBuild{value: report, warnings: warnings}
		}
		return report, nil
	})
	if err != nil {
		var deg *degradedBuild
		if errors.As(err, &deg) {
			report := deg.value.(*BalanceReport)
			res := shared.OK(*report).WithMetadata(shared.ResultMetadata{ComputedAt: report.GeneratedAt})
			res.Warnings = append(res.Warnings, deg.warnings...)
			return s.withBalanceWarnings(res, report)
		}
		return shared.FailErr[BalanceReport](err)
	}

	tracked.SetCacheHit(hit)
	report := value.(*BalanceReport)
	res := shared.OK(*report).WithMetadata(shared.ResultMetadata{
		CacheHit:   hit,
		ComputedAt: report.GeneratedAt,
	})
	return s.withBalanceWarnings(res, report)
}

func (s *Service) buildBalanceReport(ctx context.Context, tenantID, userID uuid.UUID, asOf *time.Time) (*BalanceReport, []shared.ResultWarning, error) {
	accounts, err := s.accounts.ListAccounts(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	type fetched struct {
		balance *ledger.AccountBalance
		err     error
	}
	results := make([]fetched, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range accounts {
		g.Go(func() error {
			res := s.balances.GetAccountBalance(gctx, tenantID, userID, accounts[i].ID, asOf)
			if !res.Success {
				results[i].err = shared.NewDomainError(res.FirstErrorCode(), res.Errors[0].Message)
				return nil
			}
			results[i].balance = res.Data
			return nil
		})
	}
	// Goroutines report per-account failures through results, never as
	// group errors, so one bad account cannot cancel its siblings.
	_ = g.Wait()

	report := &BalanceReport{
		TenantID:     tenantID,
		AsOf:         asOf,
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
		GeneratedAt:  time.Now(),
	}

	groups := make(map[ledger.AccountType]*BalanceReportGroup)
	var warnings []shared.ResultWarning
	for i := range accounts {
		if results[i].err != nil {
			warnings = append(warnings, shared.ResultWarning{
				Code:    errCode(results[i].err),
				Message: fmt.Sprintf("account %s (%s): %s", accounts[i].Code, accounts[i].ID, results[i].err.Error()),
			})
			continue
		}
		b := results[i].balance
		group, ok := groups[b.AccountType]
		if !ok {
			group = &BalanceReportGroup{AccountType: b.AccountType, TotalBalance: decimal.Zero}
			groups[b.AccountType] = group
		}
		group.Lines = append(group.Lines, BalanceReportLine{
			AccountID:   b.AccountID,
			AccountCode: b.AccountCode,
			AccountName: b.AccountName,
			AccountType: b.AccountType,
			Debits:      b.CurrentDebits,
			Credits:     b.CurrentCredits,
			Balance:     b.CurrentBalance,
		})
		group.TotalBalance = group.TotalBalance.Add(b.CurrentBalance)
		report.TotalDebits = report.TotalDebits.Add(b.CurrentDebits)
		report.TotalCredits = report.TotalCredits.Add(b.CurrentCredits)
	}

	for _, accountType := range ledger.AllAccountTypes() {
		if group, ok := groups[accountType]; ok {
			report.Groups = append(report.Groups, *group)
		}
	}
	report.Balanced = report.TotalDebits.Equal(report.TotalCredits)

	return report, warnings, nil
}

// withBalanceWarnings appends the mismatch warning on unbalanced books.
func (s *Service) withBalanceWarnings(res shared.Result[BalanceReport], report *BalanceReport) shared.Result[BalanceReport] {
	if !report.Balanced {
		diff := report.TotalDebits.Sub(report.TotalCredits)
		res = res.WithWarning(shared.CodeBalanceMismatch,
			fmt.Sprintf("total debits and credits differ by %s", diff.String()))
	}
	return res
}

// GetValuationReport builds the tenant's inventory valuation grouped by
// item category, fetching per-pair balances in parallel.
func (s *Service) GetValuationReport(ctx context.Context, tenantID, userID uuid.UUID) shared.Result[ValuationReport] {
	tracked := s.monitor.Start(opValuationReport)
	start := time.Now()

	res := s.getValuationReport(ctx, tenantID, userID, tracked)
	if res.Metadata == nil {
		res = res.WithMetadata(shared.ResultMetadata{ComputedAt: time.Now()})
	}
	res.Metadata.DurationMs = time.Since(start).Milliseconds()

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *Service) getValuationReport(ctx context.Context, tenantID, userID uuid.UUID, tracked *monitor.Tracked) shared.Result[ValuationReport] {
	if tenantID == uuid.Nil {
		return shared.Fail[ValuationReport](shared.CodeValidationError, "tenant ID is required")
	}
	if res := checkPermission[ValuationReport](ctx, s.perms, userID, shared.OpGenerateReport, tenantID); res != nil {
		return *res
	}

	key := cache.Key(cache.DomainReport, tenantID, EntityValuationReport, cache.RangeTokenCurrent, cache.FilterTokenNone)
	tags := []string{cache.TenantTag(tenantID)}

	value, hit, err := s.cache.GetOrCompute(ctx, key, s.reportTTL, tags, func(computeCtx context.Context) (any, error) {
		report, warnings, err := s.buildValuationReport(computeCtx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		if len(warnings) > 0 {
			return nil, &degradedBuild{value: report, warnings: warnings}
		}
		return report, nil
	})
	if err != nil {
		var deg *degradedBuild
		if errors.As(err, &deg) {
			report := deg.value.(*ValuationReport)
			res := shared.OK(*report).WithMetadata(shared.ResultMetadata{ComputedAt: report.GeneratedAt})
			res.Warnings = append(res.Warnings, deg.warnings...)
			return res
		}
		return shared.FailErr[ValuationReport](err)
	}

	tracked.SetCacheHit(hit)
	report := value.(*ValuationReport)
	return shared.OK(*report).WithMetadata(shared.ResultMetadata{
		CacheHit:   hit,
		ComputedAt: report.GeneratedAt,
	})
}

func (s *Service) buildValuationReport(ctx context.Context, tenantID, userID uuid.UUID) (*ValuationReport, []shared.ResultWarning, error) {
	items, err := s.items.ListItems(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}

	type pair struct {
		item       inventory.ItemMetadata
		locationID uuid.UUID
	}
	var pairs []pair
	for _, item := range items {
		locations, err := s.items.ListLocations(ctx, tenantID, item.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, locationID := range locations {
			pairs = append(pairs, pair{item: item, locationID: locationID})
		}
	}

	type fetched struct {
		balance *inventory.InventoryBalance
		err     error
	}
	results := make([]fetched, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range pairs {
		g.Go(func() error {
			res := s.inventories.GetBalance(gctx, tenantID, userID, pairs[i].item.ID, pairs[i].locationID)
			if !res.Success {
				results[i].err = shared.NewDomainError(res.FirstErrorCode(), res.Errors[0].Message)
				return nil
			}
			results[i].balance = res.Data
			return nil
		})
	}
	_ = g.Wait()

	report := &ValuationReport{
		TenantID:    tenantID,
		TotalValue:  decimal.Zero,
		GeneratedAt: time.Now(),
	}

	groups := make(map[string]*ValuationGroup)
	var groupOrder []string
	var warnings []shared.ResultWarning
	for i := range pairs {
		if results[i].err != nil {
			warnings = append(warnings, shared.ResultWarning{
				Code:    errCode(results[i].err),
				Message: fmt.Sprintf("item %s location %s: %s", pairs[i].item.SKU, pairs[i].locationID, results[i].err.Error()),
			})
			continue
		}
		b := results[i].balance
		category := pairs[i].item.Category
		if category == "" {
			category = "uncategorized"
		}
		group, ok := groups[category]
		if !ok {
			group = &ValuationGroup{Category: category, TotalValue: decimal.Zero}
			groups[category] = group
			groupOrder = append(groupOrder, category)
		}
		group.Lines = append(group.Lines, ValuationLine{
			ItemID:     pairs[i].item.ID,
			SKU:        pairs[i].item.SKU,
			Name:       pairs[i].item.Name,
			Category:   category,
			LocationID: pairs[i].locationID,
			OnHand:     b.QuantityOnHand,
			UnitCost:   b.AverageCost,
			TotalValue: b.TotalValue,
		})
		group.TotalValue = group.TotalValue.Add(b.TotalValue)
		report.TotalValue = report.TotalValue.Add(b.TotalValue)
	}

	for _, category := range groupOrder {
		report.Groups = append(report.Groups, *groups[category])
	}

	return report, warnings, nil
}

// Report entity tokens in cache keys.
const (
	EntityBalanceReport   = "balance-report"
	EntityValuationReport = "valuation-report"
)

// degradedBuild carries a best-effort report out of a coalesced build
// without letting the cache store it.
type degradedBuild struct {
	value    any
	warnings []shared.ResultWarning
}

func (e *degradedBuild) Error() string {
	return "report build degraded by fetch failures"
}

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

func errCode(err error) string {
	if derr, ok := err.(*shared.DomainError); ok {
		return derr.Code
	}
	return shared.CodeDatabaseError
}

func resultErr(success bool) error {
	if success {
		return nil
	}
	return shared.NewDomainError(shared.CodeDatabaseError, "operation failed")
}
