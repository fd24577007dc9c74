// Package inventory provides application-level inventory balance and
// movement operations.
package inventory

import (
	"context"
	"time"

	"github.com/finbooks/backend/internal/domain/inventory"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/finbooks/backend/internal/infrastructure/monitor"
	"github.com/finbooks/backend/internal/infrastructure/strategy/cost"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultBalanceTTL bounds staleness for inventory balance reads that
// miss an invalidation (e.g. another instance without fan-out).
const DefaultBalanceTTL = 2 * time.Minute

// Operation names recorded by the monitor.
const (
	opGetBalance        = "inventory.get_balance"
	opRecordTransaction = "inventory.record_transaction"
	opEstimateCost      = "inventory.estimate_cost"
)

// InvalidationPublisher fans invalidations out to other instances.
// Optional; a publish failure never fails the write.
type InvalidationPublisher interface {
	PublishTags(ctx context.Context, tags []string) error
	PublishPattern(ctx context.Context, pattern string) error
}

// Service computes, caches, and invalidates inventory balances, and
// prices issues under the configured costing method.
type Service struct {
	repo           inventory.TransactionRepository
	cache          *cache.TaggedCache
	perms          shared.PermissionChecker
	monitor        *monitor.Monitor
	publisher      InvalidationPublisher
	strategies     *cost.Registry
	logger         *zap.Logger
	balanceTTL     time.Duration
	defaultMethod  strategy.CostMethod
	rejectNegative bool
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

// WithPublisher sets the cross-instance invalidation publisher
func WithPublisher(p InvalidationPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithBalanceTTL overrides the balance cache TTL
func WithBalanceTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.balanceTTL = ttl
		}
	}
}

// WithDefaultCostMethod sets the costing method used when a caller does
// not request one. Ignored when the method is not registered.
func WithDefaultCostMethod(method strategy.CostMethod) Option {
	return func(s *Service) {
		if method.IsValid() {
			s.defaultMethod = method
		}
	}
}

// WithNegativeInventoryRejection makes decreasing movements fail when
// they would drive available quantity below zero. Off by default; the
// ledger of movements stays append-only either way.
func WithNegativeInventoryRejection(reject bool) Option {
	return func(s *Service) {
		s.rejectNegative = reject
	}
}

// NewService creates a new inventory Service
func NewService(repo inventory.TransactionRepository, c *cache.TaggedCache, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		cache:      c,
		perms:      shared.AllowAllChecker{},
		monitor:    monitor.New(),
		strategies: cost.NewRegistry(),
		logger:     zap.NewNop(),
		balanceTTL: DefaultBalanceTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetBalance returns the derived balance for an item/location pair.
// Concurrent misses for the same key coalesce into one store query.
func (s *Service) GetBalance(ctx context.Context, tenantID, userID, itemID, locationID uuid.UUID) shared.Result[inventory.InventoryBalance] {
	tracked := s.monitor.Start(opGetBalance)
	start := time.Now()

	res := s.getBalance(ctx, tenantID, userID, itemID, locationID, tracked)
	if res.Metadata == nil {
		res = res.WithMetadata(shared.ResultMetadata{ComputedAt: time.Now()})
	}
	res.Metadata.DurationMs = time.Since(start).Milliseconds()

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *Service) getBalance(ctx context.Context, tenantID, userID, itemID, locationID uuid.UUID, tracked *monitor.Tracked) shared.Result[inventory.InventoryBalance] {
	if tenantID == uuid.Nil || itemID == uuid.Nil || locationID == uuid.Nil {
		return shared.Fail[inventory.InventoryBalance](shared.CodeValidationError, "tenant, item, and location IDs are required")
	}
	if res := checkPermission[inventory.InventoryBalance](ctx, s.perms, userID, shared.OpReadInventory, tenantID); res != nil {
		return *res
	}

	key := cache.Key(cache.DomainInventory, tenantID,
		cache.ItemLocationEntity(itemID, locationID), cache.RangeTokenCurrent, cache.FilterTokenNone)
	tags := []string{cache.TenantTag(tenantID), cache.ItemTag(itemID), cache.LocationTag(locationID)}

	value, hit, err := s.cache.GetOrCompute(ctx, key, s.balanceTTL, tags, func(computeCtx context.Context) (any, error) {
		return s.computeBalance(computeCtx, tenantID, itemID, locationID)
	})
	if err != nil {
		return shared.FailErr[inventory.InventoryBalance](err)
	}

	tracked.SetCacheHit(hit)
	balance := value.(*inventory.InventoryBalance)
	return shared.OK(*balance).WithMetadata(shared.ResultMetadata{
		CacheHit:   hit,
		ComputedAt: balance.ComputedAt,
	})
}

func (s *Service) computeBalance(ctx context.Context, tenantID, itemID, locationID uuid.UUID) (*inventory.InventoryBalance, error) {
	meta, err := s.repo.ItemMetadata(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.Query(ctx, tenantID, itemID, locationID, inventory.DateRange{})
	if err != nil {
		return nil, err
	}
	return inventory.ComputeInventoryBalance(meta, locationID, txs), nil
}

// RecordTransactionInput is the write-path request payload.
type RecordTransactionInput struct {
	ItemID     uuid.UUID                 `json:"item_id"`
	LocationID uuid.UUID                 `json:"location_id"`
	Type       inventory.TransactionType `json:"type"`
	Quantity   decimal.Decimal           `json:"quantity"`
	UnitCost   decimal.Decimal           `json:"unit_cost"`
	Date       time.Time                 `json:"date"`
	Reference  string                    `json:"reference"`
}

// RecordTransaction validates and durably appends one movement, then
// synchronously invalidates the pair's cached balance before returning.
// With negative rejection enabled, a decreasing movement that would
// overdraw available quantity fails before anything is written.
func (s *Service) RecordTransaction(ctx context.Context, tenantID, userID uuid.UUID, input RecordTransactionInput) shared.Result[inventory.InventoryTransaction] {
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

func (s *Service) recordTransaction(ctx context.Context, tenantID, userID uuid.UUID, input RecordTransactionInput) shared.Result[inventory.InventoryTransaction] {
	if res := checkPermission[inventory.InventoryTransaction](ctx, s.perms, userID, shared.OpPostInventory, tenantID); res != nil {
		return *res
	}

	tx, err := inventory.NewInventoryTransaction(tenantID, input.ItemID, input.LocationID,
		input.Type, input.Quantity, input.UnitCost, input.Date, input.Reference)
	if err != nil {
		return shared.FailErr[inventory.InventoryTransaction](err)
	}

	if _, err := s.repo.ItemMetadata(ctx, tenantID, input.ItemID); err != nil {
		return shared.FailErr[inventory.InventoryTransaction](err)
	}

	if s.rejectNegative && tx.Type.DecreasesQuantity() {
		balance, err := s.computeBalance(ctx, tenantID, input.ItemID, input.LocationID)
		if err != nil {
			return shared.FailErr[inventory.InventoryTransaction](err)
		}
		if balance.QuantityAvailable.LessThan(input.Quantity) {
			return shared.Fail[inventory.InventoryTransaction](shared.CodeInsufficientQuantity,
				"movement would overdraw available quantity "+balance.QuantityAvailable.String())
		}
	}

	if _, err := s.repo.Insert(ctx, tx); err != nil {
		s.logger.Error("Failed to insert inventory transaction",
			zap.String("tenant_id", tenantID.String()),
			zap.String("item_id", input.ItemID.String()),
			zap.Error(err))
		return shared.FailErr[inventory.InventoryTransaction](err)
	}

	// The movement is durable; invalidate before returning so the
	// caller's next read recomputes.
	s.invalidatePair(ctx, tenantID, input.ItemID, input.LocationID)

	s.logger.Info("Recorded inventory transaction",
		zap.String("tenant_id", tenantID.String()),
		zap.String("item_id", input.ItemID.String()),
		zap.String("type", string(tx.Type)),
		zap.String("tx_id", tx.ID.String()))

	return shared.OK(*tx)
}

// EstimateIssueCost prices a hypothetical issue of the given quantity
// under the requested costing method, consuming the pair's receipt
// layers. Nothing is written.
func (s *Service) EstimateIssueCost(ctx context.Context, tenantID, userID, itemID, locationID uuid.UUID, quantity decimal.Decimal, method strategy.CostMethod) shared.Result[strategy.CostResult] {
	tracked := s.monitor.Start(opEstimateCost)
	start := time.Now()

	res := s.estimateIssueCost(ctx, tenantID, userID, itemID, locationID, quantity, method)
	res = res.WithMetadata(shared.ResultMetadata{
		DurationMs: time.Since(start).Milliseconds(),
		ComputedAt: time.Now(),
	})

	tracked.SetErrorCode(res.FirstErrorCode())
	tracked.End(ctx, resultErr(res.Success))
	return res
}

func (s *Service) estimateIssueCost(ctx context.Context, tenantID, userID, itemID, locationID uuid.UUID, quantity decimal.Decimal, method strategy.CostMethod) shared.Result[strategy.CostResult] {
	if quantity.LessThanOrEqual(decimal.Zero) {
		return shared.Fail[strategy.CostResult](shared.CodeValidationError, "quantity must be positive")
	}
	if res := checkPermission[strategy.CostResult](ctx, s.perms, userID, shared.OpReadInventory, tenantID); res != nil {
		return *res
	}

	if method == "" {
		method = s.defaultMethod
	}
	strat := s.strategies.Default()
	if method != "" {
		var err error
		strat, err = s.strategies.Get(method)
		if err != nil {
			return shared.FailErr[strategy.CostResult](err)
		}
	}

	txs, err := s.repo.Query(ctx, tenantID, itemID, locationID, inventory.DateRange{})
	if err != nil {
		return shared.FailErr[strategy.CostResult](err)
	}

	layers := receiptLayers(txs)
	result, err := strat.CalculateCost(ctx, strategy.CostContext{
		TenantID:   tenantID,
		ItemID:     itemID,
		LocationID: locationID,
		Quantity:   quantity,
		Date:       time.Now(),
	}, layers)
	if err != nil {
		return shared.FailErr[strategy.CostResult](err)
	}
	return shared.OK(result)
}

// receiptLayers converts increasing movements into open cost layers,
// oldest first.
func receiptLayers(txs []inventory.InventoryTransaction) []strategy.StockEntry {
	var layers []strategy.StockEntry
	for i := range txs {
		tx := txs[i]
		if !tx.Type.IncreasesQuantity() {
			continue
		}
		layers = append(layers, strategy.StockEntry{
			ID:        tx.ID,
			ItemID:    tx.ItemID,
			Quantity:  tx.Quantity,
			UnitCost:  tx.UnitCost,
			TotalCost: tx.Quantity.Mul(tx.UnitCost),
			EntryDate: tx.Date,
			Reference: tx.Reference,
		})
	}
	return layers
}

// invalidatePair drops the pair's cached balance and the tenant's report
// aggregates, locally and (best effort) on other instances.
func (s *Service) invalidatePair(ctx context.Context, tenantID, itemID, locationID uuid.UUID) {
	tags := []string{cache.ItemTag(itemID), cache.LocationTag(locationID)}
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

func resultErr(success bool) error {
	if success {
		return nil
	}
	return shared.NewDomainError(shared.CodeDatabaseError, "operation failed")
}
