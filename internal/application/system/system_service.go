// Package system provides operational endpoints over the cache, the
// operation monitor, and the backing store.
package system

import (
	"context"
	"time"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/infrastructure/cache"
	"github.com/finbooks/backend/internal/infrastructure/monitor"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pinger reports reachability of the backing store.
type Pinger interface {
	Ping() error
}

// HealthStatus is the aggregate health view.
type HealthStatus struct {
	Status    string      `json:"status"`
	Database  string      `json:"database"`
	CacheSize int         `json:"cache_size"`
	Samples   int         `json:"samples"`
	CheckedAt time.Time   `json:"checked_at"`
	Stats     cache.Stats `json:"cache_stats"`
}

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Service exposes cache administration, performance metrics, and health.
type Service struct {
	cache   *cache.TaggedCache
	monitor *monitor.Monitor
	db      Pinger
	perms   shared.PermissionChecker
	logger  *zap.Logger
}

// Option is a functional option for configuring the service
type Option func(*Service)

// WithPermissionChecker sets the permission checker
func WithPermissionChecker(perms shared.PermissionChecker) Option {
	return func(s *Service) {
		s.perms = perms
	}
}

// WithPinger sets the store reachability probe
func WithPinger(db Pinger) Option {
	return func(s *Service) {
		s.db = db
	}
}

// WithLogger sets the logger for the service
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new system Service
func NewService(c *cache.TaggedCache, m *monitor.Monitor, opts ...Option) *Service {
	s := &Service{
		cache:   c,
		monitor: m,
		perms:   shared.AllowAllChecker{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClearCaches drops every cached entry, or only the tenant's entries
// when tenantID is set. Returns the number of entries removed.
func (s *Service) ClearCaches(ctx context.Context, tenantID, userID uuid.UUID) shared.Result[int] {
	if res := checkPermission[int](ctx, s.perms, userID, shared.OpManageCaches, tenantID); res != nil {
		return *res
	}

	var removed int
	if tenantID == uuid.Nil {
		removed = s.cache.Size()
		s.cache.Clear()
	} else {
		removed = s.cache.InvalidateByTags([]string{cache.TenantTag(tenantID)})
	}

	s.logger.Info("Cleared caches",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("removed", removed))
	return shared.OK(removed)
}

// GetCacheStats returns a snapshot of cache counters.
func (s *Service) GetCacheStats(ctx context.Context, tenantID, userID uuid.UUID) shared.Result[cache.Stats] {
	if res := checkPermission[cache.Stats](ctx, s.perms, userID, shared.OpReadPerformance, tenantID); res != nil {
		return *res
	}
	return shared.OK(s.cache.Stats())
}

// GetPerformanceMetrics returns the aggregated operation report.
func (s *Service) GetPerformanceMetrics(ctx context.Context, tenantID, userID uuid.UUID) shared.Result[monitor.Report] {
	if res := checkPermission[monitor.Report](ctx, s.perms, userID, shared.OpReadPerformance, tenantID); res != nil {
		return *res
	}
	return shared.OK(s.monitor.Report())
}

// HealthCheck probes the backing store and reports cache and monitor
// occupancy. A failing store degrades the status instead of erroring.
func (s *Service) HealthCheck(ctx context.Context) shared.Result[HealthStatus] {
	status := HealthStatus{
		Status:    StatusHealthy,
		Database:  "ok",
		CacheSize: s.cache.Size(),
		Samples:   s.monitor.SampleCount(),
		CheckedAt: time.Now(),
		Stats:     s.cache.Stats(),
	}

	if s.db != nil {
		if err := s.db.Ping(); err != nil {
			status.Status = StatusDegraded
			status.Database = err.Error()
			s.logger.Warn("Health check found database unreachable", zap.Error(err))
		}
	}

	return shared.OK(status)
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
