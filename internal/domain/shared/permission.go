package shared

import (
	"context"

	"github.com/google/uuid"
)

// Operation names consulted against the permission collaborator before
// every balance/report read and every mutating write.
const (
	OpReadBalance      = "ledger.balance.read"
	OpReadHistory      = "ledger.history.read"
	OpPostTransaction  = "ledger.transaction.post"
	OpReadInventory    = "inventory.balance.read"
	OpPostInventory    = "inventory.transaction.post"
	OpGenerateReport   = "report.generate"
	OpManageCaches     = "system.caches.manage"
	OpReadPerformance  = "system.performance.read"
	OpMarkReconciled   = "ledger.reconciliation.mark"
	OpReadSystemHealth = "system.health.read"
)

// PermissionChecker is the external authorization collaborator. The core
// never implements permission logic; it only consults this interface.
// All queries are scoped by tenant - cross-tenant leakage is a
// correctness violation.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID uuid.UUID, operation string, tenantID uuid.UUID) (bool, error)
}

// AllowAllChecker grants every permission. Intended for tests and
// single-user deployments where authorization is handled upstream.
type AllowAllChecker struct{}

// HasPermission always returns true.
func (AllowAllChecker) HasPermission(ctx context.Context, userID uuid.UUID, operation string, tenantID uuid.UUID) (bool, error) {
	return true, nil
}
