package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateRange bounds a query. Nil endpoints are unbounded. From is
// inclusive, To is inclusive of the whole instant.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// EntryFilter narrows an entry query beyond tenant/account/date.
type EntryFilter struct {
	Reconciled *bool
	Currency   string
	MinAmount  *decimal.Decimal
	MaxAmount  *decimal.Decimal
	Limit      int
	Offset     int
}

// Matches reports whether the entry satisfies the filter predicates
// (limit/offset excluded; those apply to the result set).
func (f EntryFilter) Matches(e *LedgerEntry) bool {
	if f.Reconciled != nil && e.Reconciled != *f.Reconciled {
		return false
	}
	if f.Currency != "" && string(e.Currency) != f.Currency {
		return false
	}
	amount := e.Debit.Add(e.Credit)
	if f.MinAmount != nil && amount.LessThan(*f.MinAmount) {
		return false
	}
	if f.MaxAmount != nil && amount.GreaterThan(*f.MaxAmount) {
		return false
	}
	return true
}

// EntryRepository is the abstract append-only transaction store. The core
// consumes it, never implements retry or schema concerns. All queries are
// scoped by tenant.
type EntryRepository interface {
	// Insert durably appends one entry and returns its id.
	Insert(ctx context.Context, entry *LedgerEntry) (uuid.UUID, error)
	// Query returns entries for the tenant+account within the range,
	// ordered by entry date ascending.
	Query(ctx context.Context, tenantID, accountID uuid.UUID, dateRange DateRange, filter EntryFilter) ([]LedgerEntry, error)
	// AccountMetadata fetches account descriptors, or
	// shared.ErrAccountNotFound when absent for the tenant.
	AccountMetadata(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountMetadata, error)
	// ListAccounts returns every account the tenant owns.
	ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]AccountMetadata, error)
	// MarkReconciled flags the given entries as reconciled. The entries
	// themselves stay immutable in every other respect.
	MarkReconciled(ctx context.Context, tenantID, accountID uuid.UUID, entryIDs []uuid.UUID) error
}
