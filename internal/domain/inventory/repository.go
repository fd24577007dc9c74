package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DateRange bounds a transaction query. Nil endpoints are unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// TransactionRepository is the abstract append-only movement store,
// consumed but never implemented by the balance engine. All queries are
// scoped by tenant.
type TransactionRepository interface {
	// Insert durably appends one movement and returns its id.
	Insert(ctx context.Context, tx *InventoryTransaction) (uuid.UUID, error)
	// Query returns movements for the tenant+item+location within the
	// range, ordered by date ascending.
	Query(ctx context.Context, tenantID, itemID, locationID uuid.UUID, dateRange DateRange) ([]InventoryTransaction, error)
	// ItemMetadata fetches the item descriptor, or shared.ErrItemNotFound
	// when absent for the tenant.
	ItemMetadata(ctx context.Context, tenantID, itemID uuid.UUID) (*ItemMetadata, error)
	// ListItems returns every item the tenant owns.
	ListItems(ctx context.Context, tenantID uuid.UUID) ([]ItemMetadata, error)
	// ListLocations returns the distinct location ids that have movements
	// for the item.
	ListLocations(ctx context.Context, tenantID, itemID uuid.UUID) ([]uuid.UUID, error)
}
