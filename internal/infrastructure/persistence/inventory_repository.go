package persistence

import (
	"context"
	"errors"

	"github.com/finbooks/backend/internal/domain/inventory"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTransactionRepository implements inventory.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

var _ inventory.TransactionRepository = (*GormTransactionRepository)(nil)

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// Insert durably appends one inventory movement
func (r *GormTransactionRepository) Insert(ctx context.Context, tx *inventory.InventoryTransaction) (uuid.UUID, error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return uuid.Nil, err
	}
	return tx.ID, nil
}

// Query returns movements for the tenant/item/location within the date
// range, ordered by date ascending
func (r *GormTransactionRepository) Query(ctx context.Context, tenantID, itemID, locationID uuid.UUID, dateRange inventory.DateRange) ([]inventory.InventoryTransaction, error) {
	query := r.db.WithContext(ctx).Model(&inventory.InventoryTransaction{}).
		Where("tenant_id = ? AND item_id = ? AND location_id = ?", tenantID, itemID, locationID)

	if dateRange.From != nil {
		query = query.Where("date >= ?", *dateRange.From)
	}
	if dateRange.To != nil {
		query = query.Where("date <= ?", *dateRange.To)
	}

	var txs []inventory.InventoryTransaction
	if err := query.Order("date ASC, created_at ASC").Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// ItemMetadata fetches the item descriptor for the tenant
func (r *GormTransactionRepository) ItemMetadata(ctx context.Context, tenantID, itemID uuid.UUID) (*inventory.ItemMetadata, error) {
	var meta inventory.ItemMetadata
	err := r.db.WithContext(ctx).
		First(&meta, "tenant_id = ? AND id = ?", tenantID, itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrItemNotFound
		}
		return nil, err
	}
	return &meta, nil
}

// ListItems returns every item the tenant owns, ordered by SKU
func (r *GormTransactionRepository) ListItems(ctx context.Context, tenantID uuid.UUID) ([]inventory.ItemMetadata, error) {
	var items []inventory.ItemMetadata
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("sku ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ListLocations returns the distinct locations with movements for the item
func (r *GormTransactionRepository) ListLocations(ctx context.Context, tenantID, itemID uuid.UUID) ([]uuid.UUID, error) {
	var locations []uuid.UUID
	err := r.db.WithContext(ctx).Model(&inventory.InventoryTransaction{}).
		Where("tenant_id = ? AND item_id = ?", tenantID, itemID).
		Distinct("location_id").
		Order("location_id ASC").
		Pluck("location_id", &locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}
