package persistence

import (
	"context"
	"errors"

	"github.com/finbooks/backend/internal/domain/ledger"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormEntryRepository implements ledger.EntryRepository using GORM
type GormEntryRepository struct {
	db *gorm.DB
}

var _ ledger.EntryRepository = (*GormEntryRepository)(nil)

// NewGormEntryRepository creates a new GormEntryRepository
func NewGormEntryRepository(db *gorm.DB) *GormEntryRepository {
	return &GormEntryRepository{db: db}
}

// Insert durably appends one ledger entry
func (r *GormEntryRepository) Insert(ctx context.Context, entry *ledger.LedgerEntry) (uuid.UUID, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return uuid.Nil, err
	}
	return entry.ID, nil
}

// Query returns entries for the tenant/account within the date range,
// ordered by entry date ascending
func (r *GormEntryRepository) Query(ctx context.Context, tenantID, accountID uuid.UUID, dateRange ledger.DateRange, filter ledger.EntryFilter) ([]ledger.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Model(&ledger.LedgerEntry{}).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID)

	if dateRange.From != nil {
		query = query.Where("entry_date >= ?", *dateRange.From)
	}
	if dateRange.To != nil {
		query = query.Where("entry_date <= ?", *dateRange.To)
	}
	if filter.Reconciled != nil {
		query = query.Where("reconciled = ?", *filter.Reconciled)
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", filter.Currency)
	}
	if filter.MinAmount != nil {
		query = query.Where("debit + credit >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("debit + credit <= ?", *filter.MaxAmount)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var entries []ledger.LedgerEntry
	if err := query.Order("entry_date ASC, created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// AccountMetadata fetches the account descriptor for the tenant
func (r *GormEntryRepository) AccountMetadata(ctx context.Context, tenantID, accountID uuid.UUID) (*ledger.AccountMetadata, error) {
	var meta ledger.AccountMetadata
	err := r.db.WithContext(ctx).
		First(&meta, "tenant_id = ? AND id = ?", tenantID, accountID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrAccountNotFound
		}
		return nil, err
	}
	return &meta, nil
}

// ListAccounts returns every account the tenant owns, ordered by code
func (r *GormEntryRepository) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]ledger.AccountMetadata, error) {
	var accounts []ledger.AccountMetadata
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("code ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// MarkReconciled flags the given entries as reconciled
func (r *GormEntryRepository) MarkReconciled(ctx context.Context, tenantID, accountID uuid.UUID, entryIDs []uuid.UUID) error {
	if len(entryIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&ledger.LedgerEntry{}).
		Where("tenant_id = ? AND account_id = ? AND id IN ?", tenantID, accountID, entryIDs).
		Update("reconciled", true).Error
}
