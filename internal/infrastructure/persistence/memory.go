package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finbooks/backend/internal/domain/inventory"
	"github.com/finbooks/backend/internal/domain/ledger"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// InMemoryEntryRepository is a ledger.EntryRepository backed by process
// memory. It mirrors the SQL repository's ordering and not-found
// semantics so services behave identically against either store. Used by
// tests and local development.
type InMemoryEntryRepository struct {
	mu       sync.RWMutex
	entries  []ledger.LedgerEntry
	accounts map[uuid.UUID]ledger.AccountMetadata
}

var _ ledger.EntryRepository = (*InMemoryEntryRepository)(nil)

// NewInMemoryEntryRepository creates an empty in-memory entry store.
func NewInMemoryEntryRepository() *InMemoryEntryRepository {
	return &InMemoryEntryRepository{
		accounts: make(map[uuid.UUID]ledger.AccountMetadata),
	}
}

// SeedAccount registers an account descriptor.
func (r *InMemoryEntryRepository) SeedAccount(meta ledger.AccountMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[meta.ID] = meta
}

// Insert appends one entry.
func (r *InMemoryEntryRepository) Insert(ctx context.Context, entry *ledger.LedgerEntry) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	r.entries = append(r.entries, *entry)
	return entry.ID, nil
}

// Query returns matching entries ordered by entry date ascending.
func (r *InMemoryEntryRepository) Query(ctx context.Context, tenantID, accountID uuid.UUID, dateRange ledger.DateRange, filter ledger.EntryFilter) ([]ledger.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ledger.LedgerEntry
	for i := range r.entries {
		e := r.entries[i]
		if e.TenantID != tenantID || e.AccountID != accountID {
			continue
		}
		if !dateRange.Contains(e.EntryDate) {
			continue
		}
		if !filter.Matches(&e) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].EntryDate.Before(out[j].EntryDate)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AccountMetadata fetches an account descriptor.
func (r *InMemoryEntryRepository) AccountMetadata(ctx context.Context, tenantID, accountID uuid.UUID) (*ledger.AccountMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.accounts[accountID]
	if !ok || meta.TenantID != tenantID {
		return nil, shared.ErrAccountNotFound
	}
	return &meta, nil
}

// ListAccounts returns the tenant's accounts ordered by code.
func (r *InMemoryEntryRepository) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]ledger.AccountMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ledger.AccountMetadata
	for _, meta := range r.accounts {
		if meta.TenantID == tenantID {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// MarkReconciled flags the given entries as reconciled.
func (r *InMemoryEntryRepository) MarkReconciled(ctx context.Context, tenantID, accountID uuid.UUID, entryIDs []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make(map[uuid.UUID]struct{}, len(entryIDs))
	for _, id := range entryIDs {
		ids[id] = struct{}{}
	}
	for i := range r.entries {
		e := &r.entries[i]
		if e.TenantID != tenantID || e.AccountID != accountID {
			continue
		}
		if _, ok := ids[e.ID]; ok {
			e.Reconciled = true
		}
	}
	return nil
}

// InMemoryTransactionRepository is an inventory.TransactionRepository
// backed by process memory.
type InMemoryTransactionRepository struct {
	mu    sync.RWMutex
	txs   []inventory.InventoryTransaction
	items map[uuid.UUID]inventory.ItemMetadata
}

var _ inventory.TransactionRepository = (*InMemoryTransactionRepository)(nil)

// NewInMemoryTransactionRepository creates an empty in-memory movement store.
func NewInMemoryTransactionRepository() *InMemoryTransactionRepository {
	return &InMemoryTransactionRepository{
		items: make(map[uuid.UUID]inventory.ItemMetadata),
	}
}

// SeedItem registers an item descriptor.
func (r *InMemoryTransactionRepository) SeedItem(meta inventory.ItemMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[meta.ID] = meta
}

// Insert appends one movement.
func (r *InMemoryTransactionRepository) Insert(ctx context.Context, tx *inventory.InventoryTransaction) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	r.txs = append(r.txs, *tx)
	return tx.ID, nil
}

// Query returns matching movements ordered by date ascending.
func (r *InMemoryTransactionRepository) Query(ctx context.Context, tenantID, itemID, locationID uuid.UUID, dateRange inventory.DateRange) ([]inventory.InventoryTransaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []inventory.InventoryTransaction
	for i := range r.txs {
		tx := r.txs[i]
		if tx.TenantID != tenantID || tx.ItemID != itemID || tx.LocationID != locationID {
			continue
		}
		if dateRange.From != nil && tx.Date.Before(*dateRange.From) {
			continue
		}
		if dateRange.To != nil && tx.Date.After(*dateRange.To) {
			continue
		}
		out = append(out, tx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// ItemMetadata fetches an item descriptor.
func (r *InMemoryTransactionRepository) ItemMetadata(ctx context.Context, tenantID, itemID uuid.UUID) (*inventory.ItemMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.items[itemID]
	if !ok || meta.TenantID != tenantID {
		return nil, shared.ErrItemNotFound
	}
	return &meta, nil
}

// ListItems returns the tenant's items ordered by SKU.
func (r *InMemoryTransactionRepository) ListItems(ctx context.Context, tenantID uuid.UUID) ([]inventory.ItemMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []inventory.ItemMetadata
	for _, meta := range r.items {
		if meta.TenantID == tenantID {
			out = append(out, meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

// ListLocations returns the distinct locations with movements for the item.
func (r *InMemoryTransactionRepository) ListLocations(ctx context.Context, tenantID, itemID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	var out []uuid.UUID
	for i := range r.txs {
		tx := r.txs[i]
		if tx.TenantID != tenantID || tx.ItemID != itemID {
			continue
		}
		if _, ok := seen[tx.LocationID]; ok {
			continue
		}
		seen[tx.LocationID] = struct{}{}
		out = append(out, tx.LocationID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
