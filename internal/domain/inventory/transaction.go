package inventory

import (
	"time"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies an inventory movement.
type TransactionType string

const (
	TransactionTypeReceipt     TransactionType = "RECEIPT"
	TransactionTypeIssue       TransactionType = "ISSUE"
	TransactionTypeAdjustment  TransactionType = "ADJUSTMENT"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
	TransactionTypeAllocation  TransactionType = "ALLOCATION"
	TransactionTypeRelease     TransactionType = "RELEASE"
	TransactionTypeReservation TransactionType = "RESERVATION"
)

// IsValid checks if the transaction type is valid
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeReceipt, TransactionTypeIssue, TransactionTypeAdjustment,
		TransactionTypeTransferIn, TransactionTypeTransferOut,
		TransactionTypeAllocation, TransactionTypeRelease, TransactionTypeReservation:
		return true
	}
	return false
}

// IncreasesQuantity reports whether the movement adds to on-hand stock.
// Only these movements trigger a weighted-average cost recomputation.
func (t TransactionType) IncreasesQuantity() bool {
	switch t {
	case TransactionTypeReceipt, TransactionTypeTransferIn:
		return true
	}
	return false
}

// DecreasesQuantity reports whether the movement removes on-hand stock.
func (t TransactionType) DecreasesQuantity() bool {
	switch t {
	case TransactionTypeIssue, TransactionTypeTransferOut:
		return true
	}
	return false
}

// InventoryTransaction is one immutable movement against an item/location
// pair. Like ledger entries, transactions are append-only.
type InventoryTransaction struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID   uuid.UUID       `json:"tenant_id" gorm:"type:uuid;not null;index:idx_inventory_tx_scope,priority:1"`
	ItemID     uuid.UUID       `json:"item_id" gorm:"type:uuid;not null;index:idx_inventory_tx_scope,priority:2"`
	LocationID uuid.UUID       `json:"location_id" gorm:"type:uuid;not null;index:idx_inventory_tx_scope,priority:3"`
	Type       TransactionType `json:"type" gorm:"type:varchar(20);not null"`
	Quantity   decimal.Decimal `json:"quantity" gorm:"type:decimal(18,4);not null"`
	UnitCost   decimal.Decimal `json:"unit_cost" gorm:"type:decimal(18,4);not null;default:0"`
	Date       time.Time       `json:"date" gorm:"not null;index"`
	Reference  string          `json:"reference,omitempty" gorm:"size:100"`
	CreatedAt  time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (InventoryTransaction) TableName() string {
	return "inventory_transactions"
}

// NewInventoryTransaction creates a validated movement ready for posting.
func NewInventoryTransaction(tenantID, itemID, locationID uuid.UUID, txType TransactionType, quantity, unitCost decimal.Decimal, date time.Time, reference string) (*InventoryTransaction, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Tenant ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Item ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Location ID cannot be empty")
	}
	if !txType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Unknown transaction type")
	}
	if quantity.LessThanOrEqual(decimal.Zero) && txType != TransactionTypeAdjustment {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Unit cost cannot be negative")
	}
	if date.IsZero() {
		date = time.Now()
	}

	return &InventoryTransaction{
		ID:         uuid.New(),
		TenantID:   tenantID,
		ItemID:     itemID,
		LocationID: locationID,
		Type:       txType,
		Quantity:   quantity,
		UnitCost:   unitCost,
		Date:       date,
		Reference:  reference,
		CreatedAt:  time.Now(),
	}, nil
}

// ItemMetadata describes an inventory item as reported by the store.
type ItemMetadata struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;index"`
	SKU      string    `json:"sku" gorm:"size:100;not null"`
	Name     string    `json:"name" gorm:"size:255;not null"`
	Category string    `json:"category" gorm:"size:100"`
}

// TableName returns the table name for GORM
func (ItemMetadata) TableName() string {
	return "inventory_items"
}
