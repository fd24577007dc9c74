package ledger

import (
	"time"

	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is one immutable posted debit/credit record against an
// account. Entries are append-only: they are created once by the posting
// path and never mutated. Corrections happen via compensating entries.
type LedgerEntry struct {
	ID             uuid.UUID            `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID            `json:"tenant_id" gorm:"type:uuid;not null;index:idx_ledger_entries_tenant_account,priority:1"`
	AccountID      uuid.UUID            `json:"account_id" gorm:"type:uuid;not null;index:idx_ledger_entries_tenant_account,priority:2"`
	EntryDate      time.Time            `json:"entry_date" gorm:"not null;index"`
	Debit          decimal.Decimal      `json:"debit" gorm:"type:decimal(18,4);not null;default:0"`
	Credit         decimal.Decimal      `json:"credit" gorm:"type:decimal(18,4);not null;default:0"`
	Currency       valueobject.Currency `json:"currency" gorm:"type:varchar(3);not null"`
	RunningBalance decimal.Decimal      `json:"running_balance" gorm:"type:decimal(18,4);not null;default:0"`
	Reconciled     bool                 `json:"reconciled" gorm:"not null;default:false"`
	Memo           string               `json:"memo,omitempty" gorm:"type:text"`
	CreatedAt      time.Time            `json:"created_at" gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewLedgerEntry creates a validated ledger entry ready for posting.
func NewLedgerEntry(tenantID, accountID uuid.UUID, entryDate time.Time, debit, credit decimal.Decimal, currency valueobject.Currency, memo string) (*LedgerEntry, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Tenant ID cannot be empty")
	}
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Account ID cannot be empty")
	}
	if entryDate.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Entry date is required")
	}
	if debit.IsNegative() || credit.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Debit and credit amounts cannot be negative")
	}
	if debit.IsZero() && credit.IsZero() {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Entry must carry a debit or a credit amount")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	if !currency.IsValid() {
		return nil, shared.NewDomainError(shared.CodeValidationError, "Unsupported currency "+string(currency))
	}

	return &LedgerEntry{
		ID:        uuid.New(),
		TenantID:  tenantID,
		AccountID: accountID,
		EntryDate: entryDate,
		Debit:     debit,
		Credit:    credit,
		Currency:  currency,
		Memo:      memo,
		CreatedAt: time.Now(),
	}, nil
}

// Net returns debit minus credit for this entry.
func (e *LedgerEntry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}
