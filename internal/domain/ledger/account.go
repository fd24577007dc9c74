package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType classifies a ledger account.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// IsValid checks if the account type is valid
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// String returns the string representation
func (t AccountType) String() string {
	return string(t)
}

// AllAccountTypes returns all valid account types, in report display order.
func AllAccountTypes() []AccountType {
	return []AccountType{
		AccountTypeAsset,
		AccountTypeLiability,
		AccountTypeEquity,
		AccountTypeRevenue,
		AccountTypeExpense,
	}
}

// NormalBalanceSide is the side on which an account type increases.
type NormalBalanceSide string

const (
	NormalBalanceDebit  NormalBalanceSide = "DEBIT"
	NormalBalanceCredit NormalBalanceSide = "CREDIT"
)

// NormalSide returns the normal balance side for the account type:
// asset/expense accounts increase with debits, the rest with credits.
func (t AccountType) NormalSide() NormalBalanceSide {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalBalanceDebit
	default:
		return NormalBalanceCredit
	}
}

// AccountMetadata describes a ledger account as reported by the store.
// The core never creates accounts; it only reads their metadata.
type AccountMetadata struct {
	ID       uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID uuid.UUID   `json:"tenant_id" gorm:"type:uuid;not null;index"`
	Code     string      `json:"code" gorm:"size:50;not null"`
	Name     string      `json:"name" gorm:"size:255;not null"`
	Type     AccountType `json:"type" gorm:"type:varchar(20);not null"`
}

// TableName returns the table name for GORM
func (AccountMetadata) TableName() string {
	return "ledger_accounts"
}

// SignedBalance converts raw debit/credit totals into the account's
// balance under its normal-side sign convention.
func SignedBalance(debits, credits decimal.Decimal, side NormalBalanceSide) decimal.Decimal {
	if side == NormalBalanceCredit {
		return credits.Sub(debits)
	}
	return debits.Sub(credits)
}
