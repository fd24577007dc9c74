package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountBalance is the derived, cacheable aggregate for one account.
// Invariant: CurrentBalance equals the signed sum of all entries up to the
// as-of date, exactly, under the account's normal-side convention.
type AccountBalance struct {
	AccountID   uuid.UUID   `json:"account_id"`
	TenantID    uuid.UUID   `json:"tenant_id"`
	AccountCode string      `json:"account_code"`
	AccountName string      `json:"account_name"`
	AccountType AccountType `json:"account_type"`
	AsOf        *time.Time  `json:"as_of,omitempty"`

	CurrentDebits  decimal.Decimal `json:"current_debits"`
	CurrentCredits decimal.Decimal `json:"current_credits"`
	CurrentBalance decimal.Decimal `json:"current_balance"`

	PeriodDebits  decimal.Decimal `json:"period_debits"`
	PeriodCredits decimal.Decimal `json:"period_credits"`
	PeriodBalance decimal.Decimal `json:"period_balance"`

	YearToDateDebits  decimal.Decimal `json:"ytd_debits"`
	YearToDateCredits decimal.Decimal `json:"ytd_credits"`
	YearToDateBalance decimal.Decimal `json:"ytd_balance"`

	LastTransactionDate *time.Time `json:"last_transaction_date,omitempty"`
	Reconciled          bool       `json:"reconciled"`
	ComputedAt          time.Time  `json:"computed_at"`
}

// HistorySummary aggregates statistics over a history page.
type HistorySummary struct {
	EntryCount   int             `json:"entry_count"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	FirstDate    *time.Time      `json:"first_date,omitempty"`
	LastDate     *time.Time      `json:"last_date,omitempty"`
}

// AccountHistory is the derived history view: entries in range plus the
// balances bracketing the range.
type AccountHistory struct {
	AccountID      uuid.UUID       `json:"account_id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	Entries        []LedgerEntry   `json:"entries"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Summary        HistorySummary  `json:"summary"`
	ComputedAt     time.Time       `json:"computed_at"`
}

// periodStart returns the first instant of the calendar month containing t.
func periodStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// yearStart returns the first instant of the fiscal year containing t.
// The fiscal year follows the calendar year.
func yearStart(t time.Time) time.Time {
	return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
}

// ComputeAccountBalance derives the balance aggregate from the entry set.
// Entries must already be filtered to tenant+account and to dates at or
// before the as-of instant; the single pass derives the current, period,
// and year-to-date totals, the last transaction date, and the
// reconciliation status (true iff no unreconciled entry exists).
func ComputeAccountBalance(meta *AccountMetadata, entries []LedgerEntry, asOf time.Time) *AccountBalance {
	side := meta.Type.NormalSide()
	pStart := periodStart(asOf)
	yStart := yearStart(asOf)

	bal := &AccountBalance{
		AccountID:   meta.ID,
		TenantID:    meta.TenantID,
		AccountCode: meta.Code,
		AccountName: meta.Name,
		AccountType: meta.Type,

		CurrentDebits:  decimal.Zero,
		CurrentCredits: decimal.Zero,
		PeriodDebits:   decimal.Zero,
		PeriodCredits:  decimal.Zero,

		YearToDateDebits:  decimal.Zero,
		YearToDateCredits: decimal.Zero,

		Reconciled: true,
		ComputedAt: time.Now(),
	}

	for i := range entries {
		e := &entries[i]
		bal.CurrentDebits = bal.CurrentDebits.Add(e.Debit)
		bal.CurrentCredits = bal.CurrentCredits.Add(e.Credit)

		if !e.EntryDate.Before(pStart) {
			bal.PeriodDebits = bal.PeriodDebits.Add(e.Debit)
			bal.PeriodCredits = bal.PeriodCredits.Add(e.Credit)
		}
		if !e.EntryDate.Before(yStart) {
			bal.YearToDateDebits = bal.YearToDateDebits.Add(e.Debit)
			bal.YearToDateCredits = bal.YearToDateCredits.Add(e.Credit)
		}

		if bal.LastTransactionDate == nil || e.EntryDate.After(*bal.LastTransactionDate) {
			d := e.EntryDate
			bal.LastTransactionDate = &d
		}
		if !e.Reconciled {
			bal.Reconciled = false
		}
	}

	bal.CurrentBalance = SignedBalance(bal.CurrentDebits, bal.CurrentCredits, side)
	bal.PeriodBalance = SignedBalance(bal.PeriodDebits, bal.PeriodCredits, side)
	bal.YearToDateBalance = SignedBalance(bal.YearToDateDebits, bal.YearToDateCredits, side)

	return bal
}

// ComputeAccountHistory derives the history view for entries within the
// requested range. openingEntries are all entries strictly before the
// range start, used to derive the opening balance.
func ComputeAccountHistory(meta *AccountMetadata, openingEntries, rangeEntries []LedgerEntry) *AccountHistory {
	side := meta.Type.NormalSide()

	openDebits, openCredits := sumSides(openingEntries)
	opening := SignedBalance(openDebits, openCredits, side)

	summary := HistorySummary{
		EntryCount:   len(rangeEntries),
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for i := range rangeEntries {
		e := &rangeEntries[i]
		summary.TotalDebits = summary.TotalDebits.Add(e.Debit)
		summary.TotalCredits = summary.TotalCredits.Add(e.Credit)
		if summary.FirstDate == nil || e.EntryDate.Before(*summary.FirstDate) {
			d := e.EntryDate
			summary.FirstDate = &d
		}
		if summary.LastDate == nil || e.EntryDate.After(*summary.LastDate) {
			d := e.EntryDate
			summary.LastDate = &d
		}
	}

	closing := opening.Add(SignedBalance(summary.TotalDebits, summary.TotalCredits, side))

	return &AccountHistory{
		AccountID:      meta.ID,
		TenantID:       meta.TenantID,
		Entries:        rangeEntries,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Summary:        summary,
		ComputedAt:     time.Now(),
	}
}

func sumSides(entries []LedgerEntry) (debits, credits decimal.Decimal) {
	debits, credits = decimal.Zero, decimal.Zero
	for i := range entries {
		debits = debits.Add(entries[i].Debit)
		credits = credits.Add(entries[i].Credit)
	}
	return debits, credits
}
