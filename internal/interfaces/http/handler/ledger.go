package handler

import (
	"time"

	ledgerapp "github.com/finbooks/backend/internal/application/ledger"
	"github.com/finbooks/backend/internal/domain/ledger"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/finbooks/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerHandler handles ledger balance, history, and posting endpoints
type LedgerHandler struct {
	BaseHandler
	service *ledgerapp.BalanceService
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(service *ledgerapp.BalanceService) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// RegisterRoutes registers ledger routes on the given group
func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/ledger")
	{
		g.GET("/accounts/:id/balance",
			middleware.RequirePermission(shared.OpReadBalance), h.GetBalance)
		g.GET("/accounts/:id/history",
			middleware.RequirePermission(shared.OpReadHistory), h.GetHistory)
		g.POST("/transactions",
			middleware.RequirePermission(shared.OpPostTransaction), h.RecordTransaction)
		g.POST("/accounts/:id/reconcile",
			middleware.RequirePermission(shared.OpMarkReconciled), h.MarkReconciled)
	}
}

// balanceQuery binds the optional point-in-time parameter
type balanceQuery struct {
	AsOf string `form:"as_of"`
}

// GetBalance returns the account balance, optionally as of a point in time.
// GET /ledger/accounts/:id/balance?as_of=2026-01-31T00:00:00Z
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid account ID")
		return
	}

	var q balanceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindingError(c, err)
		return
	}

	asOf, err := parseOptionalTime(q.AsOf)
	if err != nil {
		badRequest(c, "as_of must be RFC 3339")
		return
	}

	writeResult(c, h.service.GetAccountBalance(c.Request.Context(), tenantID, userID, accountID, asOf))
}

// historyQuery binds the date range and entry filter parameters
type historyQuery struct {
	From       string `form:"from"`
	To         string `form:"to"`
	Reconciled *bool  `form:"reconciled"`
	Currency   string `form:"currency"`
	MinAmount  string `form:"min_amount" binding:"omitempty,decimal"`
	MaxAmount  string `form:"max_amount" binding:"omitempty,decimal"`
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset" binding:"min=0"`
}

// GetHistory returns the account's entries with running balances.
// GET /ledger/accounts/:id/history?from=...&to=...&reconciled=true&limit=100
func (h *LedgerHandler) GetHistory(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid account ID")
		return
	}

	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindingError(c, err)
		return
	}

	from, err := parseOptionalTime(q.From)
	if err != nil {
		badRequest(c, "from must be RFC 3339")
		return
	}
	to, err := parseOptionalTime(q.To)
	if err != nil {
		badRequest(c, "to must be RFC 3339")
		return
	}

	minAmount, err := parseOptionalDecimal(q.MinAmount)
	if err != nil {
		badRequest(c, "min_amount must be a decimal")
		return
	}
	maxAmount, err := parseOptionalDecimal(q.MaxAmount)
	if err != nil {
		badRequest(c, "max_amount must be a decimal")
		return
	}

	dateRange := ledger.DateRange{From: from, To: to}
	filter := ledger.EntryFilter{
		Reconciled: q.Reconciled,
		Currency:   q.Currency,
		MinAmount:  minAmount,
		MaxAmount:  maxAmount,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}

	writeResult(c, h.service.GetAccountHistory(c.Request.Context(), tenantID, userID, accountID, dateRange, filter))
}

// recordTransactionRequest is the posting payload
type recordTransactionRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	EntryDate string `json:"entry_date" binding:"required"`
	Debit     string `json:"debit" binding:"omitempty,decimal"`
	Credit    string `json:"credit" binding:"omitempty,decimal"`
	Currency  string `json:"currency"`
	Memo      string `json:"memo"`
}

// RecordTransaction appends one ledger entry.
// POST /ledger/transactions
func (h *LedgerHandler) RecordTransaction(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	entryDate, err := time.Parse(time.RFC3339, req.EntryDate)
	if err != nil {
		badRequest(c, "entry_date must be RFC 3339")
		return
	}

	debit, err := parseAmount(req.Debit)
	if err != nil {
		badRequest(c, "debit must be a decimal")
		return
	}
	credit, err := parseAmount(req.Credit)
	if err != nil {
		badRequest(c, "credit must be a decimal")
		return
	}

	currency := valueobject.Currency(req.Currency)
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	input := ledgerapp.RecordTransactionInput{
		AccountID: uuid.MustParse(req.AccountID),
		EntryDate: entryDate,
		Debit:     debit,
		Credit:    credit,
		Currency:  currency,
		Memo:      req.Memo,
	}

	writeResult(c, h.service.RecordTransaction(c.Request.Context(), tenantID, userID, input))
}

// markReconciledRequest carries the entry IDs to flag
type markReconciledRequest struct {
	EntryIDs []string `json:"entry_ids" binding:"required,dive,uuid"`
}

// MarkReconciled flags the listed entries as reconciled.
// POST /ledger/accounts/:id/reconcile
func (h *LedgerHandler) MarkReconciled(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid account ID")
		return
	}

	var req markReconciledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	entryIDs := make([]uuid.UUID, len(req.EntryIDs))
	for i, raw := range req.EntryIDs {
		entryIDs[i] = uuid.MustParse(raw)
	}

	writeResult(c, h.service.MarkReconciled(c.Request.Context(), tenantID, userID, accountID, entryIDs))
}

func parseOptionalTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseOptionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
