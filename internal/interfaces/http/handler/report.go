package handler

import (
	reportapp "github.com/finbooks/backend/internal/application/report"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ReportHandler handles tenant-wide report endpoints
type ReportHandler struct {
	BaseHandler
	service *reportapp.Service
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service *reportapp.Service) *ReportHandler {
	return &ReportHandler{service: service}
}

// RegisterRoutes registers report routes on the given group
func (h *ReportHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/reports")
	g.Use(middleware.RequirePermission(shared.OpGenerateReport))
	{
		g.GET("/balance", h.GetBalanceReport)
		g.GET("/valuation", h.GetValuationReport)
	}
}

// GetBalanceReport returns the tenant's balance report grouped by account
// type, optionally as of a point in time.
// GET /reports/balance?as_of=2026-01-31T00:00:00Z
func (h *ReportHandler) GetBalanceReport(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		badRequest(c, "as_of must be RFC 3339")
		return
	}

	writeResult(c, h.service.GetBalanceReport(c.Request.Context(), tenantID, userID, asOf))
}

// GetValuationReport returns the tenant's inventory valuation grouped by
// item category.
// GET /reports/valuation
func (h *ReportHandler) GetValuationReport(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	writeResult(c, h.service.GetValuationReport(c.Request.Context(), tenantID, userID))
}
