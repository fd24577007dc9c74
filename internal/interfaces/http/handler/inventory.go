package handler

import (
	"time"

	inventoryapp "github.com/finbooks/backend/internal/application/inventory"
	"github.com/finbooks/backend/internal/domain/inventory"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/domain/shared/strategy"
	"github.com/finbooks/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryHandler handles inventory balance and movement endpoints
type InventoryHandler struct {
	BaseHandler
	service *inventoryapp.Service
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(service *inventoryapp.Service) *InventoryHandler {
	return &InventoryHandler{service: service}
}

// RegisterRoutes registers inventory routes on the given group
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/inventory")
	{
		g.GET("/items/:id/locations/:location_id/balance",
			middleware.RequirePermission(shared.OpReadInventory), h.GetBalance)
		g.GET("/items/:id/locations/:location_id/issue-cost",
			middleware.RequirePermission(shared.OpReadInventory), h.EstimateIssueCost)
		g.POST("/transactions",
			middleware.RequirePermission(shared.OpPostInventory), h.RecordTransaction)
	}
}

func (h *InventoryHandler) pairParams(c *gin.Context) (itemID, locationID uuid.UUID, ok bool) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid item ID")
		return uuid.Nil, uuid.Nil, false
	}
	locationID, err = uuid.Parse(c.Param("location_id"))
	if err != nil {
		badRequest(c, "Invalid location ID")
		return uuid.Nil, uuid.Nil, false
	}
	return itemID, locationID, true
}

// GetBalance returns the on-hand, allocated, and available quantities for
// an item at a location.
// GET /inventory/items/:id/locations/:location_id/balance
func (h *InventoryHandler) GetBalance(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}
	itemID, locationID, ok := h.pairParams(c)
	if !ok {
		return
	}

	writeResult(c, h.service.GetBalance(c.Request.Context(), tenantID, userID, itemID, locationID))
}

// issueCostQuery binds the estimate parameters
type issueCostQuery struct {
	Quantity string `form:"quantity" binding:"required,decimal"`
	Method   string `form:"method"`
}

// EstimateIssueCost prices a hypothetical issue without recording it.
// GET /inventory/items/:id/locations/:location_id/issue-cost?quantity=5&method=fifo
func (h *InventoryHandler) EstimateIssueCost(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}
	itemID, locationID, ok := h.pairParams(c)
	if !ok {
		return
	}

	var q issueCostQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindingError(c, err)
		return
	}

	quantity, err := decimal.NewFromString(q.Quantity)
	if err != nil {
		badRequest(c, "quantity must be a decimal")
		return
	}

	method := strategy.CostMethod(q.Method)
	if q.Method != "" && !method.IsValid() {
		badRequest(c, "Unknown cost method")
		return
	}

	writeResult(c, h.service.EstimateIssueCost(c.Request.Context(), tenantID, userID, itemID, locationID, quantity, method))
}

// recordMovementRequest is the movement payload
type recordMovementRequest struct {
	ItemID     string `json:"item_id" binding:"required,uuid"`
	LocationID string `json:"location_id" binding:"required,uuid"`
	Type       string `json:"type" binding:"required"`
	Quantity   string `json:"quantity" binding:"required,decimal"`
	UnitCost   string `json:"unit_cost" binding:"omitempty,decimal"`
	Date       string `json:"date" binding:"required"`
	Reference  string `json:"reference"`
}

// RecordTransaction appends one inventory movement.
// POST /inventory/transactions
func (h *InventoryHandler) RecordTransaction(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	var req recordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		badRequest(c, "date must be RFC 3339")
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		badRequest(c, "quantity must be a decimal")
		return
	}

	unitCost, err := parseAmount(req.UnitCost)
	if err != nil {
		badRequest(c, "unit_cost must be a decimal")
		return
	}

	input := inventoryapp.RecordTransactionInput{
		ItemID:     uuid.MustParse(req.ItemID),
		LocationID: uuid.MustParse(req.LocationID),
		Type:       inventory.TransactionType(req.Type),
		Quantity:   quantity,
		UnitCost:   unitCost,
		Date:       date,
		Reference:  req.Reference,
	}

	writeResult(c, h.service.RecordTransaction(c.Request.Context(), tenantID, userID, input))
}
