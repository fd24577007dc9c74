package handler

import (
	systemapp "github.com/finbooks/backend/internal/application/system"
	"github.com/finbooks/backend/internal/domain/shared"
	"github.com/finbooks/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SystemHandler handles health, cache administration, and metrics endpoints
type SystemHandler struct {
	BaseHandler
	service *systemapp.Service
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(service *systemapp.Service) *SystemHandler {
	return &SystemHandler{service: service}
}

// RegisterRoutes registers system routes on the given group. The health
// endpoint is unauthenticated; everything else requires a permission.
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.HealthCheck)

	g := rg.Group("/system")
	{
		g.GET("/cache/stats",
			middleware.RequirePermission(shared.OpReadPerformance), h.GetCacheStats)
		g.GET("/metrics",
			middleware.RequirePermission(shared.OpReadPerformance), h.GetPerformanceMetrics)
		g.POST("/cache/clear",
			middleware.RequirePermission(shared.OpManageCaches), h.ClearCaches)
	}
}

// HealthCheck reports store reachability and cache occupancy.
// GET /health
func (h *SystemHandler) HealthCheck(c *gin.Context) {
	writeResult(c, h.service.HealthCheck(c.Request.Context()))
}

// GetCacheStats returns cache hit/miss/eviction counters.
// GET /system/cache/stats
func (h *SystemHandler) GetCacheStats(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}
	writeResult(c, h.service.GetCacheStats(c.Request.Context(), tenantID, userID))
}

// GetPerformanceMetrics returns the per-operation monitoring report.
// GET /system/metrics
func (h *SystemHandler) GetPerformanceMetrics(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}
	writeResult(c, h.service.GetPerformanceMetrics(c.Request.Context(), tenantID, userID))
}

// clearCachesRequest selects the clearing scope
type clearCachesRequest struct {
	// AllTenants drops every entry instead of only the caller's tenant
	AllTenants bool `json:"all_tenants"`
}

// ClearCaches drops the caller's tenant entries, or everything when
// all_tenants is set.
// POST /system/cache/clear
func (h *SystemHandler) ClearCaches(c *gin.Context) {
	tenantID, userID, ok := identity(c)
	if !ok {
		return
	}

	var req clearCachesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request body")
			return
		}
	}

	scope := tenantID
	if req.AllTenants {
		scope = uuid.Nil
	}

	writeResult(c, h.service.ClearCaches(c.Request.Context(), scope, userID))
}
