package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/econ-trends/internal/cache"
	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/utils"
)

// CacheAdmin inspects and empties the result cache.
type CacheAdmin interface {
	Report(ctx context.Context) (cache.CacheReport, error)
	Clear(ctx context.Context) (int, error)
}

// AdminHandler serves the maintenance endpoints: ingest and cache control.
type AdminHandler struct {
	analytics AnalyticsProvider
	cache     CacheAdmin
}

type IngestRequest struct {
	Observations []models.RawObservation `json:"observations" binding:"required"`
}

type IngestResponse struct {
	Indicator string `json:"indicator"`
	Written   int64  `json:"written"`
}

type InvalidateResponse struct {
	Indicator string `json:"indicator,omitempty"`
	Removed   int    `json:"removed"`
}

// NewAdminHandler creates the handler. cacheAdmin may be nil when no cache is configured.
func NewAdminHandler(analytics AnalyticsProvider, cacheAdmin CacheAdmin) *AdminHandler {
	return &AdminHandler{analytics: analytics, cache: cacheAdmin}
}

// IngestObservations stores observations for an indicator and drops its cached results
// @Summary Ingest observations
// @Tags admin
// @Accept json
// @Produce json
// @Param indicator path string true "Indicator name"
// @Param request body IngestRequest true "Observations"
// @Success 200 {object} IngestResponse
// @Router /api/v1/indicators/{indicator}/observations [put]
func (h *AdminHandler) IngestObservations(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewFieldError("body", "%v", err))
		return
	}

	indicator := c.Param("indicator")
	written, err := h.analytics.IngestObservations(c.Request.Context(), indicator, req.Observations)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, IngestResponse{Indicator: indicator, Written: written})
}

// InvalidateCache drops every cached result of an indicator
// @Summary Invalidate indicator cache
// @Tags admin
// @Produce json
// @Param indicator path string true "Indicator name"
// @Success 200 {object} InvalidateResponse
// @Router /api/v1/indicators/{indicator}/cache [delete]
func (h *AdminHandler) InvalidateCache(c *gin.Context) {
	indicator := c.Param("indicator")
	removed, err := h.analytics.InvalidateCache(c.Request.Context(), indicator)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, InvalidateResponse{Indicator: indicator, Removed: removed})
}

// GetCacheReport returns cache counters and Redis details
// @Summary Cache report
// @Tags admin
// @Produce json
// @Success 200 {object} cache.CacheReport
// @Router /api/v1/admin/cache [get]
func (h *AdminHandler) GetCacheReport(c *gin.Context) {
	if h.cache == nil {
		cacheNotConfigured(c)
		return
	}

	report, err := h.cache.Report(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// ClearCache drops every cached analysis result
// @Summary Clear result cache
// @Tags admin
// @Produce json
// @Success 200 {object} InvalidateResponse
// @Router /api/v1/admin/cache [delete]
func (h *AdminHandler) ClearCache(c *gin.Context) {
	if h.cache == nil {
		cacheNotConfigured(c)
		return
	}

	removed, err := h.cache.Clear(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, InvalidateResponse{Removed: removed})
}

func cacheNotConfigured(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Result cache is not configured"})
}
