package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/econ-trends/internal/middleware"
	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/utils"
)

// AnalyticsProvider is the part of services.AnalyticsService the HTTP layer uses.
type AnalyticsProvider interface {
	Trend(ctx context.Context, indicator string, window, months int) (models.TrendReport, error)
	Outliers(ctx context.Context, indicator string, method models.OutlierMethod, factor float64) ([]models.OutlierRecord, error)
	Seasonality(ctx context.Context, indicator string) (models.SeasonalityReport, error)
	Forecast(ctx context.Context, indicator string, horizon int, method models.ForecastMethod) (models.ForecastReport, error)
	ForecastAdHoc(ctx context.Context, req models.ForecastRequest) (models.ForecastReport, error)
	CompareMethods(ctx context.Context, indicator string, horizon int) (models.MethodComparison, error)
	Summary(ctx context.Context, indicator string, months int) (models.SeriesOverview, error)
	Correlations(ctx context.Context, indicators []string, threshold float64) (models.CorrelationMatrix, error)
	AnalyzeIndicators(ctx context.Context, indicators []string, window int) (models.TrendOverview, error)
	ListIndicators(ctx context.Context) ([]models.IndicatorStats, error)
	IngestObservations(ctx context.Context, indicator string, raw []models.RawObservation) (int64, error)
	InvalidateCache(ctx context.Context, indicator string) (int, error)
}

type AnalysisHandler struct {
	analytics AnalyticsProvider
}

type IndicatorsResponse struct {
	Indicators []models.IndicatorStats `json:"indicators"`
	Count      int                     `json:"count"`
}

type OutliersResponse struct {
	Indicator string                 `json:"indicator"`
	Method    models.OutlierMethod   `json:"method"`
	Outliers  []models.OutlierRecord `json:"outliers"`
	Count     int                    `json:"count"`
}

func NewAnalysisHandler(analytics AnalyticsProvider) *AnalysisHandler {
	return &AnalysisHandler{analytics: analytics}
}

// ListIndicators returns the stored indicators with their observation ranges
// @Summary List indicators
// @Tags indicators
// @Produce json
// @Success 200 {object} IndicatorsResponse
// @Router /api/v1/indicators [get]
func (h *AnalysisHandler) ListIndicators(c *gin.Context) {
	stats, err := h.analytics.ListIndicators(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if stats == nil {
		stats = []models.IndicatorStats{}
	}
	c.JSON(http.StatusOK, IndicatorsResponse{Indicators: stats, Count: len(stats)})
}

// GetTrend analyses the recent trend of an indicator
// @Summary Trend analysis
// @Tags analysis
// @Param indicator path string true "Indicator name"
// @Param window query int false "Number of recent observations"
// @Param months query int false "Only use the last N months of data"
// @Produce json
// @Success 200 {object} models.TrendReport
// @Router /api/v1/indicators/{indicator}/trend [get]
func (h *AnalysisHandler) GetTrend(c *gin.Context) {
	window, err := queryInt(c, "window")
	if err != nil {
		respondError(c, err)
		return
	}
	months, err := queryInt(c, "months")
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.analytics.Trend(c.Request.Context(), c.Param("indicator"), window, months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetOutliers detects anomalous observations
// @Summary Outlier detection
// @Tags analysis
// @Param indicator path string true "Indicator name"
// @Param method query string false "iqr, zscore or modified_zscore"
// @Param factor query number false "IQR fence factor"
// @Produce json
// @Success 200 {object} OutliersResponse
// @Router /api/v1/indicators/{indicator}/outliers [get]
func (h *AnalysisHandler) GetOutliers(c *gin.Context) {
	factor, err := queryFloat(c, "factor")
	if err != nil {
		respondError(c, err)
		return
	}
	method := models.OutlierMethod(strings.ToLower(c.DefaultQuery("method", string(models.OutlierIQR))))

	indicator := c.Param("indicator")
	outliers, err := h.analytics.Outliers(c.Request.Context(), indicator, method, factor)
	if err != nil {
		respondError(c, err)
		return
	}
	if outliers == nil {
		outliers = []models.OutlierRecord{}
	}
	c.JSON(http.StatusOK, OutliersResponse{
		Indicator: indicator,
		Method:    method,
		Outliers:  outliers,
		Count:     len(outliers),
	})
}

// GetSeasonality looks for a calendar-month pattern
// @Summary Seasonality analysis
// @Tags analysis
// @Param indicator path string true "Indicator name"
// @Produce json
// @Success 200 {object} models.SeasonalityReport
// @Router /api/v1/indicators/{indicator}/seasonality [get]
func (h *AnalysisHandler) GetSeasonality(c *gin.Context) {
	report, err := h.analytics.Seasonality(c.Request.Context(), c.Param("indicator"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetForecast forecasts a stored indicator
// @Summary Forecast
// @Tags forecast
// @Param indicator path string true "Indicator name"
// @Param horizon query int false "Periods ahead, clamped to the configured maximum"
// @Param method query string false "auto, linear, exponential or moving_average"
// @Produce json
// @Success 200 {object} models.ForecastReport
// @Router /api/v1/indicators/{indicator}/forecast [get]
func (h *AnalysisHandler) GetForecast(c *gin.Context) {
	horizon, err := queryInt(c, "horizon")
	if err != nil {
		respondError(c, err)
		return
	}
	method, err := models.ParseForecastMethod(c.Query("method"))
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.analytics.Forecast(c.Request.Context(), c.Param("indicator"), horizon, method)
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.AddSpanAttribute(c, "forecast.method", string(report.Forecast.Method))
	c.JSON(http.StatusOK, report)
}

// CompareForecastMethods runs every forecasting method and ranks them
// @Summary Compare forecasting methods
// @Tags forecast
// @Param indicator path string true "Indicator name"
// @Param horizon query int false "Periods ahead"
// @Produce json
// @Success 200 {object} models.MethodComparison
// @Router /api/v1/indicators/{indicator}/forecast/compare [get]
func (h *AnalysisHandler) CompareForecastMethods(c *gin.Context) {
	horizon, err := queryInt(c, "horizon")
	if err != nil {
		respondError(c, err)
		return
	}

	comparison, err := h.analytics.CompareMethods(c.Request.Context(), c.Param("indicator"), horizon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, comparison)
}

// GetSummary describes a stored series and its data quality
// @Summary Series summary
// @Tags analysis
// @Param indicator path string true "Indicator name"
// @Param months query int false "Only use the last N months of data"
// @Produce json
// @Success 200 {object} models.SeriesOverview
// @Router /api/v1/indicators/{indicator}/summary [get]
func (h *AnalysisHandler) GetSummary(c *gin.Context) {
	months, err := queryInt(c, "months")
	if err != nil {
		respondError(c, err)
		return
	}

	overview, err := h.analytics.Summary(c.Request.Context(), c.Param("indicator"), months)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// ForecastSeries forecasts a series supplied in the request body
// @Summary Ad-hoc forecast
// @Tags forecast
// @Accept json
// @Produce json
// @Param request body models.ForecastRequest true "Series and forecast options"
// @Success 200 {object} models.ForecastReport
// @Router /api/v1/forecast [post]
func (h *AnalysisHandler) ForecastSeries(c *gin.Context) {
	var req models.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, utils.NewFieldError("body", "%v", err))
		return
	}
	if req.Horizon < 0 {
		respondError(c, utils.NewFieldError("horizon", "must not be negative"))
		return
	}

	report, err := h.analytics.ForecastAdHoc(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetCorrelations correlates the recent windows of several indicators
// @Summary Correlation matrix
// @Tags analysis
// @Param indicators query string true "Comma separated indicator names"
// @Param threshold query number false "Minimum |r| for a reported pair"
// @Produce json
// @Success 200 {object} models.CorrelationMatrix
// @Router /api/v1/correlations [get]
func (h *AnalysisHandler) GetCorrelations(c *gin.Context) {
	indicators := splitList(c.Query("indicators"))
	if len(indicators) == 0 {
		respondError(c, utils.NewFieldError("indicators", "parameter is required"))
		return
	}
	threshold, err := queryFloat(c, "threshold")
	if err != nil {
		respondError(c, err)
		return
	}
	if threshold > 1 {
		respondError(c, utils.NewFieldError("threshold", "must be at most 1"))
		return
	}

	matrix, err := h.analytics.Correlations(c.Request.Context(), indicators, threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, matrix)
}

// GetTrendSummary analyses several indicators and aggregates the trends
// @Summary Multi-indicator trend summary
// @Tags analysis
// @Param indicators query string false "Comma separated names; all stored indicators when empty"
// @Param window query int false "Number of recent observations"
// @Produce json
// @Success 200 {object} models.TrendOverview
// @Router /api/v1/trends/summary [get]
func (h *AnalysisHandler) GetTrendSummary(c *gin.Context) {
	window, err := queryInt(c, "window")
	if err != nil {
		respondError(c, err)
		return
	}

	overview, err := h.analytics.AnalyzeIndicators(c.Request.Context(), splitList(c.Query("indicators")), window)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// queryInt parses an optional non-negative integer query parameter; absent is 0.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, utils.NewFieldError(name, "must be an integer, got %q", raw)
	}
	if v < 0 {
		return 0, utils.NewFieldError(name, "must not be negative")
	}
	return v, nil
}

// queryFloat parses an optional non-negative number query parameter; absent is 0.
func queryFloat(c *gin.Context, name string) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, utils.NewFieldError(name, "must be a number, got %q", raw)
	}
	if v < 0 {
		return 0, utils.NewFieldError(name, "must not be negative")
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
