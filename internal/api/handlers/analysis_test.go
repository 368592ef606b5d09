package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/econ-trends/internal/api/handlers/testmocks"
	"github.com/irfndi/econ-trends/internal/models"
	"github.com/irfndi/econ-trends/internal/services"
	"github.com/irfndi/econ-trends/pkg/interfaces"
)

func setupAnalysisRouter(analytics AnalyticsProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewAnalysisHandler(analytics)
	router.GET("/indicators", h.ListIndicators)
	router.GET("/indicators/:indicator/trend", h.GetTrend)
	router.GET("/indicators/:indicator/outliers", h.GetOutliers)
	router.GET("/indicators/:indicator/seasonality", h.GetSeasonality)
	router.GET("/indicators/:indicator/forecast", h.GetForecast)
	router.GET("/indicators/:indicator/forecast/compare", h.CompareForecastMethods)
	router.GET("/indicators/:indicator/summary", h.GetSummary)
	router.POST("/forecast", h.ForecastSeries)
	router.GET("/correlations", h.GetCorrelations)
	router.GET("/trends/summary", h.GetTrendSummary)
	return router
}

func doRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestAnalysisHandler_GetTrend(t *testing.T) {
	analytics := new(testmocks.MockAnalytics)
	analytics.On("Trend", mock.Anything, "cpi", 24, 12).
		Return(models.TrendReport{Indicator: "cpi", Direction: models.TrendIncreasing, PointCount: 24}, nil)

	w := doRequest(setupAnalysisRouter(analytics), http.MethodGet, "/indicators/cpi/trend?window=24&months=12", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var report models.TrendReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, models.TrendIncreasing, report.Direction)
	assert.Equal(t, 24, report.PointCount)
	analytics.AssertExpectations(t)
}

func TestAnalysisHandler_InvalidQueryParameters(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		field string
	}{
		{"non numeric window", "/indicators/cpi/trend?window=abc", "window"},
		{"negative window", "/indicators/cpi/trend?window=-3", "window"},
		{"non numeric months", "/indicators/cpi/trend?months=recent", "months"},
		{"negative summary months", "/indicators/cpi/summary?months=-1", "months"},
		{"non numeric horizon", "/indicators/cpi/forecast?horizon=soon", "horizon"},
		{"non numeric factor", "/indicators/cpi/outliers?factor=wide", "factor"},
		{"NaN factor", "/indicators/cpi/outliers?factor=NaN", "factor"},
		{"missing indicators", "/correlations", "indicators"},
		{"threshold above one", "/correlations?indicators=a,b&threshold=1.5", "threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analytics := new(testmocks.MockAnalytics)

			w := doRequest(setupAnalysisRouter(analytics), http.MethodGet, tt.path, nil)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.field, decodeError(t, w).Field)
			analytics.AssertNotCalled(t, "Trend")
		})
	}
}

func TestAnalysisHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"not found", fmt.Errorf("%w: cpi", interfaces.ErrSeriesNotFound), http.StatusNotFound, "series not found: cpi"},
		{"insufficient data", fmt.Errorf("%w: need 2", services.ErrInsufficientData), http.StatusUnprocessableEntity, "insufficient data: need 2"},
		{"unknown outlier method", services.ErrUnknownOutlierMethod, http.StatusBadRequest, "unknown outlier method"},
		{"internal", errors.New("pool exhausted"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analytics := new(testmocks.MockAnalytics)
			analytics.On("Seasonality", mock.Anything, "cpi").Return(models.SeasonalityReport{}, tt.err)

			w := doRequest(setupAnalysisRouter(analytics), http.MethodGet, "/indicators/cpi/seasonality", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).Error)
		})
	}
}

func TestAnalysisHandler_GetOutliers(t *testing.T) {
	analytics := new(testmocks.MockAnalytics)
	analytics.On("Outliers", mock.Anything, "cpi", models.OutlierZScore, 0.0).Return(nil, nil)

	w := doRequest(setupAnalysisRouter(analytics), http.MethodGet, "/indicators/cpi/outliers?method=ZScore", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp OutliersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.OutlierZScore, resp.Method)
	assert.NotNil(t, resp.Outliers)
	assert.Equal(t, 0, resp.Count)
}

func TestAnalysisHandler_GetForecast(t *testing.T) {
	analytics := new(testmocks.MockAnalytics)
	report := models.ForecastReport{
		Forecast: models.ForecastResult{Indicator: "gdp", Method: models.MethodLinear, Horizon: 6, Values: []float64{1, 2, 3, 4, 5, 6}},
		Quality:  models.QualityScore{Score: 92, Reliability: models.ReliabilityHigh},
	}
	analytics.On("Forecast", mock.Anything, "gdp", 6, models.MethodLinear).Return(report, nil)

	router := setupAnalysisRouter(analytics)

	w := doRequest(router, http.MethodGet, "/indicators/gdp/forecast?horizon=6&method=Linear", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.ForecastReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, report.Forecast.Values, got.Forecast.Values)
	assert.Equal(t, 92.0, got.Quality.Score)

	w = doRequest(router, http.MethodGet, "/indicators/gdp/forecast?method=arima", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "unknown forecast method")
}

func TestAnalysisHandler_CompareAndSummary(t *testing.T) {
	analytics := new(testmocks.MockAnalytics)
	analytics.On("CompareMethods", mock.Anything, "gdp", 0).
		Return(models.MethodComparison{Indicator: "gdp", BestMethod: models.MethodLinear, BestScore: 100}, nil)
	analytics.On("Summary", mock.Anything, "gdp", 6).
		Return(models.SeriesOverview{Summary: models.DataSummary{Indicator: "gdp", Count: 24}}, nil)
	router := setupAnalysisRouter(analytics)

	w := doRequest(router, http.MethodGet, "/indicators/gdp/forecast/compare", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"best_method":"linear"`)

	w = doRequest(router, http.MethodGet, "/indicators/gdp/summary?months=6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":24`)
	analytics.AssertExpectations(t)
}

func TestAnalysisHandler_ForecastSeries(t *testing.T) {
	body := models.ForecastRequest{
		Name:         "custom",
		Observations: []models.RawObservation{{Date: "2024-01-01", Value: "1"}, {Date: "2024-02-01", Value: "2"}},
		Horizon:      2,
		Method:       "auto",
	}

	t.Run("success", func(t *testing.T) {
		analytics := new(testmocks.MockAnalytics)
		analytics.On("ForecastAdHoc", mock.Anything, body).
			Return(models.ForecastReport{Forecast: models.ForecastResult{Indicator: "custom", Horizon: 2}}, nil)

		w := doRequest(setupAnalysisRouter(analytics), http.MethodPost, "/forecast", body)

		assert.Equal(t, http.StatusOK, w.Code)
		analytics.AssertExpectations(t)
	})

	t.Run("missing name", func(t *testing.T) {
		analytics := new(testmocks.MockAnalytics)

		w := doRequest(setupAnalysisRouter(analytics), http.MethodPost, "/forecast", map[string]interface{}{"observations": body.Observations})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "body", decodeError(t, w).Field)
		analytics.AssertNotCalled(t, "ForecastAdHoc", mock.Anything, mock.Anything)
	})

	t.Run("invalid series", func(t *testing.T) {
		analytics := new(testmocks.MockAnalytics)
		analytics.On("ForecastAdHoc", mock.Anything, mock.Anything).
			Return(models.ForecastReport{}, &services.InvalidSeriesError{Reason: "unparseable date", Index: 1})

		w := doRequest(setupAnalysisRouter(analytics), http.MethodPost, "/forecast", body)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid series: observation 1: unparseable date", decodeError(t, w).Error)
	})
}

func TestAnalysisHandler_GetCorrelations(t *testing.T) {
	analytics := new(testmocks.MockAnalytics)
	analytics.On("Correlations", mock.Anything, []string{"cpi", "gdp"}, 0.5).
		Return(models.CorrelationMatrix{Indicators: []string{"cpi", "gdp"}, Matrix: [][]float64{{1, 0.9}, {0.9, 1}}}, nil)

	w := doRequest(setupAnalysisRouter(analytics), http.MethodGet, "/correlations?indicators=cpi,%20gdp,&threshold=0.5", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var matrix models.CorrelationMatrix
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &matrix))
	assert.Equal(t, 0.9, matrix.Matrix[0][1])
	analytics.AssertExpectations(t)
}

func TestAnalysisHandler_GetTrendSummary(t *testing.T) {
	analytics := new(testmocks.MockAnalytics)
	analytics.On("AnalyzeIndicators", mock.Anything, []string(nil), 0).Return(models.TrendOverview{
		Reports: []models.TrendReport{{Indicator: "cpi"}},
		Summary: models.TrendSummary{TotalIndicators: 1},
		Failed:  map[string]string{"gdp": "timeout"},
	}, nil)

	w := doRequest(setupAnalysisRouter(analytics), http.MethodGet, "/trends/summary", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"failed":{"gdp":"timeout"}`)
	analytics.AssertExpectations(t)
}

func TestAnalysisHandler_ListIndicators(t *testing.T) {
	analytics := new(testmocks.MockAnalytics)
	analytics.On("ListIndicators", mock.Anything).Return(nil, nil)

	w := doRequest(setupAnalysisRouter(analytics), http.MethodGet, "/indicators", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"indicators":[],"count":0}`, w.Body.String())
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b,"))
	assert.Nil(t, splitList(""))
}
