package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/econ-trends/internal/models"
)

func TestNew(t *testing.T) {
	r := New()

	assert.NotNil(t, r)
	assert.NotNil(t, r.Registry())
	assert.NotPanics(t, func() { New() }, "recorders must not share a registry")
}

func TestRecorder_RecordAnalysis(t *testing.T) {
	r := New()

	r.RecordAnalysis("trend", nil, 10*time.Millisecond)
	r.RecordAnalysis("trend", nil, 20*time.Millisecond)
	r.RecordAnalysis("trend", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.analysesTotal.WithLabelValues("trend", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.analysesTotal.WithLabelValues("trend", "error")))
}

func TestRecorder_RecordForecast(t *testing.T) {
	r := New()

	r.RecordForecast(models.ForecastResult{Method: models.MethodLinear})
	r.RecordForecast(models.ForecastResult{
		Method:      models.MethodFallback,
		Diagnostics: models.ForecastDiagnostics{FallbackReason: "insufficient data: need at least 2 usable points, got 1"},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecastsTotal.WithLabelValues("linear")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecastsTotal.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fallbacksTotal.WithLabelValues("insufficient_data")))
}

func TestRecorder_RecordCache(t *testing.T) {
	r := New()

	r.RecordCache("hit")
	r.RecordCache("miss")
	r.RecordCache("miss")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheResults.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.cacheResults.WithLabelValues("miss")))
}

func TestFallbackCause(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"", "unknown"},
		{"insufficient data: linear needs 5 points, got 4", "insufficient_data"},
		{"numeric degeneracy: linear produced non-finite output", "numeric_degeneracy"},
		{`unknown forecast method: "arima"`, "unknown_method"},
		{"fallback requested", "requested"},
		{"something else", "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FallbackCause(tt.reason), tt.reason)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.RecordQuality(models.MethodLinear, 87.5)
	r.RecordHTTPRequest("/api/v1/indicators/:indicator/trend", "GET", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "econ_trends_forecast_quality_score_bucket")
	assert.Contains(t, string(body), `econ_trends_http_requests_total{method="GET",route="/api/v1/indicators/:indicator/trend",status="200"} 1`)
}
