package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/irfndi/econ-trends/internal/models"
)

const namespace = "econ_trends"

// Recorder owns the Prometheus collectors of the service. Each Recorder has
// its own registry so tests can create as many as they like.
type Recorder struct {
	registry *prometheus.Registry

	analysesTotal   *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec
	forecastsTotal  *prometheus.CounterVec
	fallbacksTotal  *prometheus.CounterVec
	qualityScore    *prometheus.HistogramVec
	cacheResults    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// New creates a recorder with Go runtime and process collectors registered.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "operations_total",
			Help:      "Analytics operations by operation and outcome",
		}, []string{"operation", "status"}),
		analysisLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "operation_duration_seconds",
			Help:      "Duration of analytics operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		forecastsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "generated_total",
			Help:      "Forecasts generated by method",
		}, []string{"method"}),
		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "fallbacks_total",
			Help:      "Forecasts that degraded to the fallback strategy, by cause",
		}, []string{"cause"}),
		qualityScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "quality_score",
			Help:      "Forecast quality scores (0-100)",
			Buckets:   []float64{20, 40, 60, 80, 90, 100},
		}, []string{"method"}),
		cacheResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Analysis cache lookups by result",
		}, []string{"result"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status",
		}, []string{"route", "method", "status"}),
		httpLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"route", "method"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordAnalysis counts one analytics operation and observes its latency.
func (r *Recorder) RecordAnalysis(operation string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.analysesTotal.WithLabelValues(operation, status).Inc()
	r.analysisLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordForecast counts a forecast and, for fallbacks, the cause label
// derived from the fallback reason.
func (r *Recorder) RecordForecast(result models.ForecastResult) {
	r.forecastsTotal.WithLabelValues(string(result.Method)).Inc()
	if result.IsFallback() {
		r.fallbacksTotal.WithLabelValues(FallbackCause(result.Diagnostics.FallbackReason)).Inc()
	}
}

// RecordQuality observes a quality score for method.
func (r *Recorder) RecordQuality(method models.ForecastMethod, score float64) {
	r.qualityScore.WithLabelValues(string(method)).Observe(score)
}

// RecordCache counts a cache lookup: "hit", "miss" or "error".
func (r *Recorder) RecordCache(result string) {
	r.cacheResults.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one request. route should be the templated path.
func (r *Recorder) RecordHTTPRequest(route, method, status string, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// FallbackCause reduces a free-text fallback reason to a low-cardinality label.
func FallbackCause(reason string) string {
	switch {
	case reason == "":
		return "unknown"
	case strings.HasPrefix(reason, "insufficient data"):
		return "insufficient_data"
	case strings.HasPrefix(reason, "numeric degeneracy"):
		return "numeric_degeneracy"
	case strings.HasPrefix(reason, "unknown forecast method"):
		return "unknown_method"
	case strings.Contains(reason, "requested"):
		return "requested"
	default:
		return "other"
	}
}
