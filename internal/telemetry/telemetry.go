package telemetry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Service information
	ServiceName    = "github.com/irfndi/econ-trends"
	ServiceVersion = "1.0.0"

	tracesPath = "/v1/traces"
)

// TelemetryConfig holds configuration for tracing.
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRate     float64
	BatchTimeout   time.Duration
	MaxExportBatch int
	MaxQueueSize   int
	LogLevel       string
	// StdoutWriter receives spans when no OTLP endpoint is set in development.
	StdoutWriter io.Writer
}

// DefaultConfig returns default telemetry configuration
func DefaultConfig() *TelemetryConfig {
	return &TelemetryConfig{
		Enabled:        true,
		OTLPEndpoint:   "http://localhost:4318",
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    "development",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		MaxExportBatch: 512,
		MaxQueueSize:   2048,
		LogLevel:       "info",
	}
}

// Provider holds the telemetry provider
type Provider struct {
	Shutdown func(context.Context) error
	logger   *slog.Logger
}

var globalProvider *Provider

// InitTelemetry initializes the global tracer provider.
func InitTelemetry(config TelemetryConfig) error {
	provider, err := InitTelemetryWithProvider(context.Background(), &config, slog.Default())
	if err != nil {
		return err
	}
	globalProvider = provider
	return nil
}

// InitTelemetryWithProvider builds a tracer provider from config and installs
// it globally together with the W3C trace-context propagator. A disabled
// config yields a provider whose Shutdown is a no-op.
func InitTelemetryWithProvider(ctx context.Context, config *TelemetryConfig, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	noop := &Provider{Shutdown: func(context.Context) error { return nil }, logger: logger}
	if config == nil || !config.Enabled {
		logger.Info("Telemetry disabled")
		return noop, nil
	}
	applyDefaults(config)

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		logger.Info("Telemetry enabled without exporter", "environment", config.Environment)
		return noop, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxExportBatch),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("Telemetry initialized",
		"service", config.ServiceName,
		"endpoint", config.OTLPEndpoint,
		"sample_rate", config.SampleRate)

	return &Provider{Shutdown: tp.Shutdown, logger: logger}, nil
}

func applyDefaults(config *TelemetryConfig) {
	d := DefaultConfig()
	if config.ServiceName == "" {
		config.ServiceName = d.ServiceName
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = d.ServiceVersion
	}
	if config.SampleRate <= 0 {
		config.SampleRate = d.SampleRate
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = d.BatchTimeout
	}
	if config.MaxExportBatch <= 0 {
		config.MaxExportBatch = d.MaxExportBatch
	}
	if config.MaxQueueSize <= 0 {
		config.MaxQueueSize = d.MaxQueueSize
	}
}

// newExporter picks OTLP/HTTP when an endpoint is configured and the stdout
// exporter in development. It returns nil when neither applies.
func newExporter(ctx context.Context, config *TelemetryConfig) (sdktrace.SpanExporter, error) {
	if config.OTLPEndpoint == "" {
		if config.Environment != "development" {
			return nil, nil
		}
		w := config.StdoutWriter
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		return exp, nil
	}

	hostport, urlPath, insecure, _, err := normalizeOTLPEndpoint(config.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLPEndpoint %q: %w", config.OTLPEndpoint, err)
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(hostport),
		otlptracehttp.WithURLPath(urlPath),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exp, nil
}

// normalizeOTLPEndpoint splits a collector base URL into the pieces the OTLP
// HTTP exporter wants, appending /v1/traces unless already present.
func normalizeOTLPEndpoint(raw string) (hostport, urlPath string, insecure bool, resolved string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", false, "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", false, "", fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return "", "", false, "", fmt.Errorf("missing host")
	}

	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, tracesPath) {
		path += tracesPath
	}
	insecure = u.Scheme == "http"
	resolved = fmt.Sprintf("%s://%s%s", u.Scheme, u.Host, path)
	return u.Host, path, insecure, resolved, nil
}

// Shutdown flushes and stops the global provider, if any.
func Shutdown() error {
	if globalProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := globalProvider.Shutdown(ctx)
	globalProvider = nil
	return err
}

// Logger returns the logger of the global provider, or slog.Default.
func Logger() *slog.Logger {
	if globalProvider != nil && globalProvider.logger != nil {
		return globalProvider.logger
	}
	return slog.Default()
}

// GetTracer returns a named tracer from the global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

func GetHTTPTracer() trace.Tracer      { return GetTracer(ServiceName + "/http") }
func GetDatabaseTracer() trace.Tracer  { return GetTracer(ServiceName + "/database") }
func GetCacheTracer() trace.Tracer     { return GetTracer(ServiceName + "/cache") }
func GetAnalyticsTracer() trace.Tracer { return GetTracer(ServiceName + "/analytics") }

// SetSpanAttributes sets attributes on a recording span.
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError records err on span and marks it failed. Nil errors are ignored.
func RecordError(span trace.Span, err error) {
	if err == nil || !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanStatus sets the status of a recording span.
func SetSpanStatus(span trace.Span, code codes.Code, description string) {
	if span.IsRecording() {
		span.SetStatus(code, description)
	}
}
