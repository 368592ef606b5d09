package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/econ-trends/internal/models"
)

// StartAnalysisSpan starts an internal span named "analytics.<operation>"
// tagged with the indicator.
func StartAnalysisSpan(ctx context.Context, operation, indicator string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("analytics.operation", operation),
		attribute.String("analytics.indicator", indicator),
	)
	return GetAnalyticsTracer().Start(ctx, "analytics."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan records err when non-nil, otherwise marks the span ok, then ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		RecordError(span, err)
	} else {
		SetSpanStatus(span, codes.Ok, "")
	}
	span.End()
}

// RecordForecast annotates span with the outcome of a forecast.
func RecordForecast(span trace.Span, result models.ForecastResult) {
	attrs := []attribute.KeyValue{
		attribute.String("forecast.method", string(result.Method)),
		attribute.Int("forecast.horizon", result.Horizon),
		attribute.Bool("forecast.fallback", result.IsFallback()),
	}
	if result.Diagnostics.FallbackReason != "" {
		attrs = append(attrs, attribute.String("forecast.fallback_reason", result.Diagnostics.FallbackReason))
	}
	SetSpanAttributes(span, attrs...)
}

// RecordQuality annotates span with a quality score.
func RecordQuality(span trace.Span, score models.QualityScore) {
	SetSpanAttributes(span,
		attribute.Float64("forecast.quality_score", score.Score),
		attribute.String("forecast.reliability", string(score.Reliability)),
	)
}
