package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/econ-trends/internal/telemetry"
)

// QueryTracer opens one client span per statement. It satisfies
// pgx.QueryTracer and is installed on every pool built by this package.
type QueryTracer struct {
	tracer trace.Tracer
}

var _ pgx.QueryTracer = (*QueryTracer)(nil)

func NewQueryTracer() *QueryTracer {
	return &QueryTracer{}
}

// the global provider may be replaced after the pool is built
func (t *QueryTracer) activeTracer() trace.Tracer {
	if t.tracer != nil {
		return t.tracer
	}
	return telemetry.GetDatabaseTracer()
}

func (t *QueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	ctx, _ = t.activeTracer().Start(ctx, "db."+statementVerb(data.SQL),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.statement", data.SQL),
			attribute.Int("db.args", len(data.Args)),
		),
	)
	return ctx
}

func (t *QueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()))
	if data.Err != nil {
		span.RecordError(data.Err)
		span.SetStatus(codes.Error, data.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// statementVerb returns the lowercased first keyword of sql ("select", "insert").
func statementVerb(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "query"
	}
	return strings.ToLower(fields[0])
}
