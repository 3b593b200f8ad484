package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pscheid92/shiritori/internal/adapter/metrics"
)

const backendName = "postgres"

// MetricsTracer implements pgx.QueryTracer and labels each query by its
// leading SQL keyword.
type MetricsTracer struct {
	m *metrics.StoreMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.StoreMetrics) *MetricsTracer {
	return &MetricsTracer{m: m}
}

type queryContextKey struct{}

type queryContext struct {
	start     time.Time
	operation string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{
		start:     time.Now(),
		operation: queryOperation(data.SQL),
	})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}
	t.m.Observe(backendName, qctx.operation, time.Since(qctx.start).Seconds(), data.Err != nil)
}

// queryOperation keeps label cardinality low by using only the first keyword.
func queryOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	op := strings.ToUpper(fields[0])
	if len(op) > 20 {
		op = op[:20]
	}
	return op
}
