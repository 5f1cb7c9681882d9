package catalog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/abgdnv/inventory-console/internal/catalog"

type metrics struct {
	calls    metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter(meterName)
	calls, err := meter.Int64Counter("console_api_requests",
		metric.WithDescription("Remote API calls by operation and outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("console_api_request_duration",
		metric.WithDescription("Remote API call latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &metrics{calls: calls, duration: duration}, nil
}

func (m *metrics) record(ctx context.Context, op string, started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, time.Since(started).Seconds(), attrs)
}
