package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for stepwise metrics.
const meterName = "github.com/xraph/stepwise"

// Metrics returns middleware that records per-operation metrics using
// the global OTel MeterProvider. If no MeterProvider is configured, noop
// instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - stepwise.operation.duration (Float64Histogram): run time in seconds,
//     with attributes: op, status ("ok", "rejected" or "error")
//   - stepwise.operation.calls (Int64Counter): total calls,
//     with attributes: op, status
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error, the API returns noop instruments.
	duration, dErr := meter.Float64Histogram(
		"stepwise.operation.duration",
		metric.WithDescription("Duration of engine operations in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr

	calls, cErr := meter.Int64Counter(
		"stepwise.operation.calls",
		metric.WithDescription("Total number of engine operations"),
		metric.WithUnit("{call}"),
	)
	_ = cErr

	return func(ctx context.Context, op Op, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		switch {
		case err == nil:
		case isRejection(err):
			status = "rejected"
		default:
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("op", op.Name),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		calls.Add(ctx, 1, attrs)

		return err
	}
}
