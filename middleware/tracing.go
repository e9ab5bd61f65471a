package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for stepwise tracing.
const tracerName = "github.com/xraph/stepwise"

// Tracing returns middleware that wraps each operation in an OpenTelemetry
// span. If no TracerProvider is configured globally, the default noop tracer
// is used and this middleware becomes a pass-through.
//
// Span attributes: stepwise.op, stepwise.workflow.id, stepwise.step.id,
// stepwise.skill_type, stepwise.owner_id (the IDs only when set).
// On error, the span status is set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, op Op, next Handler) error {
		attrs := []attribute.KeyValue{attribute.String("stepwise.op", op.Name)}
		if !op.WorkflowID.IsNil() {
			attrs = append(attrs, attribute.String("stepwise.workflow.id", op.WorkflowID.String()))
		}
		if !op.StepID.IsNil() {
			attrs = append(attrs, attribute.String("stepwise.step.id", op.StepID.String()))
		}
		if op.SkillType != "" {
			attrs = append(attrs, attribute.String("stepwise.skill_type", op.SkillType))
		}
		if op.OwnerID != "" {
			attrs = append(attrs, attribute.String("stepwise.owner_id", op.OwnerID))
		}

		ctx, span := tracer.Start(ctx, "stepwise."+op.Name,
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
