package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.WorkflowCreated   = (*MetricsExtension)(nil)
	_ ext.WorkflowStarted   = (*MetricsExtension)(nil)
	_ ext.WorkflowPaused    = (*MetricsExtension)(nil)
	_ ext.WorkflowResumed   = (*MetricsExtension)(nil)
	_ ext.WorkflowCompleted = (*MetricsExtension)(nil)
	_ ext.WorkflowFailed    = (*MetricsExtension)(nil)
	_ ext.StepCompleted     = (*MetricsExtension)(nil)
	_ ext.StepRejected      = (*MetricsExtension)(nil)
	_ ext.StepSkipped       = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/stepwise/observability"

// MetricsExtension records lifecycle metrics through an OTel meter. Every
// data point carries a skill_type attribute.
//
// Instruments:
//   - stepwise.workflow.{created,started,paused,resumed,completed,failed}
//   - stepwise.step.{completed,rejected,skipped}
//   - stepwise.workflow.duration (Float64Histogram, seconds from start to completion)
type MetricsExtension struct {
	WorkflowCreated   metric.Int64Counter
	WorkflowStarted   metric.Int64Counter
	WorkflowPaused    metric.Int64Counter
	WorkflowResumed   metric.Int64Counter
	WorkflowCompleted metric.Int64Counter
	WorkflowFailed    metric.Int64Counter
	StepCompleted     metric.Int64Counter
	StepRejected      metric.Int64Counter
	StepSkipped       metric.Int64Counter
	WorkflowDuration  metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension on the global meter provider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On error, the API returns noop instruments.
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc)) //nolint:errcheck // noop on error
		return c
	}
	duration, _ := meter.Float64Histogram("stepwise.workflow.duration", //nolint:errcheck // noop on error
		metric.WithDescription("Time from workflow start to completion in seconds"),
		metric.WithUnit("s"),
	)

	return &MetricsExtension{
		WorkflowCreated:   counter("stepwise.workflow.created", "Workflow instances created"),
		WorkflowStarted:   counter("stepwise.workflow.started", "Workflow instances started"),
		WorkflowPaused:    counter("stepwise.workflow.paused", "Workflow instances paused"),
		WorkflowResumed:   counter("stepwise.workflow.resumed", "Workflow instances resumed"),
		WorkflowCompleted: counter("stepwise.workflow.completed", "Workflow instances completed"),
		WorkflowFailed:    counter("stepwise.workflow.failed", "Workflow instances failed"),
		StepCompleted:     counter("stepwise.step.completed", "Steps completed"),
		StepRejected:      counter("stepwise.step.rejected", "Step completions rejected by validation"),
		StepSkipped:       counter("stepwise.step.skipped", "Optional steps skipped"),
		WorkflowDuration:  duration,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func skill(wf *workflow.Instance) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("skill_type", wf.SkillType))
}

// ── Workflow lifecycle hooks ────────────────────────

// OnWorkflowCreated implements ext.WorkflowCreated.
func (m *MetricsExtension) OnWorkflowCreated(ctx context.Context, wf *workflow.Instance) error {
	m.WorkflowCreated.Add(ctx, 1, skill(wf))
	return nil
}

// OnWorkflowStarted implements ext.WorkflowStarted.
func (m *MetricsExtension) OnWorkflowStarted(ctx context.Context, wf *workflow.Instance) error {
	m.WorkflowStarted.Add(ctx, 1, skill(wf))
	return nil
}

// OnWorkflowPaused implements ext.WorkflowPaused.
func (m *MetricsExtension) OnWorkflowPaused(ctx context.Context, wf *workflow.Instance) error {
	m.WorkflowPaused.Add(ctx, 1, skill(wf))
	return nil
}

// OnWorkflowResumed implements ext.WorkflowResumed.
func (m *MetricsExtension) OnWorkflowResumed(ctx context.Context, wf *workflow.Instance) error {
	m.WorkflowResumed.Add(ctx, 1, skill(wf))
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(ctx context.Context, wf *workflow.Instance, elapsed time.Duration) error {
	m.WorkflowCompleted.Add(ctx, 1, skill(wf))
	m.WorkflowDuration.Record(ctx, elapsed.Seconds(), skill(wf))
	return nil
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (m *MetricsExtension) OnWorkflowFailed(ctx context.Context, wf *workflow.Instance, _ string) error {
	m.WorkflowFailed.Add(ctx, 1, skill(wf))
	return nil
}

// ── Step lifecycle hooks ────────────────────────────

// OnStepCompleted implements ext.StepCompleted.
func (m *MetricsExtension) OnStepCompleted(ctx context.Context, wf *workflow.Instance, _ *workflow.Step) error {
	m.StepCompleted.Add(ctx, 1, skill(wf))
	return nil
}

// OnStepRejected implements ext.StepRejected.
func (m *MetricsExtension) OnStepRejected(ctx context.Context, wf *workflow.Instance, _ *workflow.Step, _ *stepwise.StepValidationError) error {
	m.StepRejected.Add(ctx, 1, skill(wf))
	return nil
}

// OnStepSkipped implements ext.StepSkipped.
func (m *MetricsExtension) OnStepSkipped(ctx context.Context, wf *workflow.Instance, _ *workflow.Step, _ string) error {
	m.StepSkipped.Add(ctx, 1, skill(wf))
	return nil
}
