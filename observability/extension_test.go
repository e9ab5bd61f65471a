package observability_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/observability"
	"github.com/xraph/stepwise/workflow"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func newTestWorkflow() *workflow.Instance {
	return &workflow.Instance{
		ID:        id.NewWorkflowID(),
		Name:      "Acme launch",
		SkillType: "venture_development",
	}
}

// counterValue sums every data point of the named counter.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Hooks(t *testing.T) {
	ctx := context.Background()
	wf := newTestWorkflow()
	st := &workflow.Step{StepNumber: 1}

	tests := []struct {
		metric string
		fire   func(e *observability.MetricsExtension) error
	}{
		{"stepwise.workflow.created", func(e *observability.MetricsExtension) error { return e.OnWorkflowCreated(ctx, wf) }},
		{"stepwise.workflow.started", func(e *observability.MetricsExtension) error { return e.OnWorkflowStarted(ctx, wf) }},
		{"stepwise.workflow.paused", func(e *observability.MetricsExtension) error { return e.OnWorkflowPaused(ctx, wf) }},
		{"stepwise.workflow.resumed", func(e *observability.MetricsExtension) error { return e.OnWorkflowResumed(ctx, wf) }},
		{"stepwise.workflow.completed", func(e *observability.MetricsExtension) error {
			return e.OnWorkflowCompleted(ctx, wf, 2*time.Second)
		}},
		{"stepwise.workflow.failed", func(e *observability.MetricsExtension) error { return e.OnWorkflowFailed(ctx, wf, "abandoned") }},
		{"stepwise.step.completed", func(e *observability.MetricsExtension) error { return e.OnStepCompleted(ctx, wf, st) }},
		{"stepwise.step.rejected", func(e *observability.MetricsExtension) error {
			return e.OnStepRejected(ctx, wf, st, &stepwise.StepValidationError{})
		}},
		{"stepwise.step.skipped", func(e *observability.MetricsExtension) error { return e.OnStepSkipped(ctx, wf, st, "n/a") }},
	}

	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			e, reader := newTestExtension()
			if err := tt.fire(e); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := counterValue(t, reader, tt.metric); got != 1 {
				t.Errorf("%s: want 1, got %d", tt.metric, got)
			}
		})
	}
}

func TestMetricsExtension_RecordsDuration(t *testing.T) {
	e, reader := newTestExtension()
	if err := e.OnWorkflowCompleted(context.Background(), newTestWorkflow(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "stepwise.workflow.duration" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("expected Histogram[float64], got %T", m.Data)
			}
			if len(hist.DataPoints) != 1 || hist.DataPoints[0].Sum != 3 {
				t.Fatalf("unexpected data points: %+v", hist.DataPoints)
			}
			v, ok := hist.DataPoints[0].Attributes.Value("skill_type")
			if !ok || v.AsString() != "venture_development" {
				t.Errorf("skill_type attribute = %v", v)
			}
			return
		}
	}
	t.Fatal("stepwise.workflow.duration metric not found")
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	wf := newTestWorkflow()
	st := &workflow.Step{StepNumber: 1}

	reg.EmitWorkflowCreated(ctx, wf)
	reg.EmitWorkflowStarted(ctx, wf)
	reg.EmitStepCompleted(ctx, wf, st)
	reg.EmitStepCompleted(ctx, wf, st)
	reg.EmitWorkflowCompleted(ctx, wf, time.Second)

	checks := []struct {
		name string
		want int64
	}{
		{"stepwise.workflow.created", 1},
		{"stepwise.workflow.started", 1},
		{"stepwise.step.completed", 2},
		{"stepwise.workflow.completed", 1},
		{"stepwise.workflow.failed", 0},
	}
	for _, c := range checks {
		if got := counterValue(t, reader, c.name); got != c.want {
			t.Errorf("%s: want %d, got %d", c.name, c.want, got)
		}
	}
}
