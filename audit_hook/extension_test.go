package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/stepwise"
	ah "github.com/xraph/stepwise/audit_hook"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// ── Mock recorder ────────────────────────────────────

// mockRecorder captures audit events for verification.
type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockRecorder) last() *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *mockRecorder) findByAction(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

// ── Test helpers ─────────────────────────────────────

func newTestWorkflow() *workflow.Instance {
	return &workflow.Instance{
		ID:          id.NewWorkflowID(),
		OwnerID:     "owner_123",
		SkillType:   "venture_development",
		Name:        "Acme launch",
		CurrentStep: 3,
		Definition: &definition.Workflow{
			SkillType: "venture_development",
			Version:   2,
			Phases: []definition.Phase{{Number: 1, Name: "Ideation", Steps: []definition.Step{
				{Number: 1, Name: "Problem"}, {Number: 2, Name: "Solution"}, {Number: 3, Name: "Market"},
			}}},
		},
	}
}

func newTestStep(wf *workflow.Instance) *workflow.Step {
	return &workflow.Step{
		ID:          id.NewStepID(),
		WorkflowID:  wf.ID,
		StepNumber:  3,
		PhaseNumber: 1,
		Name:        "Market",
		Validation:  &workflow.Validation{Valid: true, Warnings: []stepwise.Issue{{Field: "tam", Rule: "best_practice"}}},
	}
}

func TestExtension_Name(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	if e.Name() != "audit-hook" {
		t.Errorf("expected name %q, got %q", "audit-hook", e.Name())
	}
}

// ── Workflow lifecycle tests ─────────────────────────

func TestExtension_WorkflowCreated(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	wf := newTestWorkflow()

	if err := e.OnWorkflowCreated(context.Background(), wf); err != nil {
		t.Fatalf("OnWorkflowCreated: %v", err)
	}

	evt := rec.last()
	if evt == nil {
		t.Fatal("no event recorded")
	}
	if evt.Action != ah.ActionWorkflowCreated {
		t.Errorf("Action: want %q, got %q", ah.ActionWorkflowCreated, evt.Action)
	}
	if evt.Resource != ah.ResourceWorkflow {
		t.Errorf("Resource: want %q, got %q", ah.ResourceWorkflow, evt.Resource)
	}
	if evt.Category != ah.CategoryWorkflow {
		t.Errorf("Category: want %q, got %q", ah.CategoryWorkflow, evt.Category)
	}
	if evt.ResourceID != wf.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", wf.ID.String(), evt.ResourceID)
	}
	if evt.OwnerID != "owner_123" {
		t.Errorf("OwnerID: want %q, got %q", "owner_123", evt.OwnerID)
	}
	if evt.Severity != ah.SeverityInfo {
		t.Errorf("Severity: want %q, got %q", ah.SeverityInfo, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeSuccess {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeSuccess, evt.Outcome)
	}
	if evt.Metadata["skill_type"] != "venture_development" {
		t.Errorf("Metadata[skill_type]: got %v", evt.Metadata["skill_type"])
	}
	if evt.Metadata["steps"] != 3 {
		t.Errorf("Metadata[steps]: want 3, got %v", evt.Metadata["steps"])
	}
	if evt.Metadata["definition_version"] != 2 {
		t.Errorf("Metadata[definition_version]: want 2, got %v", evt.Metadata["definition_version"])
	}
}

func TestExtension_WorkflowCreated_NoDefinition(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	wf := newTestWorkflow()
	wf.Definition = nil

	if err := e.OnWorkflowCreated(context.Background(), wf); err != nil {
		t.Fatalf("OnWorkflowCreated: %v", err)
	}
	if _, ok := rec.last().Metadata["steps"]; ok {
		t.Error("steps should be absent without a definition")
	}
}

func TestExtension_WorkflowCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnWorkflowCompleted(context.Background(), newTestWorkflow(), 2*time.Second); err != nil {
		t.Fatalf("OnWorkflowCompleted: %v", err)
	}

	evt := rec.last()
	if evt.Action != ah.ActionWorkflowCompleted {
		t.Errorf("Action: want %q, got %q", ah.ActionWorkflowCompleted, evt.Action)
	}
	if evt.Metadata["elapsed_ms"] != int64(2000) {
		t.Errorf("Metadata[elapsed_ms]: want 2000, got %v", evt.Metadata["elapsed_ms"])
	}
}

func TestExtension_WorkflowFailed(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	if err := e.OnWorkflowFailed(context.Background(), newTestWorkflow(), "founder abandoned"); err != nil {
		t.Fatalf("OnWorkflowFailed: %v", err)
	}

	evt := rec.last()
	if evt.Severity != ah.SeverityCritical {
		t.Errorf("Severity: want %q, got %q", ah.SeverityCritical, evt.Severity)
	}
	if evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Outcome: want %q, got %q", ah.OutcomeFailure, evt.Outcome)
	}
	if evt.Reason != "founder abandoned" {
		t.Errorf("Reason: want %q, got %q", "founder abandoned", evt.Reason)
	}
	if evt.Metadata["current_step"] != 3 {
		t.Errorf("Metadata[current_step]: want 3, got %v", evt.Metadata["current_step"])
	}
}

func TestExtension_WorkflowDeleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	wfID := id.NewWorkflowID()

	if err := e.OnWorkflowDeleted(context.Background(), wfID); err != nil {
		t.Fatalf("OnWorkflowDeleted: %v", err)
	}

	evt := rec.last()
	if evt.ResourceID != wfID.String() {
		t.Errorf("ResourceID: want %q, got %q", wfID.String(), evt.ResourceID)
	}
	if evt.Severity != ah.SeverityWarning {
		t.Errorf("Severity: want %q, got %q", ah.SeverityWarning, evt.Severity)
	}
}

// ── Step lifecycle tests ─────────────────────────────

func TestExtension_StepCompleted(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	wf := newTestWorkflow()
	st := newTestStep(wf)

	if err := e.OnStepCompleted(context.Background(), wf, st); err != nil {
		t.Fatalf("OnStepCompleted: %v", err)
	}

	evt := rec.last()
	if evt.Resource != ah.ResourceStep || evt.Category != ah.CategoryStep {
		t.Errorf("Resource/Category: got %q/%q", evt.Resource, evt.Category)
	}
	if evt.ResourceID != st.ID.String() {
		t.Errorf("ResourceID: want %q, got %q", st.ID.String(), evt.ResourceID)
	}
	if evt.Metadata["workflow_id"] != wf.ID.String() {
		t.Errorf("Metadata[workflow_id]: got %v", evt.Metadata["workflow_id"])
	}
	if evt.Metadata["step_number"] != 3 {
		t.Errorf("Metadata[step_number]: want 3, got %v", evt.Metadata["step_number"])
	}
	if evt.Metadata["warnings"] != 1 {
		t.Errorf("Metadata[warnings]: want 1, got %v", evt.Metadata["warnings"])
	}
}

func TestExtension_StepRejected(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	wf := newTestWorkflow()
	st := newTestStep(wf)
	verr := &stepwise.StepValidationError{
		WorkflowID: wf.ID,
		StepID:     st.ID,
		StepNumber: 3,
		Errors: []stepwise.Issue{
			{Field: "market_size", Rule: "required_field(market_size)", Message: "market_size is required"},
			{Field: "competitors", Rule: "minimum_count(competitors >= 3)", Message: "too few"},
		},
	}

	if err := e.OnStepRejected(context.Background(), wf, st, verr); err != nil {
		t.Fatalf("OnStepRejected: %v", err)
	}

	evt := rec.last()
	if evt.Severity != ah.SeverityWarning || evt.Outcome != ah.OutcomeFailure {
		t.Errorf("Severity/Outcome: got %q/%q", evt.Severity, evt.Outcome)
	}
	rules, ok := evt.Metadata["failed_rules"].([]string)
	if !ok || len(rules) != 2 || rules[0] != "required_field(market_size)" {
		t.Errorf("Metadata[failed_rules]: got %v", evt.Metadata["failed_rules"])
	}
	if evt.Reason == "" {
		t.Error("Reason should carry the validation error")
	}
}

func TestExtension_StepSkipped(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)
	wf := newTestWorkflow()

	if err := e.OnStepSkipped(context.Background(), wf, newTestStep(wf), "not applicable"); err != nil {
		t.Fatalf("OnStepSkipped: %v", err)
	}
	if evt := rec.last(); evt.Action != ah.ActionStepSkipped || evt.Reason != "not applicable" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

// ── Filtering test ───────────────────────────────────

func TestExtension_WithActions_FiltersDisabled(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec, ah.WithActions(ah.ActionWorkflowCompleted, ah.ActionWorkflowFailed))

	ctx := context.Background()
	wf := newTestWorkflow()

	// Started is NOT enabled; should be silently skipped.
	if err := e.OnWorkflowStarted(ctx, wf); err != nil {
		t.Fatalf("OnWorkflowStarted: %v", err)
	}
	if rec.count() != 0 {
		t.Errorf("expected 0 events (started disabled), got %d", rec.count())
	}

	// Completed IS enabled; should be recorded.
	if err := e.OnWorkflowCompleted(ctx, wf, 50*time.Millisecond); err != nil {
		t.Fatalf("OnWorkflowCompleted: %v", err)
	}
	if rec.count() != 1 {
		t.Errorf("expected 1 event (completed enabled), got %d", rec.count())
	}

	// Failed IS enabled; should be recorded.
	if err := e.OnWorkflowFailed(ctx, wf, "boom"); err != nil {
		t.Fatalf("OnWorkflowFailed: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("expected 2 events, got %d", rec.count())
	}
}

// ── RecorderFunc adapter test ────────────────────────

func TestRecorderFunc(t *testing.T) {
	var captured *ah.AuditEvent
	fn := ah.RecorderFunc(func(_ context.Context, evt *ah.AuditEvent) error {
		captured = evt
		return nil
	})

	e := ah.New(fn)
	if err := e.OnWorkflowStarted(context.Background(), newTestWorkflow()); err != nil {
		t.Fatalf("OnWorkflowStarted: %v", err)
	}
	if captured == nil {
		t.Fatal("RecorderFunc was not called")
	}
	if captured.Action != ah.ActionWorkflowStarted {
		t.Errorf("Action: want %q, got %q", ah.ActionWorkflowStarted, captured.Action)
	}
}

// ── Recorder error handling test ─────────────────────

func TestExtension_RecorderError_DoesNotPropagate(t *testing.T) {
	failingRecorder := ah.RecorderFunc(func(_ context.Context, _ *ah.AuditEvent) error {
		return errors.New("audit backend down")
	})

	e := ah.New(failingRecorder)

	// Audit failures must not block the workflow.
	if err := e.OnWorkflowStarted(context.Background(), newTestWorkflow()); err != nil {
		t.Fatalf("expected no error (audit failure swallowed), got: %v", err)
	}
}

// ── Registry integration test ────────────────────────

func TestExtension_ViaRegistry(t *testing.T) {
	rec := &mockRecorder{}
	e := ah.New(rec)

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	wf := newTestWorkflow()
	st := newTestStep(wf)

	reg.EmitWorkflowCreated(ctx, wf)
	reg.EmitWorkflowStarted(ctx, wf)
	reg.EmitWorkflowPaused(ctx, wf)
	reg.EmitWorkflowResumed(ctx, wf)
	reg.EmitStepRejected(ctx, wf, st, &stepwise.StepValidationError{})
	reg.EmitStepCompleted(ctx, wf, st)
	reg.EmitStepSkipped(ctx, wf, st, "optional")
	reg.EmitWorkflowCompleted(ctx, wf, 2*time.Second)
	reg.EmitWorkflowFailed(ctx, wf, "wf fail")
	reg.EmitWorkflowDeleted(ctx, wf.ID)

	allActions := ah.AllActions()
	if rec.count() != len(allActions) {
		t.Fatalf("expected %d events, got %d", len(allActions), rec.count())
	}

	for _, action := range allActions {
		if rec.findByAction(action) == nil {
			t.Errorf("missing event for action %q", action)
		}
	}
}

func TestAllActions(t *testing.T) {
	actions := ah.AllActions()
	if len(actions) != 10 {
		t.Errorf("expected 10 actions, got %d", len(actions))
	}
}
