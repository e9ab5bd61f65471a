package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.WorkflowCreated   = (*Extension)(nil)
	_ ext.WorkflowStarted   = (*Extension)(nil)
	_ ext.WorkflowPaused    = (*Extension)(nil)
	_ ext.WorkflowResumed   = (*Extension)(nil)
	_ ext.WorkflowCompleted = (*Extension)(nil)
	_ ext.WorkflowFailed    = (*Extension)(nil)
	_ ext.WorkflowDeleted   = (*Extension)(nil)
	_ ext.StepCompleted     = (*Extension)(nil)
	_ ext.StepRejected      = (*Extension)(nil)
	_ ext.StepSkipped       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. Callers
// inject the concrete sink at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	OwnerID    string         `json:"owner_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges stepwise lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Workflow lifecycle hooks ────────────────────────

// OnWorkflowCreated implements ext.WorkflowCreated.
func (e *Extension) OnWorkflowCreated(ctx context.Context, wf *workflow.Instance) error {
	var kv []any
	if wf.Definition != nil {
		kv = append(kv, "steps", wf.Definition.StepCount(), "definition_version", wf.Definition.Version)
	}
	return e.workflowEvent(ctx, ActionWorkflowCreated, SeverityInfo, OutcomeSuccess, wf, "", kv...)
}

// OnWorkflowStarted implements ext.WorkflowStarted.
func (e *Extension) OnWorkflowStarted(ctx context.Context, wf *workflow.Instance) error {
	return e.workflowEvent(ctx, ActionWorkflowStarted, SeverityInfo, OutcomeSuccess, wf, "")
}

// OnWorkflowPaused implements ext.WorkflowPaused.
func (e *Extension) OnWorkflowPaused(ctx context.Context, wf *workflow.Instance) error {
	return e.workflowEvent(ctx, ActionWorkflowPaused, SeverityInfo, OutcomeSuccess, wf, "",
		"current_step", wf.CurrentStep,
	)
}

// OnWorkflowResumed implements ext.WorkflowResumed.
func (e *Extension) OnWorkflowResumed(ctx context.Context, wf *workflow.Instance) error {
	return e.workflowEvent(ctx, ActionWorkflowResumed, SeverityInfo, OutcomeSuccess, wf, "",
		"current_step", wf.CurrentStep,
	)
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (e *Extension) OnWorkflowCompleted(ctx context.Context, wf *workflow.Instance, elapsed time.Duration) error {
	return e.workflowEvent(ctx, ActionWorkflowCompleted, SeverityInfo, OutcomeSuccess, wf, "",
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (e *Extension) OnWorkflowFailed(ctx context.Context, wf *workflow.Instance, reason string) error {
	return e.workflowEvent(ctx, ActionWorkflowFailed, SeverityCritical, OutcomeFailure, wf, reason,
		"current_step", wf.CurrentStep,
	)
}

// OnWorkflowDeleted implements ext.WorkflowDeleted.
func (e *Extension) OnWorkflowDeleted(ctx context.Context, workflowID id.WorkflowID) error {
	return e.record(ctx, &AuditEvent{
		Action:     ActionWorkflowDeleted,
		Resource:   ResourceWorkflow,
		Category:   CategoryWorkflow,
		ResourceID: workflowID.String(),
		Outcome:    OutcomeSuccess,
		Severity:   SeverityWarning,
	})
}

// ── Step lifecycle hooks ────────────────────────────

// OnStepCompleted implements ext.StepCompleted.
func (e *Extension) OnStepCompleted(ctx context.Context, wf *workflow.Instance, s *workflow.Step) error {
	warnings := 0
	if s.Validation != nil {
		warnings = len(s.Validation.Warnings)
	}
	return e.stepEvent(ctx, ActionStepCompleted, SeverityInfo, OutcomeSuccess, wf, s, "",
		"warnings", warnings,
	)
}

// OnStepRejected implements ext.StepRejected.
func (e *Extension) OnStepRejected(ctx context.Context, wf *workflow.Instance, s *workflow.Step, verr *stepwise.StepValidationError) error {
	rules := make([]string, 0, len(verr.Errors))
	for _, is := range verr.Errors {
		rules = append(rules, is.Rule)
	}
	return e.stepEvent(ctx, ActionStepRejected, SeverityWarning, OutcomeFailure, wf, s, verr.Error(),
		"failed_rules", rules,
	)
}

// OnStepSkipped implements ext.StepSkipped.
func (e *Extension) OnStepSkipped(ctx context.Context, wf *workflow.Instance, s *workflow.Step, reason string) error {
	return e.stepEvent(ctx, ActionStepSkipped, SeverityInfo, OutcomeSuccess, wf, s, reason)
}

// ── Internal helpers ────────────────────────────────

func (e *Extension) workflowEvent(
	ctx context.Context,
	action, severity, outcome string,
	wf *workflow.Instance,
	reason string,
	kvPairs ...any,
) error {
	meta := metadata(append([]any{"skill_type", wf.SkillType, "workflow_name", wf.Name}, kvPairs...))
	return e.record(ctx, &AuditEvent{
		Action:     action,
		Resource:   ResourceWorkflow,
		Category:   CategoryWorkflow,
		ResourceID: wf.ID.String(),
		OwnerID:    wf.OwnerID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	})
}

func (e *Extension) stepEvent(
	ctx context.Context,
	action, severity, outcome string,
	wf *workflow.Instance,
	s *workflow.Step,
	reason string,
	kvPairs ...any,
) error {
	meta := metadata(append([]any{
		"skill_type", wf.SkillType,
		"workflow_id", wf.ID.String(),
		"step_number", s.StepNumber,
		"phase_number", s.PhaseNumber,
		"step_name", s.Name,
	}, kvPairs...))
	return e.record(ctx, &AuditEvent{
		Action:     action,
		Resource:   ResourceStep,
		Category:   CategoryStep,
		ResourceID: s.ID.String(),
		OwnerID:    wf.OwnerID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	})
}

// metadata turns a list of key-value pairs into a map.
func metadata(kvPairs []any) map[string]any {
	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}
	return meta
}

// record sends evt if its action is enabled. Recorder failures are
// logged, never returned.
func (e *Extension) record(ctx context.Context, evt *AuditEvent) error {
	if e.enabled != nil && !e.enabled[evt.Action] {
		return nil
	}
	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", evt.Action,
			"resource_id", evt.ResourceID,
			"error", recErr,
		)
	}
	return nil
}
