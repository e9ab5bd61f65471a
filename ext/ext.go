// Package ext defines the extension system for stepwise.
// Extensions are notified of workflow lifecycle events after the engine has
// committed them, and can react to them (audit, notification, document
// generation, metrics).
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Workflow lifecycle hooks
// ──────────────────────────────────────────────────

// WorkflowCreated is called after an instance and its steps are persisted.
type WorkflowCreated interface {
	OnWorkflowCreated(ctx context.Context, wf *workflow.Instance) error
}

// WorkflowStarted is called when an instance moves to in_progress.
type WorkflowStarted interface {
	OnWorkflowStarted(ctx context.Context, wf *workflow.Instance) error
}

// WorkflowPaused is called when an instance is paused.
type WorkflowPaused interface {
	OnWorkflowPaused(ctx context.Context, wf *workflow.Instance) error
}

// WorkflowResumed is called when a paused instance resumes.
type WorkflowResumed interface {
	OnWorkflowResumed(ctx context.Context, wf *workflow.Instance) error
}

// WorkflowCompleted is called after the last step completes. elapsed is
// measured from StartedAt.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, wf *workflow.Instance, elapsed time.Duration) error
}

// WorkflowFailed is called when an instance is failed.
type WorkflowFailed interface {
	OnWorkflowFailed(ctx context.Context, wf *workflow.Instance, reason string) error
}

// WorkflowDeleted is called after an instance and its history are removed.
type WorkflowDeleted interface {
	OnWorkflowDeleted(ctx context.Context, workflowID id.WorkflowID) error
}

// ──────────────────────────────────────────────────
// Step lifecycle hooks
// ──────────────────────────────────────────────────

// StepCompleted is called after a step passes validation and is committed.
// wf is the instance after the pointer advanced.
type StepCompleted interface {
	OnStepCompleted(ctx context.Context, wf *workflow.Instance, step *workflow.Step) error
}

// StepRejected is called when a completion attempt fails validation.
type StepRejected interface {
	OnStepRejected(ctx context.Context, wf *workflow.Instance, step *workflow.Step, verr *stepwise.StepValidationError) error
}

// StepSkipped is called after an optional step is skipped.
type StepSkipped interface {
	OnStepSkipped(ctx context.Context, wf *workflow.Instance, step *workflow.Step, reason string) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
