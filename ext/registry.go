package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type workflowCreatedEntry struct {
	name string
	hook WorkflowCreated
}

type workflowStartedEntry struct {
	name string
	hook WorkflowStarted
}

type workflowPausedEntry struct {
	name string
	hook WorkflowPaused
}

type workflowResumedEntry struct {
	name string
	hook WorkflowResumed
}

type workflowCompletedEntry struct {
	name string
	hook WorkflowCompleted
}

type workflowFailedEntry struct {
	name string
	hook WorkflowFailed
}

type workflowDeletedEntry struct {
	name string
	hook WorkflowDeleted
}

type stepCompletedEntry struct {
	name string
	hook StepCompleted
}

type stepRejectedEntry struct {
	name string
	hook StepRejected
}

type stepSkippedEntry struct {
	name string
	hook StepSkipped
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	workflowCreated   []workflowCreatedEntry
	workflowStarted   []workflowStartedEntry
	workflowPaused    []workflowPausedEntry
	workflowResumed   []workflowResumedEntry
	workflowCompleted []workflowCompletedEntry
	workflowFailed    []workflowFailedEntry
	workflowDeleted   []workflowDeletedEntry
	stepCompleted     []stepCompletedEntry
	stepRejected      []stepRejectedEntry
	stepSkipped       []stepSkippedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(WorkflowCreated); ok {
		r.workflowCreated = append(r.workflowCreated, workflowCreatedEntry{name, h})
	}
	if h, ok := e.(WorkflowStarted); ok {
		r.workflowStarted = append(r.workflowStarted, workflowStartedEntry{name, h})
	}
	if h, ok := e.(WorkflowPaused); ok {
		r.workflowPaused = append(r.workflowPaused, workflowPausedEntry{name, h})
	}
	if h, ok := e.(WorkflowResumed); ok {
		r.workflowResumed = append(r.workflowResumed, workflowResumedEntry{name, h})
	}
	if h, ok := e.(WorkflowCompleted); ok {
		r.workflowCompleted = append(r.workflowCompleted, workflowCompletedEntry{name, h})
	}
	if h, ok := e.(WorkflowFailed); ok {
		r.workflowFailed = append(r.workflowFailed, workflowFailedEntry{name, h})
	}
	if h, ok := e.(WorkflowDeleted); ok {
		r.workflowDeleted = append(r.workflowDeleted, workflowDeletedEntry{name, h})
	}
	if h, ok := e.(StepCompleted); ok {
		r.stepCompleted = append(r.stepCompleted, stepCompletedEntry{name, h})
	}
	if h, ok := e.(StepRejected); ok {
		r.stepRejected = append(r.stepRejected, stepRejectedEntry{name, h})
	}
	if h, ok := e.(StepSkipped); ok {
		r.stepSkipped = append(r.stepSkipped, stepSkippedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Workflow event emitters
// ──────────────────────────────────────────────────

// EmitWorkflowCreated notifies all extensions that implement WorkflowCreated.
func (r *Registry) EmitWorkflowCreated(ctx context.Context, wf *workflow.Instance) {
	for _, e := range r.workflowCreated {
		if err := e.hook.OnWorkflowCreated(ctx, wf); err != nil {
			r.logHookError("OnWorkflowCreated", e.name, err)
		}
	}
}

// EmitWorkflowStarted notifies all extensions that implement WorkflowStarted.
func (r *Registry) EmitWorkflowStarted(ctx context.Context, wf *workflow.Instance) {
	for _, e := range r.workflowStarted {
		if err := e.hook.OnWorkflowStarted(ctx, wf); err != nil {
			r.logHookError("OnWorkflowStarted", e.name, err)
		}
	}
}

// EmitWorkflowPaused notifies all extensions that implement WorkflowPaused.
func (r *Registry) EmitWorkflowPaused(ctx context.Context, wf *workflow.Instance) {
	for _, e := range r.workflowPaused {
		if err := e.hook.OnWorkflowPaused(ctx, wf); err != nil {
			r.logHookError("OnWorkflowPaused", e.name, err)
		}
	}
}

// EmitWorkflowResumed notifies all extensions that implement WorkflowResumed.
func (r *Registry) EmitWorkflowResumed(ctx context.Context, wf *workflow.Instance) {
	for _, e := range r.workflowResumed {
		if err := e.hook.OnWorkflowResumed(ctx, wf); err != nil {
			r.logHookError("OnWorkflowResumed", e.name, err)
		}
	}
}

// EmitWorkflowCompleted notifies all extensions that implement WorkflowCompleted.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, wf *workflow.Instance, elapsed time.Duration) {
	for _, e := range r.workflowCompleted {
		if err := e.hook.OnWorkflowCompleted(ctx, wf, elapsed); err != nil {
			r.logHookError("OnWorkflowCompleted", e.name, err)
		}
	}
}

// EmitWorkflowFailed notifies all extensions that implement WorkflowFailed.
func (r *Registry) EmitWorkflowFailed(ctx context.Context, wf *workflow.Instance, reason string) {
	for _, e := range r.workflowFailed {
		if err := e.hook.OnWorkflowFailed(ctx, wf, reason); err != nil {
			r.logHookError("OnWorkflowFailed", e.name, err)
		}
	}
}

// EmitWorkflowDeleted notifies all extensions that implement WorkflowDeleted.
func (r *Registry) EmitWorkflowDeleted(ctx context.Context, workflowID id.WorkflowID) {
	for _, e := range r.workflowDeleted {
		if err := e.hook.OnWorkflowDeleted(ctx, workflowID); err != nil {
			r.logHookError("OnWorkflowDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Step event emitters
// ──────────────────────────────────────────────────

// EmitStepCompleted notifies all extensions that implement StepCompleted.
func (r *Registry) EmitStepCompleted(ctx context.Context, wf *workflow.Instance, step *workflow.Step) {
	for _, e := range r.stepCompleted {
		if err := e.hook.OnStepCompleted(ctx, wf, step); err != nil {
			r.logHookError("OnStepCompleted", e.name, err)
		}
	}
}

// EmitStepRejected notifies all extensions that implement StepRejected.
func (r *Registry) EmitStepRejected(ctx context.Context, wf *workflow.Instance, step *workflow.Step, verr *stepwise.StepValidationError) {
	for _, e := range r.stepRejected {
		if err := e.hook.OnStepRejected(ctx, wf, step, verr); err != nil {
			r.logHookError("OnStepRejected", e.name, err)
		}
	}
}

// EmitStepSkipped notifies all extensions that implement StepSkipped.
func (r *Registry) EmitStepSkipped(ctx context.Context, wf *workflow.Instance, step *workflow.Step, reason string) {
	for _, e := range r.stepSkipped {
		if err := e.hook.OnStepSkipped(ctx, wf, step, reason); err != nil {
			r.logHookError("OnStepSkipped", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; the operation already committed.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
