package notifyhook

import (
	"context"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.WorkflowPaused    = (*Extension)(nil)
	_ ext.WorkflowFailed    = (*Extension)(nil)
	_ ext.WorkflowCompleted = (*Extension)(nil)
	_ ext.StepRejected      = (*Extension)(nil)
)

// Notification is one alert addressed to a workflow's owner.
type Notification struct {
	Event      string    `json:"event"`
	OwnerID    string    `json:"owner_id"`
	WorkflowID string    `json:"workflow_id"`
	Data       any       `json:"data"`
	SentAt     time.Time `json:"sent_at"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n *Notification) error
}

// NotifierFunc is an adapter to use a plain function as a Notifier.
type NotifierFunc func(ctx context.Context, n *Notification) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n *Notification) error { return f(ctx, n) }

// Extension turns lifecycle events into notifications.
type Extension struct {
	notifier Notifier
	enabled  map[string]bool
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension that sends through n.
func New(n Notifier, opts ...Option) *Extension {
	h := &Extension{notifier: n}
	WithEvents(DefaultEvents()...)(h)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "notify-hook" }

// OnWorkflowPaused implements ext.WorkflowPaused.
func (h *Extension) OnWorkflowPaused(ctx context.Context, wf *workflow.Instance) error {
	return h.send(ctx, EventWorkflowPaused, wf, &pausedPayload{
		workflowPayload: *newWorkflowPayload(wf),
		StepName:        currentStepName(wf),
	})
}

// OnWorkflowFailed implements ext.WorkflowFailed.
func (h *Extension) OnWorkflowFailed(ctx context.Context, wf *workflow.Instance, reason string) error {
	return h.send(ctx, EventWorkflowFailed, wf, &failedPayload{
		workflowPayload: *newWorkflowPayload(wf),
		Reason:          reason,
	})
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (h *Extension) OnWorkflowCompleted(ctx context.Context, wf *workflow.Instance, elapsed time.Duration) error {
	return h.send(ctx, EventWorkflowCompleted, wf, &completedPayload{
		workflowPayload: *newWorkflowPayload(wf),
		ElapsedMs:       elapsed.Milliseconds(),
	})
}

// OnStepRejected implements ext.StepRejected.
func (h *Extension) OnStepRejected(ctx context.Context, wf *workflow.Instance, s *workflow.Step, verr *stepwise.StepValidationError) error {
	return h.send(ctx, EventStepRejected, wf, &rejectedPayload{
		workflowPayload: *newWorkflowPayload(wf),
		StepNumber:      s.StepNumber,
		StepName:        s.Name,
		Errors:          verr.Errors,
	})
}

// send notifies if the event type is enabled.
func (h *Extension) send(ctx context.Context, eventType string, wf *workflow.Instance, defaultData any) error {
	if !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	return h.notifier.Notify(ctx, &Notification{
		Event:      eventType,
		OwnerID:    wf.OwnerID,
		WorkflowID: wf.ID.String(),
		Data:       data,
		SentAt:     time.Now().UTC(),
	})
}

func currentStepName(wf *workflow.Instance) string {
	if wf.Definition == nil {
		return ""
	}
	s, _ := wf.Definition.Step(wf.CurrentStep)
	return s.Name
}

// ── Default payload types ───────────────────────────

type workflowPayload struct {
	WorkflowID   string `json:"workflow_id"`
	Name         string `json:"name"`
	SkillType    string `json:"skill_type"`
	CurrentPhase int    `json:"current_phase"`
	CurrentStep  int    `json:"current_step"`
}

func newWorkflowPayload(wf *workflow.Instance) *workflowPayload {
	return &workflowPayload{
		WorkflowID:   wf.ID.String(),
		Name:         wf.Name,
		SkillType:    wf.SkillType,
		CurrentPhase: wf.CurrentPhase,
		CurrentStep:  wf.CurrentStep,
	}
}

type pausedPayload struct {
	workflowPayload
	StepName string `json:"step_name,omitempty"`
}

type failedPayload struct {
	workflowPayload
	Reason string `json:"reason"`
}

type completedPayload struct {
	workflowPayload
	ElapsedMs int64 `json:"elapsed_ms"`
}

type rejectedPayload struct {
	workflowPayload
	StepNumber int              `json:"step_number"`
	StepName   string           `json:"step_name"`
	Errors     []stepwise.Issue `json:"errors"`
}
