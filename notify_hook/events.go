package notifyhook

// Notification event types. Each constant maps to one ext lifecycle hook
// and is used as Notification.Event.
const (
	EventWorkflowPaused    = "stepwise.workflow.paused"
	EventWorkflowFailed    = "stepwise.workflow.failed"
	EventWorkflowCompleted = "stepwise.workflow.completed"
	EventStepRejected      = "stepwise.step.rejected"
)

// DefaultEvents returns the event types enabled when WithEvents is not used.
func DefaultEvents() []string {
	return []string{EventWorkflowPaused, EventWorkflowFailed}
}

// AllEvents returns every event type this extension can emit.
func AllEvents() []string {
	return []string{
		EventWorkflowPaused,
		EventWorkflowFailed,
		EventWorkflowCompleted,
		EventStepRejected,
	}
}
