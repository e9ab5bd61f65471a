package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionWorkflowCreated   = "workflow.created"
	ActionWorkflowStarted   = "workflow.started"
	ActionWorkflowPaused    = "workflow.paused"
	ActionWorkflowResumed   = "workflow.resumed"
	ActionWorkflowCompleted = "workflow.completed"
	ActionWorkflowFailed    = "workflow.failed"
	ActionWorkflowDeleted   = "workflow.deleted"
	ActionStepCompleted     = "step.completed"
	ActionStepRejected      = "step.rejected"
	ActionStepSkipped       = "step.skipped"
)

// Audit event categories group related actions.
const (
	CategoryWorkflow = "stepwise.workflow"
	CategoryStep     = "stepwise.step"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceWorkflow = "workflow"
	ResourceStep     = "step"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionWorkflowCreated,
		ActionWorkflowStarted,
		ActionWorkflowPaused,
		ActionWorkflowResumed,
		ActionWorkflowCompleted,
		ActionWorkflowFailed,
		ActionWorkflowDeleted,
		ActionStepCompleted,
		ActionStepRejected,
		ActionStepSkipped,
	}
}
