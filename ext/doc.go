// Package ext defines the extension system for stepwise.
//
// Extensions are notified of lifecycle events and can react to them:
// recording metrics, alerting a human, generating documents, writing audit
// logs. Each lifecycle hook is a separate interface so extensions opt in
// only to the events they care about. Hooks run synchronously after the
// engine commits, and their errors are logged, never returned.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnStepCompleted(ctx context.Context, wf *workflow.Instance, s *workflow.Step) error {
//	    log.Printf("workflow %s finished step %d", wf.ID, s.StepNumber)
//	    return nil
//	}
//
// # Workflow Lifecycle Hooks
//
//   - [WorkflowCreated]: instance and steps were persisted
//   - [WorkflowStarted]: not_started → in_progress
//   - [WorkflowPaused]: in_progress → paused
//   - [WorkflowResumed]: paused → in_progress
//   - [WorkflowCompleted]: the last step completed
//   - [WorkflowFailed]: the instance was failed
//   - [WorkflowDeleted]: the instance and its history were removed
//
// # Step Lifecycle Hooks
//
//   - [StepCompleted]: a step passed validation and was committed
//   - [StepRejected]: a completion attempt failed validation
//   - [StepSkipped]: an optional step was skipped
//
// # Other Hooks
//
//   - [Shutdown]: the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
