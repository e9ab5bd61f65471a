// Package audithook is a stepwise extension that bridges lifecycle events
// to an immutable audit trail backend.
//
// Every workflow and step lifecycle hook emits a structured audit event
// through the [Recorder] interface. The extension assigns severity levels
// (info for normal progress, warning for rejected or failed steps,
// critical for failed workflows) and metadata such as the skill type,
// owner, step number and the failed rules.
//
// The audit trail is separate from the validation records the engine
// stores with each workflow: those are part of the workflow history and
// are deleted with it, while audit events leave the process.
//
// # Usage
//
//	audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return sink.Write(ctx, evt)
//	}))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionStepRejected,
//	        audithook.ActionWorkflowFailed,
//	    ),
//	)
package audithook
