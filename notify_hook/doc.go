// Package notifyhook alerts a human when a workflow needs attention. When
// registered as an extension it hands a typed [Notification] to a
// [Notifier] whenever a workflow is paused or failed.
//
// Delivery (email, chat, push) is the Notifier's business:
//
//	hook := notifyhook.New(notifyhook.NotifierFunc(func(ctx context.Context, n *notifyhook.Notification) error {
//	    return mailer.Send(ctx, n.OwnerID, n.Event, n.Data)
//	}))
//	engine.WithExtension(hook)
//
// Completion and rejection notices are available but off by default:
//
//	hook := notifyhook.New(n,
//	    notifyhook.WithEvents(
//	        notifyhook.EventWorkflowFailed,
//	        notifyhook.EventWorkflowCompleted,
//	    ),
//	)
package notifyhook
