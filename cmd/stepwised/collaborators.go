package main

import (
	"context"
	"log/slog"

	audithook "github.com/xraph/stepwise/audit_hook"
	docgenhook "github.com/xraph/stepwise/docgen_hook"
	notifyhook "github.com/xraph/stepwise/notify_hook"
)

// The daemon has no document renderer, mail gateway or audit database of
// its own; these log what would have been sent so deployments can ship
// the lines to whatever consumes them.

func logRecorder(logger *slog.Logger) audithook.Recorder {
	return audithook.RecorderFunc(func(ctx context.Context, ev *audithook.AuditEvent) error {
		logger.InfoContext(ctx, "audit",
			slog.String("action", ev.Action),
			slog.String("resource", ev.Resource),
			slog.String("resource_id", ev.ResourceID),
			slog.String("owner_id", ev.OwnerID),
			slog.String("outcome", ev.Outcome),
			slog.String("severity", ev.Severity),
			slog.String("reason", ev.Reason),
		)
		return nil
	})
}

func logNotifier(logger *slog.Logger) notifyhook.Notifier {
	return notifyhook.NotifierFunc(func(ctx context.Context, n *notifyhook.Notification) error {
		logger.InfoContext(ctx, "notify",
			slog.String("event", n.Event),
			slog.String("owner_id", n.OwnerID),
			slog.String("workflow_id", n.WorkflowID),
		)
		return nil
	})
}

func logGenerator(logger *slog.Logger) docgenhook.Generator {
	return docgenhook.GeneratorFunc(func(ctx context.Context, req *docgenhook.Request) error {
		logger.InfoContext(ctx, "generate documents",
			slog.String("workflow_id", req.WorkflowID),
			slog.String("skill_type", req.SkillType),
			slog.Int("step_number", req.StepNumber),
			slog.Any("deliverables", req.Deliverables),
		)
		return nil
	})
}
