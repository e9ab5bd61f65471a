// Package engine is the workflow orchestrator and the only writer of
// workflow state.
//
// # Building an Engine
//
//	reg := definition.NewRegistry()
//	_ = reg.RegisterAll(defs...)
//
//	table, err := guidance.FromDefinitions(defs...)
//
//	eng, err := engine.New(pgStore, reg, table,
//	    engine.WithLogger(logger),
//	    engine.WithValidator(validator.New(validator.WithChecks(checks))),
//	    engine.WithExtension(audithook.New(recorder)),
//	)
//
// New fails when the guidance table leaves a step of a registered
// definition uncovered.
//
// # Driving a Workflow
//
//	wf, _ := eng.CreateWorkflow(ctx, engine.CreateInput{SkillType: "venture_development"})
//	wf, _ = eng.StartWorkflow(ctx, wf.ID)
//
//	steps, _ := eng.GetWorkflowSteps(ctx, wf.ID)
//	g, _ := eng.GetStepGuidance(ctx, wf.ID, steps[0].ID)
//
//	res, err := eng.CompleteStep(ctx, wf.ID, steps[0].ID, payload)
//	var verr *stepwise.StepValidationError
//	if errors.As(err, &verr) {
//	    // show verr.Errors, resubmit
//	}
//
// # Consistency
//
// Every mutation runs under a per-workflow lock, reloads the instance,
// and commits the instance, the changed steps and the validation records
// in one store write guarded by the instance version. A version conflict
// with another process reruns the operation from a fresh load, up to
// Config.ConflictRetries times with backoff between attempts.
//
// # Options
//
//   - [WithLogger]: set the logger
//   - [WithValidator]: set the step validator
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the operation chain
//   - [WithBackoff]: set the conflict-retry backoff strategy
//   - [WithConfig]: replace the engine configuration
//   - [WithClock]: set the time source
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
