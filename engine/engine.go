package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/backoff"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/guidance"
	"github.com/xraph/stepwise/id"
	mw "github.com/xraph/stepwise/middleware"
	"github.com/xraph/stepwise/observability"
	"github.com/xraph/stepwise/scope"
	"github.com/xraph/stepwise/validator"
	"github.com/xraph/stepwise/workflow"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/xraph/stepwise"

// Engine orchestrates workflow instances. It holds no workflow state of
// its own; every operation reloads the instance from the store.
type Engine struct {
	store      workflow.Store
	registry   *definition.Registry
	validator  *validator.Validator
	guidance   *guidance.Table
	extensions *ext.Registry
	logger     *slog.Logger
	config     stepwise.Config
	bo         backoff.Strategy
	now        func() time.Time
	locks      *keyedMutex

	mws        []mw.Middleware
	chain      mw.Middleware
	noDefaults bool
	pending    []ext.Extension

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// New creates an Engine. It fails with a *guidance.CoverageError when the
// guidance table has no handler for some step of a registered definition.
func New(store workflow.Store, reg *definition.Registry, table *guidance.Table, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, stepwise.ErrNoStore
	}
	if reg == nil {
		reg = definition.NewRegistry()
	}
	if table == nil {
		table = guidance.NewTable()
	}

	eng := &Engine{
		store:    store,
		registry: reg,
		guidance: table,
		logger:   slog.Default(),
		config:   stepwise.DefaultConfig(),
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if err := table.Check(reg.All()...); err != nil {
		return nil, err
	}

	if eng.validator == nil {
		eng.validator = validator.New()
	}
	if missing := eng.validator.MissingChecks(reg.All()...); len(missing) > 0 {
		eng.logger.Warn("custom checks without implementation evaluate as warnings",
			slog.Any("checks", missing),
		)
	}
	if eng.bo == nil {
		eng.bo = backoff.NewJitter(eng.config.ConflictBackoffInitial, eng.config.ConflictBackoffMax)
	}

	eng.extensions = ext.NewRegistry(eng.logger)

	// Register the observability metrics extension first so lifecycle
	// counters see every event.
	if !eng.noDefaults {
		if eng.meterProvider != nil {
			eng.extensions.Register(observability.NewMetricsExtensionWithMeter(
				eng.meterProvider.Meter(instrumentationName + "/observability"),
			))
		} else {
			eng.extensions.Register(observability.NewMetricsExtension())
		}
	}
	for _, e := range eng.pending {
		eng.extensions.Register(e)
	}
	eng.pending = nil

	eng.chain = mw.Chain(eng.middlewares()...)
	return eng, nil
}

// middlewares builds the default stack: recover → tracing → metrics →
// logging, followed by user middleware.
func (eng *Engine) middlewares() []mw.Middleware {
	if eng.noDefaults {
		return eng.mws
	}

	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	all := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
	}
	return append(all, eng.mws...)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Registry returns the definition registry.
func (eng *Engine) Registry() *definition.Registry { return eng.registry }

// Guidance returns the guidance table.
func (eng *Engine) Guidance() *guidance.Table { return eng.guidance }

// Config returns the engine configuration.
func (eng *Engine) Config() stepwise.Config { return eng.config }

// Shutdown notifies extensions that the engine is stopping. The store is
// owned by the caller and is not closed.
func (eng *Engine) Shutdown(ctx context.Context) error {
	eng.extensions.EmitShutdown(ctx)
	return nil
}

// ──────────────────────────────────────────────────
// Operation plumbing
// ──────────────────────────────────────────────────

// run passes fn through the middleware chain.
func (eng *Engine) run(ctx context.Context, op mw.Op, fn mw.Handler) error {
	return eng.chain(ctx, op, fn)
}

// change is what a mutation wants written. A non-nil change returned
// together with an error is an audit-only rejection: its records are
// appended and its after hook fires, then the error is returned.
type change struct {
	workflow *workflow.Instance
	steps    []*workflow.Step
	records  []*workflow.ValidationRecord

	// after runs once the write is durable.
	after func(ctx context.Context)
}

// mutateFunc computes a change from a freshly loaded instance. It must
// not write to the store.
type mutateFunc func(ctx context.Context, wf *workflow.Instance) (*change, error)

// mutate serializes writers of one workflow, loads the instance, applies
// fn and commits the result with a version check. Conflicts with writers
// in other processes are retried from a fresh load.
func (eng *Engine) mutate(ctx context.Context, opName string, workflowID id.WorkflowID, stepID id.StepID, fn mutateFunc) (*workflow.Instance, error) {
	unlock := eng.locks.Lock(workflowID.String())
	defer unlock()

	for attempt := 0; ; attempt++ {
		wf, err := eng.fetch(ctx, opName, workflowID, stepID)
		if err != nil {
			return nil, err
		}

		c, err := fn(ctx, wf)
		if err != nil {
			if c != nil && len(c.records) > 0 {
				if aerr := eng.store.AppendValidationRecords(ctx, c.records); aerr != nil {
					uerr := &stepwise.EngineUnavailableError{Op: opName, WorkflowID: workflowID, StepID: stepID, Err: aerr}
					var verr *stepwise.StepValidationError
					if errors.As(err, &verr) && len(verr.Errors) > 0 {
						uerr.Rule = verr.Errors[0].Rule
					}
					return nil, uerr
				}
			}
			if c != nil && c.after != nil {
				c.after(ctx)
			}
			return nil, err
		}

		next := c.workflow
		next.Version = wf.Version + 1
		next.UpdatedAt = eng.timestamp()

		err = eng.store.Commit(ctx, &workflow.Commit{
			Workflow:        next,
			ExpectedVersion: wf.Version,
			Steps:           c.steps,
			Records:         c.records,
		})
		if err == nil {
			if c.after != nil {
				c.after(ctx)
			}
			return next, nil
		}
		if !errors.Is(err, stepwise.ErrVersionConflict) {
			return nil, eng.storeErr(opName, workflowID, stepID, err)
		}
		if attempt >= eng.config.ConflictRetries {
			return nil, &stepwise.EngineUnavailableError{Op: opName, WorkflowID: workflowID, StepID: stepID, Err: err}
		}

		eng.logger.DebugContext(ctx, "version conflict, retrying",
			slog.String("op", opName),
			slog.String("workflow_id", workflowID.String()),
			slog.Int("attempt", attempt+1),
		)
		if werr := backoff.Wait(ctx, eng.bo, attempt+1); werr != nil {
			return nil, &stepwise.EngineUnavailableError{Op: opName, WorkflowID: workflowID, StepID: stepID, Err: werr}
		}
	}
}

// storeErr maps a store error to the engine's error taxonomy.
func (eng *Engine) storeErr(opName string, workflowID id.WorkflowID, stepID id.StepID, err error) error {
	switch {
	case errors.Is(err, stepwise.ErrWorkflowNotFound):
		return &stepwise.NotFoundError{Kind: "workflow", ID: workflowID.String()}
	case errors.Is(err, stepwise.ErrStepNotFound):
		return &stepwise.NotFoundError{Kind: "step", ID: stepID.String()}
	}
	return &stepwise.EngineUnavailableError{Op: opName, WorkflowID: workflowID, StepID: stepID, Err: err}
}

// fetch loads an instance on behalf of the owner carried by ctx. An
// instance of any other owner is reported as not found. A context without
// an owner sees every instance.
func (eng *Engine) fetch(ctx context.Context, opName string, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Instance, error) {
	wf, err := eng.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, eng.storeErr(opName, workflowID, stepID, err)
	}
	if owner, ok := scope.Owner(ctx); ok && owner != wf.OwnerID {
		return nil, &stepwise.NotFoundError{Kind: "workflow", ID: workflowID.String()}
	}
	return wf, nil
}

// timestamp returns the current time in UTC at the precision every store
// round-trips.
func (eng *Engine) timestamp() time.Time {
	return eng.now().UTC().Truncate(time.Microsecond)
}

// requireActive rejects terminal instances.
func requireActive(wf *workflow.Instance) error {
	if wf.Status.Terminal() {
		return &stepwise.TerminalStateError{WorkflowID: wf.ID, Status: string(wf.Status)}
	}
	return nil
}

// transition applies a lifecycle action to wf in place.
func transition(wf *workflow.Instance, a workflow.Action) error {
	if err := requireActive(wf); err != nil {
		return err
	}
	to, ok := workflow.Transition(wf.Status, a)
	if !ok {
		return &stepwise.InvalidTransitionError{WorkflowID: wf.ID, From: string(wf.Status), Action: string(a)}
	}
	wf.Status = to
	return nil
}
