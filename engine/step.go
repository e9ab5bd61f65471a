package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/guidance"
	"github.com/xraph/stepwise/id"
	mw "github.com/xraph/stepwise/middleware"
	"github.com/xraph/stepwise/validator"
	"github.com/xraph/stepwise/workflow"
)

// StepResult is the outcome of a step operation that moved the workflow.
type StepResult struct {
	Workflow *workflow.Instance `json:"workflow"`
	Step     *workflow.Step     `json:"step"`
	// Validation is set by CompleteStep.
	Validation *validator.Result `json:"validation,omitempty"`
}

// CompleteStep validates payload against the step's rules. When every
// blocking rule passes, the step is completed, the pointer advances (or
// the workflow completes), and the step, the instance and the validation
// records are committed together. Otherwise a *stepwise.StepValidationError
// listing every failed rule is returned, nothing but the records is
// written, and the step can be resubmitted.
func (eng *Engine) CompleteStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, payload map[string]any) (*StepResult, error) {
	op := mw.Op{Name: "complete_step", WorkflowID: workflowID, StepID: stepID}

	var out *StepResult
	err := eng.run(ctx, op, func(ctx context.Context) error {
		var (
			step      *workflow.Step
			res       validator.Result
			completed bool
		)
		wf, err := eng.mutate(ctx, op.Name, workflowID, stepID, func(ctx context.Context, wf *workflow.Instance) (*change, error) {
			s, err := eng.currentStep(ctx, op.Name, wf, stepID, workflow.Action("complete_step"))
			if err != nil {
				return nil, err
			}

			res = eng.evaluate(wf, s, payload)
			records := eng.records(wf, s, res, false)

			if !res.Valid {
				verr := &stepwise.StepValidationError{
					WorkflowID: wf.ID,
					StepID:     s.ID,
					StepNumber: s.StepNumber,
					Errors:     res.Errors,
					Warnings:   res.Warnings,
				}
				return &change{
					records: records,
					after: func(ctx context.Context) {
						eng.extensions.EmitStepRejected(ctx, wf, s, verr)
					},
				}, verr
			}

			now := eng.timestamp()
			s.Status = workflow.StepCompleted
			s.Data = workflow.Values(payload).Clone()
			if s.Data == nil {
				s.Data = workflow.Values{}
			}
			s.Validation = &workflow.Validation{
				Valid:       true,
				Errors:      res.Errors,
				Warnings:    res.Warnings,
				ValidatedAt: now,
			}
			s.CompletedAt = &now
			s.UpdatedAt = now

			completed = eng.advance(wf, now)
			step = s
			return &change{workflow: wf, steps: []*workflow.Step{s}, records: records}, nil
		})
		if err != nil {
			return err
		}

		eng.logger.InfoContext(ctx, "step completed",
			slog.String("workflow_id", wf.ID.String()),
			slog.Int("step_number", step.StepNumber),
			slog.Int("warnings", len(res.Warnings)),
		)
		eng.extensions.EmitStepCompleted(ctx, wf, step)
		if completed {
			eng.emitCompleted(ctx, wf)
		}
		out = &StepResult{Workflow: wf, Step: step, Validation: &res}
		return nil
	})
	return out, err
}

// SkipStep marks the current step skipped and advances. Only steps whose
// definition is optional can be skipped.
func (eng *Engine) SkipStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, reason string) (*StepResult, error) {
	op := mw.Op{Name: "skip_step", WorkflowID: workflowID, StepID: stepID}

	var out *StepResult
	err := eng.run(ctx, op, func(ctx context.Context) error {
		var (
			step      *workflow.Step
			completed bool
		)
		wf, err := eng.mutate(ctx, op.Name, workflowID, stepID, func(ctx context.Context, wf *workflow.Instance) (*change, error) {
			s, err := eng.currentStep(ctx, op.Name, wf, stepID, workflow.Action("skip_step"))
			if err != nil {
				return nil, err
			}
			if sd, ok := wf.Definition.Step(s.StepNumber); !ok || !sd.Optional {
				return nil, fmt.Errorf("%w: step %d of workflow %s", stepwise.ErrStepNotOptional, s.StepNumber, wf.ID)
			}

			now := eng.timestamp()
			s.Status = workflow.StepSkipped
			if reason != "" {
				s.Data = workflow.Values{"skip_reason": reason}
			}
			s.CompletedAt = &now
			s.UpdatedAt = now

			completed = eng.advance(wf, now)
			step = s
			return &change{workflow: wf, steps: []*workflow.Step{s}}, nil
		})
		if err != nil {
			return err
		}

		eng.extensions.EmitStepSkipped(ctx, wf, step, reason)
		if completed {
			eng.emitCompleted(ctx, wf)
		}
		out = &StepResult{Workflow: wf, Step: step}
		return nil
	})
	return out, err
}

// SaveStepDraft stores payload on the current step without validating it
// and marks the step in_progress.
func (eng *Engine) SaveStepDraft(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, payload map[string]any) (*workflow.Step, error) {
	op := mw.Op{Name: "save_step_draft", WorkflowID: workflowID, StepID: stepID}

	var out *workflow.Step
	err := eng.run(ctx, op, func(ctx context.Context) error {
		_, err := eng.mutate(ctx, op.Name, workflowID, stepID, func(ctx context.Context, wf *workflow.Instance) (*change, error) {
			s, err := eng.currentStep(ctx, op.Name, wf, stepID, workflow.Action("save_step_draft"))
			if err != nil {
				return nil, err
			}
			s.Status = workflow.StepInProgress
			s.Data = workflow.Values(payload).Clone()
			s.UpdatedAt = eng.timestamp()
			out = s
			return &change{workflow: wf, steps: []*workflow.Step{s}}, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdvanceWorkflow moves the pointer past a current step that has already
// finished, completing the workflow after the last step. CompleteStep and
// SkipStep advance on their own; this repairs an instance whose pointer
// was left behind.
func (eng *Engine) AdvanceWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	op := mw.Op{Name: "advance_workflow", WorkflowID: workflowID}

	var out *workflow.Instance
	err := eng.run(ctx, op, func(ctx context.Context) error {
		var completed bool
		wf, err := eng.mutate(ctx, op.Name, workflowID, id.Nil, func(ctx context.Context, wf *workflow.Instance) (*change, error) {
			if err := requireActive(wf); err != nil {
				return nil, err
			}
			if wf.Status != workflow.StatusInProgress {
				return nil, &stepwise.InvalidTransitionError{WorkflowID: wf.ID, From: string(wf.Status), Action: op.Name}
			}
			steps, err := eng.store.ListSteps(ctx, wf.ID)
			if err != nil {
				return nil, eng.storeErr(op.Name, wf.ID, id.Nil, err)
			}
			for _, s := range steps {
				if s.StepNumber == wf.CurrentStep && !s.Status.Finished() {
					return nil, &stepwise.OutOfOrderStepError{
						WorkflowID:  wf.ID,
						StepNumber:  s.StepNumber,
						CurrentStep: wf.CurrentStep,
						StepStatus:  string(s.Status),
					}
				}
			}
			completed = eng.advance(wf, eng.timestamp())
			return &change{workflow: wf}, nil
		})
		if err != nil {
			return err
		}
		if completed {
			eng.emitCompleted(ctx, wf)
		}
		out = wf
		return nil
	})
	return out, err
}

// advance moves wf to the step after its current one, or completes it
// when there is none. It reports whether the workflow completed.
func (eng *Engine) advance(wf *workflow.Instance, now time.Time) bool {
	if next, ok := wf.Definition.Step(wf.CurrentStep + 1); ok {
		wf.CurrentStep = next.Number
		wf.CurrentPhase = next.PhaseNumber
		return false
	}
	wf.Status, _ = workflow.Transition(wf.Status, workflow.ActionComplete)
	wf.CompletedAt = &now
	return true
}

func (eng *Engine) emitCompleted(ctx context.Context, wf *workflow.Instance) {
	var elapsed time.Duration
	if wf.StartedAt != nil && wf.CompletedAt != nil {
		elapsed = wf.CompletedAt.Sub(*wf.StartedAt)
	}
	eng.logger.InfoContext(ctx, "workflow completed",
		slog.String("workflow_id", wf.ID.String()),
		slog.Duration("elapsed", elapsed),
	)
	eng.extensions.EmitWorkflowCompleted(ctx, wf, elapsed)
}

// currentStep loads stepID and checks that it is the unfinished current
// step of an in_progress instance.
func (eng *Engine) currentStep(ctx context.Context, opName string, wf *workflow.Instance, stepID id.StepID, action workflow.Action) (*workflow.Step, error) {
	if err := requireActive(wf); err != nil {
		return nil, err
	}
	s, err := eng.store.GetStep(ctx, wf.ID, stepID)
	if err != nil {
		return nil, eng.storeErr(opName, wf.ID, stepID, err)
	}
	if wf.Status != workflow.StatusInProgress {
		return nil, &stepwise.InvalidTransitionError{WorkflowID: wf.ID, From: string(wf.Status), Action: string(action)}
	}
	if s.StepNumber != wf.CurrentStep || s.Status.Finished() {
		return nil, &stepwise.OutOfOrderStepError{
			WorkflowID:  wf.ID,
			StepNumber:  s.StepNumber,
			CurrentStep: wf.CurrentStep,
			StepStatus:  string(s.Status),
		}
	}
	return s, nil
}

// ──────────────────────────────────────────────────
// Validation
// ──────────────────────────────────────────────────

func (eng *Engine) evaluate(wf *workflow.Instance, s *workflow.Step, payload map[string]any) validator.Result {
	sd, _ := wf.Definition.Step(s.StepNumber)
	return eng.validator.Validate(validator.StepContext{
		SkillType:    wf.SkillType,
		StepNumber:   s.StepNumber,
		Data:         payload,
		WorkflowData: wf.Data,
	}, sd.Rules, sd.Advisories)
}

// records maps every evaluation to one validation record.
func (eng *Engine) records(wf *workflow.Instance, s *workflow.Step, res validator.Result, dryRun bool) []*workflow.ValidationRecord {
	now := eng.timestamp()
	out := make([]*workflow.ValidationRecord, 0, len(res.Evaluations))
	for _, ev := range res.Evaluations {
		out = append(out, &workflow.ValidationRecord{
			ID:         id.NewRecordID(),
			WorkflowID: wf.ID,
			StepID:     s.ID,
			Type:       ev.Type,
			Result:     workflow.RecordResult(ev.Outcome),
			Message:    ev.Message,
			Details: workflow.RecordDetails{
				Field:    ev.Field,
				Rule:     ev.Rule,
				Observed: ev.Observed,
				DryRun:   dryRun,
			},
			CreatedAt: now,
		})
	}
	return out
}

// ValidateStep runs the validator without changing any state. A nil
// payload validates the data stored on the step. Records are appended
// only when Config.AuditDryRuns is set.
func (eng *Engine) ValidateStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID, payload map[string]any) (*validator.Result, error) {
	op := mw.Op{Name: "validate_step", WorkflowID: workflowID, StepID: stepID}

	var out *validator.Result
	err := eng.run(ctx, op, func(ctx context.Context) error {
		wf, s, err := eng.load(ctx, op.Name, workflowID, stepID)
		if err != nil {
			return err
		}
		if payload == nil {
			payload = s.Data.Map()
		}
		res := eng.evaluate(wf, s, payload)

		if eng.config.AuditDryRuns {
			if err := eng.store.AppendValidationRecords(ctx, eng.records(wf, s, res, true)); err != nil {
				return eng.storeErr(op.Name, workflowID, stepID, err)
			}
		}
		out = &res
		return nil
	})
	return out, err
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// GetStepGuidance returns the guidance of a step rendered against the
// instance's accumulated data.
func (eng *Engine) GetStepGuidance(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*guidance.Result, error) {
	op := mw.Op{Name: "get_step_guidance", WorkflowID: workflowID, StepID: stepID}

	var out *guidance.Result
	err := eng.run(ctx, op, func(ctx context.Context) error {
		wf, s, err := eng.load(ctx, op.Name, workflowID, stepID)
		if err != nil {
			return err
		}
		res, err := eng.guide(ctx, wf, s)
		if err != nil {
			return err
		}
		out = &res
		return nil
	})
	return out, err
}

// guide dispatches through the table while the instance runs the
// registered definition of its skill. Any other snapshot, an ad-hoc
// definition or a superseded version, is served from its own content.
func (eng *Engine) guide(ctx context.Context, wf *workflow.Instance, s *workflow.Step) (guidance.Result, error) {
	data := wf.Data.Map()
	if wf.Definition == nil {
		return eng.guidance.Execute(ctx, wf.SkillType, s.StepNumber, data)
	}
	if cur, err := eng.registry.Get(wf.SkillType); err == nil && guidance.SameContent(cur, wf.Definition) {
		return eng.guidance.Execute(ctx, wf.SkillType, s.StepNumber, data)
	}
	return guidance.Serve(ctx, guidance.NewStatic(wf.Definition), wf.SkillType, s.StepNumber, data)
}

// GetStep returns one step of a workflow.
func (eng *Engine) GetStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Step, error) {
	var out *workflow.Step
	err := eng.run(ctx, mw.Op{Name: "get_step", WorkflowID: workflowID, StepID: stepID}, func(ctx context.Context) error {
		_, s, err := eng.load(ctx, "get_step", workflowID, stepID)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	return out, err
}

// GetWorkflowSteps returns every step of a workflow ordered by step number.
func (eng *Engine) GetWorkflowSteps(ctx context.Context, workflowID id.WorkflowID) ([]*workflow.Step, error) {
	var out []*workflow.Step
	err := eng.run(ctx, mw.Op{Name: "get_workflow_steps", WorkflowID: workflowID}, func(ctx context.Context) error {
		if _, err := eng.fetch(ctx, "get_workflow_steps", workflowID, id.Nil); err != nil {
			return err
		}
		steps, err := eng.store.ListSteps(ctx, workflowID)
		if err != nil {
			return eng.storeErr("get_workflow_steps", workflowID, id.Nil, err)
		}
		out = steps
		return nil
	})
	return out, err
}

// ListValidationRecords returns a workflow's validation records in
// creation order. A nil stepID returns the records of every step.
func (eng *Engine) ListValidationRecords(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) ([]*workflow.ValidationRecord, error) {
	op := mw.Op{Name: "list_validation_records", WorkflowID: workflowID, StepID: stepID}

	var out []*workflow.ValidationRecord
	err := eng.run(ctx, op, func(ctx context.Context) error {
		if _, err := eng.fetch(ctx, op.Name, workflowID, stepID); err != nil {
			return err
		}
		if !stepID.IsNil() {
			if _, err := eng.store.GetStep(ctx, workflowID, stepID); err != nil {
				return eng.storeErr(op.Name, workflowID, stepID, err)
			}
		}
		recs, err := eng.store.ListValidationRecords(ctx, workflowID, stepID)
		if err != nil {
			return eng.storeErr(op.Name, workflowID, stepID, err)
		}
		out = recs
		return nil
	})
	return out, err
}

func (eng *Engine) load(ctx context.Context, opName string, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Instance, *workflow.Step, error) {
	wf, err := eng.fetch(ctx, opName, workflowID, stepID)
	if err != nil {
		return nil, nil, err
	}
	s, err := eng.store.GetStep(ctx, workflowID, stepID)
	if err != nil {
		return nil, nil, eng.storeErr(opName, workflowID, stepID, err)
	}
	return wf, s, nil
}
