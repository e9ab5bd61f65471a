package engine

import (
	"context"
	"log/slog"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/id"
	mw "github.com/xraph/stepwise/middleware"
	"github.com/xraph/stepwise/scope"
	"github.com/xraph/stepwise/workflow"
)

// CreateInput describes a new workflow instance.
type CreateInput struct {
	// OwnerID defaults to the owner carried by the context.
	OwnerID   string
	SkillType string
	// Name defaults to the definition's name.
	Name string
	// Definition overrides the registry entry for SkillType. It is
	// normalized and validated but not registered.
	Definition *definition.Workflow
	Metadata   map[string]any
}

// CreateWorkflow materializes an instance positioned at step 1 together
// with one pending step per step definition, all persisted in one write.
func (eng *Engine) CreateWorkflow(ctx context.Context, in CreateInput) (*workflow.Instance, error) {
	owner := in.OwnerID
	if owner == "" {
		owner = scope.OwnerOr(ctx, "")
	}
	op := mw.Op{Name: "create_workflow", SkillType: in.SkillType, OwnerID: owner}

	var out *workflow.Instance
	err := eng.run(ctx, op, func(ctx context.Context) error {
		def, err := eng.resolveDefinition(in)
		if err != nil {
			return err
		}

		wf, steps := eng.materialize(def, owner, in)
		if err := eng.store.CreateWorkflow(ctx, wf, steps); err != nil {
			return eng.storeErr(op.Name, wf.ID, id.Nil, err)
		}

		eng.logger.InfoContext(ctx, "workflow created",
			slog.String("workflow_id", wf.ID.String()),
			slog.String("skill_type", wf.SkillType),
			slog.Int("steps", len(steps)),
		)
		eng.extensions.EmitWorkflowCreated(ctx, wf)
		out = wf
		return nil
	})
	return out, err
}

func (eng *Engine) resolveDefinition(in CreateInput) (*definition.Workflow, error) {
	if in.Definition == nil {
		return eng.registry.Get(in.SkillType)
	}
	def := in.Definition.Clone()
	if def.SkillType == "" {
		def.SkillType = in.SkillType
	}
	def.Normalize()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

func (eng *Engine) materialize(def *definition.Workflow, owner string, in CreateInput) (*workflow.Instance, []*workflow.Step) {
	now := eng.timestamp()
	entity := stepwise.Entity{CreatedAt: now, UpdatedAt: now}

	name := in.Name
	if name == "" {
		name = def.Name
	}

	first := def.Steps()[0]
	wf := &workflow.Instance{
		Entity:       entity,
		ID:           id.NewWorkflowID(),
		OwnerID:      owner,
		SkillType:    def.SkillType,
		Name:         name,
		Status:       workflow.StatusNotStarted,
		CurrentPhase: first.PhaseNumber,
		CurrentStep:  first.Number,
		Data:         workflow.Values{},
		Metadata:     workflow.Values(in.Metadata).Clone(),
		Version:      1,
		Definition:   def,
	}

	defs := def.Steps()
	steps := make([]*workflow.Step, 0, len(defs))
	for _, sd := range defs {
		steps = append(steps, &workflow.Step{
			Entity:      entity,
			ID:          id.NewStepID(),
			WorkflowID:  wf.ID,
			StepNumber:  sd.Number,
			PhaseNumber: sd.PhaseNumber,
			Name:        sd.Name,
			Status:      workflow.StepPending,
		})
	}
	return wf, steps
}

// GetWorkflow returns an instance by ID.
func (eng *Engine) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	var out *workflow.Instance
	err := eng.run(ctx, mw.Op{Name: "get_workflow", WorkflowID: workflowID}, func(ctx context.Context) error {
		wf, err := eng.fetch(ctx, "get_workflow", workflowID, id.Nil)
		if err != nil {
			return err
		}
		out = wf
		return nil
	})
	return out, err
}

// ListWorkflows returns the instances of one owner, oldest first. An empty
// ownerID falls back to the owner carried by the context; with neither,
// every owner is listed. A zero Limit applies Config.DefaultListLimit.
func (eng *Engine) ListWorkflows(ctx context.Context, ownerID string, opts workflow.ListOpts) ([]*workflow.Instance, error) {
	if ownerID == "" {
		ownerID = scope.OwnerOr(ctx, "")
	}
	opts.OwnerID = ownerID
	if opts.Limit <= 0 {
		opts.Limit = eng.config.DefaultListLimit
	}

	var out []*workflow.Instance
	err := eng.run(ctx, mw.Op{Name: "list_workflows", OwnerID: ownerID, SkillType: opts.SkillType}, func(ctx context.Context) error {
		list, err := eng.store.ListWorkflows(ctx, opts)
		if err != nil {
			return eng.storeErr("list_workflows", id.Nil, id.Nil, err)
		}
		out = list
		return nil
	})
	return out, err
}

// StartWorkflow moves a not_started instance to in_progress.
func (eng *Engine) StartWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	return eng.lifecycle(ctx, "start_workflow", workflowID, func(wf *workflow.Instance) error {
		if err := transition(wf, workflow.ActionStart); err != nil {
			return err
		}
		now := eng.timestamp()
		wf.StartedAt = &now
		return nil
	}, eng.extensions.EmitWorkflowStarted)
}

// PauseWorkflow moves an in_progress instance to paused. A completion
// already holding the workflow finishes first.
func (eng *Engine) PauseWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	return eng.lifecycle(ctx, "pause_workflow", workflowID, func(wf *workflow.Instance) error {
		return transition(wf, workflow.ActionPause)
	}, eng.extensions.EmitWorkflowPaused)
}

// ResumeWorkflow moves a paused instance back to in_progress with its
// pointer and data unchanged.
func (eng *Engine) ResumeWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	return eng.lifecycle(ctx, "resume_workflow", workflowID, func(wf *workflow.Instance) error {
		return transition(wf, workflow.ActionResume)
	}, eng.extensions.EmitWorkflowResumed)
}

func (eng *Engine) lifecycle(
	ctx context.Context,
	opName string,
	workflowID id.WorkflowID,
	apply func(*workflow.Instance) error,
	emit func(context.Context, *workflow.Instance),
) (*workflow.Instance, error) {
	var out *workflow.Instance
	err := eng.run(ctx, mw.Op{Name: opName, WorkflowID: workflowID}, func(ctx context.Context) error {
		wf, err := eng.mutate(ctx, opName, workflowID, id.Nil, func(_ context.Context, wf *workflow.Instance) (*change, error) {
			if err := apply(wf); err != nil {
				return nil, err
			}
			return &change{workflow: wf}, nil
		})
		if err != nil {
			return err
		}
		emit(ctx, wf)
		out = wf
		return nil
	})
	return out, err
}

// UpdateWorkflowData shallow-merges partial into the instance data. Keys
// in partial overwrite stored keys; nested objects are replaced whole.
func (eng *Engine) UpdateWorkflowData(ctx context.Context, workflowID id.WorkflowID, partial map[string]any) (*workflow.Instance, error) {
	var out *workflow.Instance
	err := eng.run(ctx, mw.Op{Name: "update_workflow_data", WorkflowID: workflowID}, func(ctx context.Context) error {
		wf, err := eng.mutate(ctx, "update_workflow_data", workflowID, id.Nil, func(_ context.Context, wf *workflow.Instance) (*change, error) {
			if err := requireActive(wf); err != nil {
				return nil, err
			}
			wf.Data = wf.Data.Merge(partial)
			return &change{workflow: wf}, nil
		})
		out = wf
		return err
	})
	return out, err
}

// FailWorkflow marks a non-terminal instance failed, records reason, and
// marks the current step failed unless it already finished.
func (eng *Engine) FailWorkflow(ctx context.Context, workflowID id.WorkflowID, reason string) (*workflow.Instance, error) {
	var out *workflow.Instance
	err := eng.run(ctx, mw.Op{Name: "fail_workflow", WorkflowID: workflowID}, func(ctx context.Context) error {
		wf, err := eng.mutate(ctx, "fail_workflow", workflowID, id.Nil, func(ctx context.Context, wf *workflow.Instance) (*change, error) {
			if err := transition(wf, workflow.ActionFail); err != nil {
				return nil, err
			}
			wf.FailureReason = reason

			steps, err := eng.store.ListSteps(ctx, workflowID)
			if err != nil {
				return nil, eng.storeErr("fail_workflow", workflowID, id.Nil, err)
			}
			c := &change{workflow: wf}
			for _, s := range steps {
				if s.StepNumber == wf.CurrentStep && !s.Status.Finished() {
					s.Status = workflow.StepFailed
					s.UpdatedAt = eng.timestamp()
					c.steps = append(c.steps, s)
				}
			}
			return c, nil
		})
		if err != nil {
			return err
		}
		eng.extensions.EmitWorkflowFailed(ctx, wf, reason)
		out = wf
		return nil
	})
	return out, err
}

// DeleteWorkflow removes an instance together with its steps and
// validation records. Terminal instances can be deleted.
func (eng *Engine) DeleteWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	return eng.run(ctx, mw.Op{Name: "delete_workflow", WorkflowID: workflowID}, func(ctx context.Context) error {
		unlock := eng.locks.Lock(workflowID.String())
		defer unlock()

		if _, err := eng.fetch(ctx, "delete_workflow", workflowID, id.Nil); err != nil {
			return err
		}
		if err := eng.store.DeleteWorkflow(ctx, workflowID); err != nil {
			return eng.storeErr("delete_workflow", workflowID, id.Nil, err)
		}
		eng.extensions.EmitWorkflowDeleted(ctx, workflowID)
		return nil
	})
}
