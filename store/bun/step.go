package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// GetStep retrieves a step that belongs to workflowID.
func (s *Store) GetStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Step, error) {
	m := new(stepModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", stepID.String()).
		Where("workflow_id = ?", workflowID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stepwise.ErrStepNotFound
		}
		return nil, fmt.Errorf("stepwise/bun: get step: %w", err)
	}
	st, err := fromStepModel(m)
	if err != nil {
		return nil, fmt.Errorf("stepwise/bun: get step: %w", err)
	}
	return st, nil
}

// ListSteps returns a workflow's steps in step-number order.
func (s *Store) ListSteps(ctx context.Context, workflowID id.WorkflowID) ([]*workflow.Step, error) {
	if err := s.requireWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	var models []stepModel
	err := s.db.NewSelect().Model(&models).
		Where("workflow_id = ?", workflowID.String()).
		Order("step_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("stepwise/bun: list steps: %w", err)
	}

	out := make([]*workflow.Step, 0, len(models))
	for i := range models {
		st, convErr := fromStepModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("stepwise/bun: list steps: %w", convErr)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) requireWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	exists, err := s.db.NewSelect().Model((*workflowModel)(nil)).
		Where("id = ?", workflowID.String()).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("stepwise/bun: check workflow: %w", err)
	}
	if !exists {
		return stepwise.ErrWorkflowNotFound
	}
	return nil
}
