package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

const stepColumns = `
	id, workflow_id, step_number, phase_number, name, status,
	data, validation, completed_at, created_at, updated_at`

// GetStep retrieves a step that belongs to workflowID.
func (s *Store) GetStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Step, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+stepColumns+` FROM stepwise_steps WHERE id = $1 AND workflow_id = $2`,
		stepID.String(), workflowID.String(),
	)
	st, err := scanStep(row)
	if err != nil {
		if isNoRows(err) {
			return nil, stepwise.ErrStepNotFound
		}
		return nil, fmt.Errorf("stepwise/postgres: get step: %w", err)
	}
	return st, nil
}

// ListSteps returns a workflow's steps in step-number order.
func (s *Store) ListSteps(ctx context.Context, workflowID id.WorkflowID) ([]*workflow.Step, error) {
	if err := s.requireWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+stepColumns+` FROM stepwise_steps WHERE workflow_id = $1 ORDER BY step_number ASC`,
		workflowID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("stepwise/postgres: list steps: %w", err)
	}
	defer rows.Close()

	out := []*workflow.Step{}
	for rows.Next() {
		st, scanErr := scanStep(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("stepwise/postgres: scan step row: %w", scanErr)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stepwise/postgres: iterate step rows: %w", err)
	}
	return out, nil
}

// requireWorkflow returns ErrWorkflowNotFound when the instance is absent.
func (s *Store) requireWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM stepwise_workflows WHERE id = $1)`,
		workflowID.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: check workflow: %w", err)
	}
	if !exists {
		return stepwise.ErrWorkflowNotFound
	}
	return nil
}

func scanStep(row pgx.Row) (*workflow.Step, error) {
	var (
		st         workflow.Step
		status     string
		data       []byte
		validation []byte
	)
	err := row.Scan(
		&st.ID, &st.WorkflowID, &st.StepNumber, &st.PhaseNumber, &st.Name, &status,
		&data, &validation, &st.CompletedAt, &st.CreatedAt, &st.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	st.Status = workflow.StepStatus(status)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &st.Data); err != nil {
			return nil, fmt.Errorf("stepwise/postgres: decode step data: %w", err)
		}
	}
	if len(validation) > 0 {
		var v workflow.Validation
		if err := json.Unmarshal(validation, &v); err != nil {
			return nil, fmt.Errorf("stepwise/postgres: decode step validation: %w", err)
		}
		st.Validation = &v
	}
	return &st, nil
}
