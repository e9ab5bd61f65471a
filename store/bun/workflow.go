package bunstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// CreateWorkflow inserts an instance and all of its steps in one transaction.
func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Instance, steps []*workflow.Step) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(toWorkflowModel(wf)).Exec(ctx); err != nil {
			return err
		}
		if len(steps) == 0 {
			return nil
		}
		models := make([]*stepModel, 0, len(steps))
		for _, st := range steps {
			m := toStepModel(st)
			m.WorkflowID = wf.ID.String()
			models = append(models, m)
		}
		_, err := tx.NewInsert().Model(&models).Exec(ctx)
		return err
	})
	if err != nil {
		if isDuplicateKey(err) {
			return stepwise.ErrWorkflowAlreadyExists
		}
		return fmt.Errorf("stepwise/bun: create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves an instance by ID.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	m := new(workflowModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", workflowID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, stepwise.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("stepwise/bun: get workflow: %w", err)
	}
	wf, err := fromWorkflowModel(m)
	if err != nil {
		return nil, fmt.Errorf("stepwise/bun: get workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns instances matching opts, oldest first.
func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Instance, error) {
	var models []workflowModel
	q := s.db.NewSelect().Model(&models)

	if opts.OwnerID != "" {
		q = q.Where("owner_id = ?", opts.OwnerID)
	}
	if opts.SkillType != "" {
		q = q.Where("skill_type = ?", opts.SkillType)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	q = q.Order("created_at ASC", "id ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("stepwise/bun: list workflows: %w", err)
	}

	out := make([]*workflow.Instance, 0, len(models))
	for i := range models {
		wf, err := fromWorkflowModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("stepwise/bun: list workflows: %w", err)
		}
		out = append(out, wf)
	}
	return out, nil
}

// Commit applies an engine write in one transaction. The instance row is
// updated only while its version still equals c.ExpectedVersion.
func (s *Store) Commit(ctx context.Context, c *workflow.Commit) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		m := toWorkflowModel(c.Workflow)
		res, err := tx.NewUpdate().Model(m).
			Column("name", "status", "current_phase", "current_step",
				"data", "metadata", "failure_reason", "version",
				"started_at", "completed_at", "updated_at").
			Where("id = ?", m.ID).
			Where("version = ?", c.ExpectedVersion).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update workflow: %w", err)
		}
		rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
		if rows == 0 {
			exists, existsErr := tx.NewSelect().Model((*workflowModel)(nil)).
				Where("id = ?", m.ID).
				Exists(ctx)
			if existsErr != nil {
				return fmt.Errorf("check workflow: %w", existsErr)
			}
			if !exists {
				return stepwise.ErrWorkflowNotFound
			}
			return stepwise.ErrVersionConflict
		}

		for _, st := range c.Steps {
			sm := toStepModel(st)
			res, err := tx.NewUpdate().Model(sm).
				Column("status", "data", "validation", "completed_at", "updated_at").
				Where("id = ?", sm.ID).
				Where("workflow_id = ?", m.ID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("update step: %w", err)
			}
			if rows, _ := res.RowsAffected(); rows == 0 { //nolint:errcheck // driver always returns nil
				return stepwise.ErrStepNotFound
			}
		}

		return insertRecords(ctx, tx, c.Records)
	})
	if err != nil {
		if isSentinel(err) {
			return err
		}
		return fmt.Errorf("stepwise/bun: commit: %w", err)
	}
	return nil
}

// DeleteWorkflow removes an instance together with its steps and records.
func (s *Store) DeleteWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	key := workflowID.String()
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*recordModel)(nil)).Where("workflow_id = ?", key).Exec(ctx); err != nil {
			return fmt.Errorf("delete records: %w", err)
		}
		if _, err := tx.NewDelete().Model((*stepModel)(nil)).Where("workflow_id = ?", key).Exec(ctx); err != nil {
			return fmt.Errorf("delete steps: %w", err)
		}
		res, err := tx.NewDelete().Model((*workflowModel)(nil)).Where("id = ?", key).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete workflow: %w", err)
		}
		if rows, _ := res.RowsAffected(); rows == 0 { //nolint:errcheck // driver always returns nil
			return stepwise.ErrWorkflowNotFound
		}
		return nil
	})
	if err != nil {
		if isSentinel(err) {
			return err
		}
		return fmt.Errorf("stepwise/bun: delete workflow: %w", err)
	}
	return nil
}

// isSentinel reports whether err is one of the store contract errors that
// must reach the caller unwrapped.
func isSentinel(err error) bool {
	return errors.Is(err, stepwise.ErrWorkflowNotFound) ||
		errors.Is(err, stepwise.ErrStepNotFound) ||
		errors.Is(err, stepwise.ErrVersionConflict)
}
