package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

const workflowColumns = `
	id, owner_id, skill_type, name, status, current_phase, current_step,
	data, metadata, failure_reason, version, definition,
	started_at, completed_at, created_at, updated_at`

// CreateWorkflow inserts an instance and all of its steps in one transaction.
func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Instance, steps []*workflow.Step) error {
	data, err := jsonb(wf.Data, false)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: marshal data: %w", err)
	}
	meta, err := jsonb(wf.Metadata, false)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: marshal metadata: %w", err)
	}
	def, err := json.Marshal(wf.Definition)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: marshal definition: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: begin create workflow: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO stepwise_workflows (`+workflowColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16
		)`,
		wf.ID.String(), wf.OwnerID, wf.SkillType, wf.Name, string(wf.Status),
		wf.CurrentPhase, wf.CurrentStep,
		data, meta, wf.FailureReason, wf.Version, def,
		wf.StartedAt, wf.CompletedAt, wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return stepwise.ErrWorkflowAlreadyExists
		}
		return fmt.Errorf("stepwise/postgres: insert workflow: %w", err)
	}

	batch := &pgx.Batch{}
	for _, st := range steps {
		stepData, mErr := jsonb(st.Data, true)
		if mErr != nil {
			return fmt.Errorf("stepwise/postgres: marshal step data: %w", mErr)
		}
		validation, mErr := jsonb(st.Validation, true)
		if mErr != nil {
			return fmt.Errorf("stepwise/postgres: marshal step validation: %w", mErr)
		}
		batch.Queue(`
			INSERT INTO stepwise_steps (
				id, workflow_id, step_number, phase_number, name, status,
				data, validation, completed_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			st.ID.String(), wf.ID.String(), st.StepNumber, st.PhaseNumber, st.Name,
			string(st.Status), stepData, validation, st.CompletedAt,
			st.CreatedAt, st.UpdatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isDuplicateKey(err) {
			return stepwise.ErrWorkflowAlreadyExists
		}
		return fmt.Errorf("stepwise/postgres: insert steps: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stepwise/postgres: commit create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves an instance by ID.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM stepwise_workflows WHERE id = $1`,
		workflowID.String(),
	)
	wf, err := scanWorkflow(row)
	if err != nil {
		if isNoRows(err) {
			return nil, stepwise.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("stepwise/postgres: get workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns instances matching opts, oldest first.
func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Instance, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if opts.OwnerID != "" {
		add("owner_id = $%d", opts.OwnerID)
	}
	if opts.SkillType != "" {
		add("skill_type = $%d", opts.SkillType)
	}
	if opts.Status != "" {
		add("status = $%d", string(opts.Status))
	}

	query := `SELECT ` + workflowColumns + ` FROM stepwise_workflows`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stepwise/postgres: list workflows: %w", err)
	}
	defer rows.Close()

	var out []*workflow.Instance
	for rows.Next() {
		wf, scanErr := scanWorkflow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("stepwise/postgres: scan workflow row: %w", scanErr)
		}
		out = append(out, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stepwise/postgres: iterate workflow rows: %w", err)
	}
	return out, nil
}

// Commit applies an engine write in one transaction. The instance row is
// updated only while its version still equals c.ExpectedVersion.
func (s *Store) Commit(ctx context.Context, c *workflow.Commit) error {
	wf := c.Workflow
	data, err := jsonb(wf.Data, false)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: marshal data: %w", err)
	}
	meta, err := jsonb(wf.Metadata, false)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: marshal metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE stepwise_workflows SET
			name = $3, status = $4, current_phase = $5, current_step = $6,
			data = $7, metadata = $8, failure_reason = $9, version = $10,
			started_at = $11, completed_at = $12, updated_at = $13
		WHERE id = $1 AND version = $2`,
		wf.ID.String(), c.ExpectedVersion,
		wf.Name, string(wf.Status), wf.CurrentPhase, wf.CurrentStep,
		data, meta, wf.FailureReason, wf.Version,
		wf.StartedAt, wf.CompletedAt, wf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: update workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrConflict(ctx, tx, wf.ID)
	}

	for _, st := range c.Steps {
		stepData, mErr := jsonb(st.Data, true)
		if mErr != nil {
			return fmt.Errorf("stepwise/postgres: marshal step data: %w", mErr)
		}
		validation, mErr := jsonb(st.Validation, true)
		if mErr != nil {
			return fmt.Errorf("stepwise/postgres: marshal step validation: %w", mErr)
		}
		stepTag, execErr := tx.Exec(ctx, `
			UPDATE stepwise_steps SET
				status = $3, data = $4, validation = $5,
				completed_at = $6, updated_at = $7
			WHERE id = $1 AND workflow_id = $2`,
			st.ID.String(), wf.ID.String(),
			string(st.Status), stepData, validation, st.CompletedAt, st.UpdatedAt,
		)
		if execErr != nil {
			return fmt.Errorf("stepwise/postgres: update step: %w", execErr)
		}
		if stepTag.RowsAffected() == 0 {
			return stepwise.ErrStepNotFound
		}
	}

	if err := insertRecords(ctx, tx, c.Records); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stepwise/postgres: commit: %w", err)
	}
	return nil
}

// missOrConflict tells a missing instance apart from a stale version after
// a guarded update matched no row.
func (s *Store) missOrConflict(ctx context.Context, tx pgx.Tx, workflowID id.WorkflowID) error {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM stepwise_workflows WHERE id = $1)`,
		workflowID.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: check workflow: %w", err)
	}
	if !exists {
		return stepwise.ErrWorkflowNotFound
	}
	return stepwise.ErrVersionConflict
}

// DeleteWorkflow removes an instance together with its steps and records.
func (s *Store) DeleteWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: begin delete workflow: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	key := workflowID.String()
	if _, err := tx.Exec(ctx, `DELETE FROM stepwise_validation_records WHERE workflow_id = $1`, key); err != nil {
		return fmt.Errorf("stepwise/postgres: delete records: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM stepwise_steps WHERE workflow_id = $1`, key); err != nil {
		return fmt.Errorf("stepwise/postgres: delete steps: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM stepwise_workflows WHERE id = $1`, key)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: delete workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stepwise.ErrWorkflowNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stepwise/postgres: commit delete workflow: %w", err)
	}
	return nil
}

func scanWorkflow(row pgx.Row) (*workflow.Instance, error) {
	var (
		wf        workflow.Instance
		status    string
		data      []byte
		meta      []byte
		defJSON   []byte
		wfID      id.WorkflowID
	)
	err := row.Scan(
		&wfID, &wf.OwnerID, &wf.SkillType, &wf.Name, &status,
		&wf.CurrentPhase, &wf.CurrentStep,
		&data, &meta, &wf.FailureReason, &wf.Version, &defJSON,
		&wf.StartedAt, &wf.CompletedAt, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	wf.ID = wfID
	wf.Status = workflow.Status(status)
	if err := json.Unmarshal(data, &wf.Data); err != nil {
		return nil, fmt.Errorf("stepwise/postgres: decode data: %w", err)
	}
	if len(meta) > 0 && string(meta) != "{}" {
		if err := json.Unmarshal(meta, &wf.Metadata); err != nil {
			return nil, fmt.Errorf("stepwise/postgres: decode metadata: %w", err)
		}
	}
	var def definition.Workflow
	if err := json.Unmarshal(defJSON, &def); err != nil {
		return nil, fmt.Errorf("stepwise/postgres: decode definition: %w", err)
	}
	def.Normalize()
	wf.Definition = &def
	if wf.Data == nil {
		wf.Data = workflow.Values{}
	}
	return &wf, nil
}
