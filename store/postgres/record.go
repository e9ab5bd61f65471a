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

// AppendValidationRecords appends records to the audit log.
func (s *Store) AppendValidationRecords(ctx context.Context, records []*workflow.ValidationRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stepwise/postgres: begin append records: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := insertRecords(ctx, tx, records); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stepwise/postgres: commit append records: %w", err)
	}
	return nil
}

// ListValidationRecords returns records in insertion order, restricted to
// one step unless stepID is id.Nil.
func (s *Store) ListValidationRecords(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) ([]*workflow.ValidationRecord, error) {
	if err := s.requireWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, workflow_id, step_id, validation_type, result, message, details, created_at
		FROM stepwise_validation_records
		WHERE workflow_id = $1`
	args := []any{workflowID.String()}
	if !stepID.IsNil() {
		query += ` AND step_id = $2`
		args = append(args, stepID.String())
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("stepwise/postgres: list records: %w", err)
	}
	defer rows.Close()

	var out []*workflow.ValidationRecord
	for rows.Next() {
		var (
			r       workflow.ValidationRecord
			result  string
			details []byte
		)
		if err := rows.Scan(
			&r.ID, &r.WorkflowID, &r.StepID, &r.Type, &result, &r.Message, &details, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("stepwise/postgres: scan record row: %w", err)
		}
		r.Result = workflow.RecordResult(result)
		if err := json.Unmarshal(details, &r.Details); err != nil {
			return nil, fmt.Errorf("stepwise/postgres: decode record details: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("stepwise/postgres: iterate record rows: %w", err)
	}
	return out, nil
}

// insertRecords queues one insert per record so seq follows slice order.
func insertRecords(ctx context.Context, tx pgx.Tx, records []*workflow.ValidationRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		details, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("stepwise/postgres: marshal record details: %w", err)
		}
		batch.Queue(`
			INSERT INTO stepwise_validation_records (
				id, workflow_id, step_id, validation_type, result, message, details, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			r.ID.String(), r.WorkflowID.String(), r.StepID.String(),
			r.Type, string(r.Result), r.Message, details, r.CreatedAt,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isForeignKey(err) {
			return stepwise.ErrWorkflowNotFound
		}
		return fmt.Errorf("stepwise/postgres: insert records: %w", err)
	}
	return nil
}
