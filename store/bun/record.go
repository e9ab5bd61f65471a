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

// AppendValidationRecords appends records to the audit log.
func (s *Store) AppendValidationRecords(ctx context.Context, records []*workflow.ValidationRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return insertRecords(ctx, tx, records)
	})
	if err != nil {
		if errors.Is(err, stepwise.ErrWorkflowNotFound) {
			return err
		}
		return fmt.Errorf("stepwise/bun: append records: %w", err)
	}
	return nil
}

// ListValidationRecords returns records in insertion order, restricted to
// one step unless stepID is id.Nil.
func (s *Store) ListValidationRecords(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) ([]*workflow.ValidationRecord, error) {
	if err := s.requireWorkflow(ctx, workflowID); err != nil {
		return nil, err
	}

	var models []recordModel
	q := s.db.NewSelect().Model(&models).
		Where("workflow_id = ?", workflowID.String())
	if !stepID.IsNil() {
		q = q.Where("step_id = ?", stepID.String())
	}
	if err := q.Order("seq ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("stepwise/bun: list records: %w", err)
	}

	out := make([]*workflow.ValidationRecord, 0, len(models))
	for i := range models {
		r, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("stepwise/bun: list records: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// insertRecords writes records with one multi-row insert; seq follows the
// VALUES order.
func insertRecords(ctx context.Context, tx bun.Tx, records []*workflow.ValidationRecord) error {
	if len(records) == 0 {
		return nil
	}
	models := make([]recordModel, 0, len(records))
	for _, r := range records {
		models = append(models, toRecordModel(r))
	}
	if _, err := tx.NewInsert().Model(&models).Exec(ctx); err != nil {
		if isForeignKey(err) {
			return stepwise.ErrWorkflowNotFound
		}
		return fmt.Errorf("insert records: %w", err)
	}
	return nil
}
