package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// AppendValidationRecords appends records to each workflow's list. Every
// referenced workflow is watched, so a concurrent delete aborts the append.
func (s *Store) AppendValidationRecords(ctx context.Context, records []*workflow.ValidationRecord) error {
	if len(records) == 0 {
		return nil
	}

	grouped := make(map[string][]any)
	var order []string
	for _, r := range records {
		wID := r.WorkflowID.String()
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("stepwise/redis: marshal record: %w", err)
		}
		if _, seen := grouped[wID]; !seen {
			order = append(order, wID)
		}
		grouped[wID] = append(grouped[wID], string(b))
	}

	keys := make([]string, 0, len(order))
	for _, wID := range order {
		keys = append(keys, workflowKey(wID))
	}

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		n, err := tx.Exists(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("exists: %w", err)
		}
		if int(n) != len(keys) {
			return stepwise.ErrWorkflowNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			for _, wID := range order {
				pipe.RPush(ctx, recordsKey(wID), grouped[wID]...)
			}
			return nil
		})
		return err
	}, keys...)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, stepwise.ErrWorkflowNotFound), errors.Is(err, goredis.TxFailedErr):
		return stepwise.ErrWorkflowNotFound
	default:
		return fmt.Errorf("stepwise/redis: append records: %w", err)
	}
}

// ListValidationRecords returns records in append order, restricted to one
// step unless stepID is id.Nil.
func (s *Store) ListValidationRecords(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) ([]*workflow.ValidationRecord, error) {
	wID := workflowID.String()
	if err := s.requireWorkflow(ctx, wID); err != nil {
		return nil, err
	}

	raw, err := s.client.LRange(ctx, recordsKey(wID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("stepwise/redis: list records: %w", err)
	}

	out := make([]*workflow.ValidationRecord, 0, len(raw))
	for _, item := range raw {
		var r workflow.ValidationRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("stepwise/redis: decode record: %w", err)
		}
		if !stepID.IsNil() && r.StepID.String() != stepID.String() {
			continue
		}
		out = append(out, &r)
	}
	return out, nil
}

func encodeRecords(records []*workflow.ValidationRecord) ([]any, error) {
	out := make([]any, 0, len(records))
	for _, r := range records {
		b, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("marshal record: %w", err)
		}
		out = append(out, string(b))
	}
	return out, nil
}
