package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// GetStep retrieves a step that belongs to workflowID.
func (s *Store) GetStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Step, error) {
	vals, err := s.client.HGetAll(ctx, stepKey(stepID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("stepwise/redis: get step: %w", err)
	}
	if len(vals) == 0 || vals["workflow_id"] != workflowID.String() {
		return nil, stepwise.ErrStepNotFound
	}
	st, err := mapToStep(vals)
	if err != nil {
		return nil, fmt.Errorf("stepwise/redis: get step: %w", err)
	}
	return st, nil
}

// ListSteps returns a workflow's steps in step-number order.
func (s *Store) ListSteps(ctx context.Context, workflowID id.WorkflowID) ([]*workflow.Step, error) {
	wID := workflowID.String()
	if err := s.requireWorkflow(ctx, wID); err != nil {
		return nil, err
	}

	ids, err := s.client.ZRange(ctx, stepIndexKey(wID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("stepwise/redis: list steps zrange: %w", err)
	}

	out := make([]*workflow.Step, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, sid := range ids {
		cmds[i] = pipe.HGetAll(ctx, stepKey(sid))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("stepwise/redis: list steps: %w", err)
	}

	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		st, convErr := mapToStep(vals)
		if convErr != nil {
			return nil, fmt.Errorf("stepwise/redis: list steps: %w", convErr)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Store) requireWorkflow(ctx context.Context, wID string) error {
	exists, err := s.client.Exists(ctx, workflowKey(wID)).Result()
	if err != nil {
		return fmt.Errorf("stepwise/redis: check workflow: %w", err)
	}
	if exists == 0 {
		return stepwise.ErrWorkflowNotFound
	}
	return nil
}
