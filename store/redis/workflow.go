package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// CreateWorkflow persists a new instance and its steps atomically.
func (s *Store) CreateWorkflow(ctx context.Context, wf *workflow.Instance, steps []*workflow.Step) error {
	wID := wf.ID.String()
	key := workflowKey(wID)

	wfMap, err := workflowToMap(wf)
	if err != nil {
		return fmt.Errorf("stepwise/redis: create workflow: %w", err)
	}
	stepMaps := make([]map[string]any, 0, len(steps))
	for _, st := range steps {
		m, convErr := stepToMap(st)
		if convErr != nil {
			return fmt.Errorf("stepwise/redis: create workflow: %w", convErr)
		}
		m["workflow_id"] = wID
		stepMaps = append(stepMaps, m)
	}

	err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("exists: %w", err)
		}
		if exists > 0 {
			return stepwise.ErrWorkflowAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.HSet(ctx, key, wfMap)
			pipe.ZAdd(ctx, workflowIndexKey, goredis.Z{
				Score:  float64(wf.CreatedAt.UnixMilli()),
				Member: wID,
			})
			for i, st := range steps {
				pipe.HSet(ctx, stepKey(st.ID.String()), stepMaps[i])
				pipe.ZAdd(ctx, stepIndexKey(wID), goredis.Z{
					Score:  float64(st.StepNumber),
					Member: st.ID.String(),
				})
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, stepwise.ErrWorkflowAlreadyExists), errors.Is(err, goredis.TxFailedErr):
		return stepwise.ErrWorkflowAlreadyExists
	default:
		return fmt.Errorf("stepwise/redis: create workflow: %w", err)
	}
}

// GetWorkflow retrieves an instance by ID.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	vals, err := s.client.HGetAll(ctx, workflowKey(workflowID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("stepwise/redis: get workflow: %w", err)
	}
	if len(vals) == 0 {
		return nil, stepwise.ErrWorkflowNotFound
	}
	wf, err := mapToWorkflow(vals)
	if err != nil {
		return nil, fmt.Errorf("stepwise/redis: get workflow: %w", err)
	}
	return wf, nil
}

// ListWorkflows returns instances matching opts, oldest first.
func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Instance, error) {
	ids, err := s.client.ZRange(ctx, workflowIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("stepwise/redis: list workflows zrange: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, wID := range ids {
		cmds[i] = pipe.HGetAll(ctx, workflowKey(wID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("stepwise/redis: list workflows: %w", err)
	}

	var out []*workflow.Instance
	for _, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) == 0 {
			continue
		}
		if opts.OwnerID != "" && vals["owner_id"] != opts.OwnerID {
			continue
		}
		if opts.SkillType != "" && vals["skill_type"] != opts.SkillType {
			continue
		}
		if opts.Status != "" && vals["status"] != string(opts.Status) {
			continue
		}
		wf, convErr := mapToWorkflow(vals)
		if convErr != nil {
			s.logger.Warn("stepwise/redis: skipping undecodable workflow", "id", vals["id"], "error", convErr)
			continue
		}
		out = append(out, wf)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Commit applies an engine write inside WATCH/MULTI. The transaction is
// aborted when the stored version differs from c.ExpectedVersion or the
// instance changes between the check and EXEC.
func (s *Store) Commit(ctx context.Context, c *workflow.Commit) error {
	wID := c.Workflow.ID.String()
	key := workflowKey(wID)

	wfMap, err := workflowToMap(c.Workflow)
	if err != nil {
		return fmt.Errorf("stepwise/redis: commit: %w", err)
	}
	stepMaps := make([]map[string]any, 0, len(c.Steps))
	for _, st := range c.Steps {
		m, convErr := stepToMap(st)
		if convErr != nil {
			return fmt.Errorf("stepwise/redis: commit: %w", convErr)
		}
		stepMaps = append(stepMaps, m)
	}
	records, err := encodeRecords(c.Records)
	if err != nil {
		return fmt.Errorf("stepwise/redis: commit: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.HGet(ctx, key, "version").Result()
		if errors.Is(err, goredis.Nil) {
			return stepwise.ErrWorkflowNotFound
		}
		if err != nil {
			return fmt.Errorf("read version: %w", err)
		}
		stored, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("parse version: %w", err)
		}
		if stored != c.ExpectedVersion {
			return stepwise.ErrVersionConflict
		}

		for _, st := range c.Steps {
			owner, err := tx.HGet(ctx, stepKey(st.ID.String()), "workflow_id").Result()
			if errors.Is(err, goredis.Nil) || (err == nil && owner != wID) {
				return stepwise.ErrStepNotFound
			}
			if err != nil {
				return fmt.Errorf("read step: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			// Rewrite whole hashes so cleared optional fields do not linger.
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, wfMap)
			for i, st := range c.Steps {
				sk := stepKey(st.ID.String())
				pipe.Del(ctx, sk)
				pipe.HSet(ctx, sk, stepMaps[i])
			}
			if len(records) > 0 {
				pipe.RPush(ctx, recordsKey(wID), records...)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.TxFailedErr):
		return stepwise.ErrVersionConflict
	case errors.Is(err, stepwise.ErrWorkflowNotFound),
		errors.Is(err, stepwise.ErrVersionConflict),
		errors.Is(err, stepwise.ErrStepNotFound):
		return err
	default:
		return fmt.Errorf("stepwise/redis: commit: %w", err)
	}
}

// DeleteWorkflow removes an instance with its steps and records.
func (s *Store) DeleteWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	wID := workflowID.String()
	key := workflowKey(wID)

	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("exists: %w", err)
		}
		if exists == 0 {
			return stepwise.ErrWorkflowNotFound
		}
		stepIDs, err := tx.ZRange(ctx, stepIndexKey(wID), 0, -1).Result()
		if err != nil {
			return fmt.Errorf("step index: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, recordsKey(wID))
			for _, sid := range stepIDs {
				pipe.Del(ctx, stepKey(sid))
			}
			pipe.Del(ctx, stepIndexKey(wID))
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, workflowIndexKey, wID)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, stepwise.ErrWorkflowNotFound):
		return err
	default:
		return fmt.Errorf("stepwise/redis: delete workflow: %w", err)
	}
}
