package redis

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

func workflowToMap(wf *workflow.Instance) (map[string]any, error) {
	data, err := json.Marshal(wf.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal data: %w", err)
	}
	meta, err := json.Marshal(wf.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	def, err := json.Marshal(wf.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal definition: %w", err)
	}

	m := map[string]any{
		"id":             wf.ID.String(),
		"owner_id":       wf.OwnerID,
		"skill_type":     wf.SkillType,
		"name":           wf.Name,
		"status":         string(wf.Status),
		"current_phase":  wf.CurrentPhase,
		"current_step":   wf.CurrentStep,
		"data":           string(data),
		"metadata":       string(meta),
		"failure_reason": wf.FailureReason,
		"version":        wf.Version,
		"definition":     string(def),
		"created_at":     wf.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":     wf.UpdatedAt.Format(time.RFC3339Nano),
	}
	if wf.StartedAt != nil {
		m["started_at"] = wf.StartedAt.Format(time.RFC3339Nano)
	}
	if wf.CompletedAt != nil {
		m["completed_at"] = wf.CompletedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func mapToWorkflow(m map[string]string) (*workflow.Instance, error) {
	wfID, err := id.ParseWorkflowID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("parse workflow id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])
	phase, _ := strconv.Atoi(m["current_phase"])
	step, _ := strconv.Atoi(m["current_step"])
	version, err := strconv.ParseInt(m["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse version: %w", err)
	}

	wf := &workflow.Instance{
		Entity:        stepwise.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:            wfID,
		OwnerID:       m["owner_id"],
		SkillType:     m["skill_type"],
		Name:          m["name"],
		Status:        workflow.Status(m["status"]),
		CurrentPhase:  phase,
		CurrentStep:   step,
		FailureReason: m["failure_reason"],
		Version:       version,
		StartedAt:     parseTime(m["started_at"]),
		CompletedAt:   parseTime(m["completed_at"]),
	}

	if err := json.Unmarshal([]byte(m["data"]), &wf.Data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	if wf.Data == nil {
		wf.Data = workflow.Values{}
	}
	if v := m["metadata"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &wf.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	var def definition.Workflow
	if err := json.Unmarshal([]byte(m["definition"]), &def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	def.Normalize()
	wf.Definition = &def
	return wf, nil
}

func stepToMap(s *workflow.Step) (map[string]any, error) {
	m := map[string]any{
		"id":           s.ID.String(),
		"workflow_id":  s.WorkflowID.String(),
		"step_number":  s.StepNumber,
		"phase_number": s.PhaseNumber,
		"name":         s.Name,
		"status":       string(s.Status),
		"created_at":   s.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   s.UpdatedAt.Format(time.RFC3339Nano),
	}
	if s.Data != nil {
		data, err := json.Marshal(s.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal step data: %w", err)
		}
		m["data"] = string(data)
	}
	if s.Validation != nil {
		v, err := json.Marshal(s.Validation)
		if err != nil {
			return nil, fmt.Errorf("marshal step validation: %w", err)
		}
		m["validation"] = string(v)
	}
	if s.CompletedAt != nil {
		m["completed_at"] = s.CompletedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func mapToStep(m map[string]string) (*workflow.Step, error) {
	stepID, err := id.ParseStepID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("parse step id: %w", err)
	}
	wfID, err := id.ParseWorkflowID(m["workflow_id"])
	if err != nil {
		return nil, fmt.Errorf("parse workflow id: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"])
	number, _ := strconv.Atoi(m["step_number"])
	phase, _ := strconv.Atoi(m["phase_number"])

	s := &workflow.Step{
		Entity:      stepwise.Entity{CreatedAt: createdAt, UpdatedAt: updatedAt},
		ID:          stepID,
		WorkflowID:  wfID,
		StepNumber:  number,
		PhaseNumber: phase,
		Name:        m["name"],
		Status:      workflow.StepStatus(m["status"]),
		CompletedAt: parseTime(m["completed_at"]),
	}
	if v := m["data"]; v != "" {
		if err := json.Unmarshal([]byte(v), &s.Data); err != nil {
			return nil, fmt.Errorf("decode step data: %w", err)
		}
	}
	if v := m["validation"]; v != "" {
		var val workflow.Validation
		if err := json.Unmarshal([]byte(v), &val); err != nil {
			return nil, fmt.Errorf("decode step validation: %w", err)
		}
		s.Validation = &val
	}
	return s, nil
}

func parseTime(v string) *time.Time {
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil
	}
	return &t
}
