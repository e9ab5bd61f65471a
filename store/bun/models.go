package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

// ── Workflow model ────────────────────────────────────────────────

type workflowModel struct {
	bun.BaseModel `bun:"table:stepwise_workflows"`

	ID            string               `bun:"id,pk"`
	OwnerID       string               `bun:"owner_id,notnull"`
	SkillType     string               `bun:"skill_type,notnull"`
	Name          string               `bun:"name,notnull"`
	Status        string               `bun:"status,notnull"`
	CurrentPhase  int                  `bun:"current_phase,notnull"`
	CurrentStep   int                  `bun:"current_step,notnull"`
	Data          map[string]any       `bun:"data,type:jsonb,notnull"`
	Metadata      map[string]any       `bun:"metadata,type:jsonb,notnull"`
	FailureReason string               `bun:"failure_reason,notnull"`
	Version       int64                `bun:"version,notnull"`
	Definition    *definition.Workflow `bun:"definition,type:jsonb,notnull"`
	StartedAt     *time.Time           `bun:"started_at"`
	CompletedAt   *time.Time           `bun:"completed_at"`
	CreatedAt     time.Time            `bun:"created_at,notnull"`
	UpdatedAt     time.Time            `bun:"updated_at,notnull"`
}

func toWorkflowModel(wf *workflow.Instance) *workflowModel {
	return &workflowModel{
		ID:            wf.ID.String(),
		OwnerID:       wf.OwnerID,
		SkillType:     wf.SkillType,
		Name:          wf.Name,
		Status:        string(wf.Status),
		CurrentPhase:  wf.CurrentPhase,
		CurrentStep:   wf.CurrentStep,
		Data:          orEmpty(wf.Data),
		Metadata:      orEmpty(wf.Metadata),
		FailureReason: wf.FailureReason,
		Version:       wf.Version,
		Definition:    wf.Definition,
		StartedAt:     wf.StartedAt,
		CompletedAt:   wf.CompletedAt,
		CreatedAt:     wf.CreatedAt,
		UpdatedAt:     wf.UpdatedAt,
	}
}

func fromWorkflowModel(m *workflowModel) (*workflow.Instance, error) {
	wfID, err := id.ParseWorkflowID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse workflow id %q: %w", m.ID, err)
	}
	if m.Definition == nil {
		return nil, fmt.Errorf("workflow %s has no definition", m.ID)
	}
	m.Definition.Normalize()

	wf := &workflow.Instance{
		Entity:        stepwise.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:            wfID,
		OwnerID:       m.OwnerID,
		SkillType:     m.SkillType,
		Name:          m.Name,
		Status:        workflow.Status(m.Status),
		CurrentPhase:  m.CurrentPhase,
		CurrentStep:   m.CurrentStep,
		Data:          workflow.Values(m.Data),
		FailureReason: m.FailureReason,
		Version:       m.Version,
		Definition:    m.Definition,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
	}
	if wf.Data == nil {
		wf.Data = workflow.Values{}
	}
	if len(m.Metadata) > 0 {
		wf.Metadata = workflow.Values(m.Metadata)
	}
	return wf, nil
}

// ── Step model ────────────────────────────────────────────────────

type stepModel struct {
	bun.BaseModel `bun:"table:stepwise_steps"`

	ID          string               `bun:"id,pk"`
	WorkflowID  string               `bun:"workflow_id,notnull"`
	StepNumber  int                  `bun:"step_number,notnull"`
	PhaseNumber int                  `bun:"phase_number,notnull"`
	Name        string               `bun:"name,notnull"`
	Status      string               `bun:"status,notnull"`
	Data        map[string]any       `bun:"data,type:jsonb,nullzero"`
	Validation  *workflow.Validation `bun:"validation,type:jsonb,nullzero"`
	CompletedAt *time.Time           `bun:"completed_at"`
	CreatedAt   time.Time            `bun:"created_at,notnull"`
	UpdatedAt   time.Time            `bun:"updated_at,notnull"`
}

func toStepModel(s *workflow.Step) *stepModel {
	return &stepModel{
		ID:          s.ID.String(),
		WorkflowID:  s.WorkflowID.String(),
		StepNumber:  s.StepNumber,
		PhaseNumber: s.PhaseNumber,
		Name:        s.Name,
		Status:      string(s.Status),
		Data:        s.Data,
		Validation:  s.Validation,
		CompletedAt: s.CompletedAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromStepModel(m *stepModel) (*workflow.Step, error) {
	stepID, err := id.ParseStepID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse step id %q: %w", m.ID, err)
	}
	wfID, err := id.ParseWorkflowID(m.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("parse workflow id %q: %w", m.WorkflowID, err)
	}
	return &workflow.Step{
		Entity:      stepwise.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:          stepID,
		WorkflowID:  wfID,
		StepNumber:  m.StepNumber,
		PhaseNumber: m.PhaseNumber,
		Name:        m.Name,
		Status:      workflow.StepStatus(m.Status),
		Data:        workflow.Values(m.Data),
		Validation:  m.Validation,
		CompletedAt: m.CompletedAt,
	}, nil
}

// ── Validation record model ───────────────────────────────────────

type recordModel struct {
	bun.BaseModel `bun:"table:stepwise_validation_records"`

	ID         string                 `bun:"id,pk"`
	WorkflowID string                 `bun:"workflow_id,notnull"`
	StepID     string                 `bun:"step_id,notnull"`
	Type       string                 `bun:"validation_type,notnull"`
	Result     string                 `bun:"result,notnull"`
	Message    string                 `bun:"message,notnull"`
	Details    workflow.RecordDetails `bun:"details,type:jsonb,notnull"`
	CreatedAt  time.Time              `bun:"created_at,notnull"`
}

func toRecordModel(r *workflow.ValidationRecord) recordModel {
	return recordModel{
		ID:         r.ID.String(),
		WorkflowID: r.WorkflowID.String(),
		StepID:     r.StepID.String(),
		Type:       r.Type,
		Result:     string(r.Result),
		Message:    r.Message,
		Details:    r.Details,
		CreatedAt:  r.CreatedAt,
	}
}

func fromRecordModel(m *recordModel) (*workflow.ValidationRecord, error) {
	recID, err := id.ParseRecordID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse record id %q: %w", m.ID, err)
	}
	wfID, err := id.ParseWorkflowID(m.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("parse workflow id %q: %w", m.WorkflowID, err)
	}
	stepID, err := id.ParseStepID(m.StepID)
	if err != nil {
		return nil, fmt.Errorf("parse step id %q: %w", m.StepID, err)
	}
	return &workflow.ValidationRecord{
		ID:         recID,
		WorkflowID: wfID,
		StepID:     stepID,
		Type:       m.Type,
		Result:     workflow.RecordResult(m.Result),
		Message:    m.Message,
		Details:    m.Details,
		CreatedAt:  m.CreatedAt,
	}, nil
}

func orEmpty(v workflow.Values) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
