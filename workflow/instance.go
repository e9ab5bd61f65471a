package workflow

import (
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/id"
)

// Instance is one execution of a skill's workflow definition.
type Instance struct {
	stepwise.Entity

	ID        id.WorkflowID `json:"id"`
	OwnerID   string        `json:"owner_id"`
	SkillType string        `json:"skill_type"`
	Name      string        `json:"name"`
	Status    Status        `json:"status"`

	// CurrentPhase and CurrentStep point at the step the client works on.
	// CurrentStep always belongs to CurrentPhase and never decreases.
	CurrentPhase int `json:"current_phase"`
	CurrentStep  int `json:"current_step"`

	Data     Values `json:"data"`
	Metadata Values `json:"metadata,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	// Version is incremented by every successful write.
	Version int64 `json:"version"`

	// Definition is the definition the instance was created from. It is
	// read-only and shared between copies.
	Definition *definition.Workflow `json:"definition"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a copy whose maps can be modified independently.
func (w *Instance) Clone() *Instance {
	cp := *w
	cp.Data = w.Data.Clone()
	cp.Metadata = w.Metadata.Clone()
	cp.StartedAt = cloneTime(w.StartedAt)
	cp.CompletedAt = cloneTime(w.CompletedAt)
	return &cp
}

// Step is the runtime record of one step definition within an instance.
type Step struct {
	stepwise.Entity

	ID          id.StepID     `json:"id"`
	WorkflowID  id.WorkflowID `json:"workflow_id"`
	StepNumber  int           `json:"step_number"`
	PhaseNumber int           `json:"phase_number"`
	Name        string        `json:"step_name"`
	Status      StepStatus    `json:"status"`
	Data        Values        `json:"data,omitempty"`

	// Validation is the outcome of the completion attempt that passed.
	Validation *Validation `json:"validation,omitempty"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns an independent copy.
func (s *Step) Clone() *Step {
	cp := *s
	cp.Data = s.Data.Clone()
	cp.CompletedAt = cloneTime(s.CompletedAt)
	if s.Validation != nil {
		v := *s.Validation
		cp.Validation = &v
	}
	return &cp
}

// Validation summarizes one validator run.
type Validation struct {
	Valid       bool             `json:"valid"`
	Errors      []stepwise.Issue `json:"errors"`
	Warnings    []stepwise.Issue `json:"warnings"`
	ValidatedAt time.Time        `json:"validated_at"`
}

// RecordResult is the outcome stored on a validation record.
type RecordResult string

const (
	ResultPass    RecordResult = "pass"
	ResultFail    RecordResult = "fail"
	ResultWarning RecordResult = "warning"
)

// ValidationRecord is one append-only audit entry for a single rule
// evaluation.
type ValidationRecord struct {
	ID         id.RecordID   `json:"id"`
	WorkflowID id.WorkflowID `json:"workflow_id"`
	StepID     id.StepID     `json:"step_id"`

	// Type is the rule type, "best_practice", or "no_rules".
	Type    string        `json:"validation_type"`
	Result  RecordResult  `json:"result"`
	Message string        `json:"message"`
	Details RecordDetails `json:"details"`

	CreatedAt time.Time `json:"created_at"`
}

// RecordDetails carries the rule context of a validation record.
type RecordDetails struct {
	Field    string `json:"field,omitempty"`
	Rule     string `json:"rule,omitempty"`
	Observed any    `json:"observed,omitempty"`

	// DryRun is set on records appended by a standalone validation.
	DryRun bool `json:"dry_run,omitempty"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
