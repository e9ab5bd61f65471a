package stepwise

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/stepwise/id"
)

var (
	// Store errors.
	ErrNoStore         = errors.New("stepwise: no store configured")
	ErrStoreClosed     = errors.New("stepwise: store closed")
	ErrMigrationFailed = errors.New("stepwise: migration failed")

	// Not found errors.
	ErrWorkflowNotFound = errors.New("stepwise: workflow not found")
	ErrStepNotFound     = errors.New("stepwise: step not found")
	ErrSkillNotFound    = errors.New("stepwise: skill type not registered")

	// Conflict errors.
	ErrWorkflowAlreadyExists = errors.New("stepwise: workflow already exists")
	ErrVersionConflict      = errors.New("stepwise: concurrent modification")

	// Definition and dispatch errors.
	ErrDefinitionInvalid = errors.New("stepwise: invalid workflow definition")
	ErrUnknownStep       = errors.New("stepwise: no guidance registered for step")

	// State errors.
	ErrInvalidTransition = errors.New("stepwise: invalid state transition")
	ErrTerminalState     = errors.New("stepwise: workflow is in a terminal state")
	ErrOutOfOrderStep    = errors.New("stepwise: step is not the current step")
	ErrStepValidation    = errors.New("stepwise: step validation failed")
	ErrStepNotOptional   = errors.New("stepwise: step is not optional")

	// Infrastructure errors.
	ErrEngineUnavailable = errors.New("stepwise: engine unavailable")
)

// Issue is a single field-level validation finding. Errors and warnings
// share the shape so a UI can bind either to a specific input.
type Issue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// DefinitionInvalidError reports every problem found in a workflow
// definition. It is returned before anything is persisted.
type DefinitionInvalidError struct {
	SkillType string
	Problems  []string
}

func (e *DefinitionInvalidError) Error() string {
	return fmt.Sprintf("stepwise: invalid definition %q: %s", e.SkillType, strings.Join(e.Problems, "; "))
}

// Is matches ErrDefinitionInvalid.
func (e *DefinitionInvalidError) Is(target error) bool { return target == ErrDefinitionInvalid }

// NotFoundError reports an unknown workflow, step, or skill.
type NotFoundError struct {
	Kind string // "workflow", "step" or "skill"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("stepwise: %s %q not found", e.Kind, e.ID)
}

// Is matches the not-found sentinel for the error's Kind.
func (e *NotFoundError) Is(target error) bool {
	switch e.Kind {
	case "workflow":
		return target == ErrWorkflowNotFound
	case "step":
		return target == ErrStepNotFound
	case "skill":
		return target == ErrSkillNotFound
	}
	return false
}

// InvalidTransitionError reports a lifecycle action that is not valid from
// the workflow's current status.
type InvalidTransitionError struct {
	WorkflowID id.WorkflowID
	From       string
	Action     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("stepwise: workflow %s: cannot %s from %q", e.WorkflowID, e.Action, e.From)
}

// Is matches ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// TerminalStateError reports an operation against a completed or failed
// workflow.
type TerminalStateError struct {
	WorkflowID id.WorkflowID
	Status     string
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("stepwise: workflow %s is %s", e.WorkflowID, e.Status)
}

// Is matches ErrTerminalState.
func (e *TerminalStateError) Is(target error) bool { return target == ErrTerminalState }

// OutOfOrderStepError reports a completion attempt on a step other than the
// workflow's current one, including one that was already completed.
type OutOfOrderStepError struct {
	WorkflowID  id.WorkflowID
	StepNumber  int
	CurrentStep int
	StepStatus  string
}

func (e *OutOfOrderStepError) Error() string {
	return fmt.Sprintf("stepwise: workflow %s: step %d (%s) is not the current step %d",
		e.WorkflowID, e.StepNumber, e.StepStatus, e.CurrentStep)
}

// Is matches ErrOutOfOrderStep.
func (e *OutOfOrderStepError) Is(target error) bool { return target == ErrOutOfOrderStep }

// StepValidationError carries the complete list of failed mandatory rules
// together with any warnings. The step is left unchanged.
type StepValidationError struct {
	WorkflowID id.WorkflowID
	StepID     id.StepID
	StepNumber int
	Errors     []Issue
	Warnings   []Issue
}

func (e *StepValidationError) Error() string {
	fields := make([]string, 0, len(e.Errors))
	for _, is := range e.Errors {
		fields = append(fields, is.Field+": "+is.Message)
	}
	return fmt.Sprintf("stepwise: step %d of workflow %s failed validation: %s",
		e.StepNumber, e.WorkflowID, strings.Join(fields, "; "))
}

// Is matches ErrStepValidation.
func (e *StepValidationError) Is(target error) bool { return target == ErrStepValidation }

// UnknownStepError reports a (skill type, step number) pair with no
// registered guidance handler.
type UnknownStepError struct {
	SkillType  string
	StepNumber int
}

func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("stepwise: no guidance for %s step %d", e.SkillType, e.StepNumber)
}

// Is matches ErrUnknownStep.
func (e *UnknownStepError) Is(target error) bool { return target == ErrUnknownStep }

// EngineUnavailableError wraps a persistence failure with the context of
// the operation that hit it. The engine does not retry these.
type EngineUnavailableError struct {
	Op         string
	WorkflowID id.WorkflowID
	StepID     id.StepID
	Rule       string
	Err        error
}

func (e *EngineUnavailableError) Error() string {
	var b strings.Builder
	b.WriteString("stepwise: ")
	b.WriteString(e.Op)
	if !e.WorkflowID.IsNil() {
		b.WriteString(" workflow=" + e.WorkflowID.String())
	}
	if !e.StepID.IsNil() {
		b.WriteString(" step=" + e.StepID.String())
	}
	if e.Rule != "" {
		b.WriteString(" rule=" + e.Rule)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Is matches ErrEngineUnavailable.
func (e *EngineUnavailableError) Is(target error) bool { return target == ErrEngineUnavailable }

// Unwrap returns the underlying store error.
func (e *EngineUnavailableError) Unwrap() error { return e.Err }
