package workflow

import (
	"context"

	"github.com/xraph/stepwise/id"
)

// ListOpts filters and paginates workflow list queries.
type ListOpts struct {
	// OwnerID restricts results to one owner. Empty means all owners.
	OwnerID string
	// SkillType filters by skill. Empty means all skills.
	SkillType string
	// Status filters by lifecycle status. Empty means all.
	Status Status
	// Limit is the maximum number of instances to return. Zero means no limit.
	Limit int
	// Offset is the number of instances to skip.
	Offset int
}

// Commit is one atomic write: the instance, any changed steps, and the
// validation records produced by the same operation.
type Commit struct {
	// Workflow is the new instance state. Its Version must already be
	// ExpectedVersion+1.
	Workflow *Instance
	// ExpectedVersion is the version the writer read.
	ExpectedVersion int64
	// Steps are the step instances changed by the operation.
	Steps []*Step
	// Records are appended to the validation log.
	Records []*ValidationRecord
}

// Store defines the persistence contract for workflow instances. Every
// method is atomic; a failed call leaves no partial state.
//
// Not-found conditions are reported with stepwise.ErrWorkflowNotFound or
// stepwise.ErrStepNotFound and lost updates with stepwise.ErrVersionConflict.
type Store interface {
	// CreateWorkflow persists a new instance together with all of its steps.
	CreateWorkflow(ctx context.Context, wf *Instance, steps []*Step) error

	// GetWorkflow retrieves an instance by ID.
	GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*Instance, error)

	// ListWorkflows returns instances matching opts, oldest first.
	ListWorkflows(ctx context.Context, opts ListOpts) ([]*Instance, error)

	// Commit writes c if the stored instance is still at c.ExpectedVersion.
	Commit(ctx context.Context, c *Commit) error

	// GetStep retrieves a step that belongs to the given workflow.
	GetStep(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) (*Step, error)

	// ListSteps returns every step of a workflow ordered by step number.
	ListSteps(ctx context.Context, workflowID id.WorkflowID) ([]*Step, error)

	// AppendValidationRecords appends records without touching any other
	// state. Records of an unknown workflow are rejected.
	AppendValidationRecords(ctx context.Context, records []*ValidationRecord) error

	// ListValidationRecords returns a workflow's records in creation order.
	// A nil stepID returns the records of every step.
	ListValidationRecords(ctx context.Context, workflowID id.WorkflowID, stepID id.StepID) ([]*ValidationRecord, error)

	// DeleteWorkflow removes the instance, its steps, and its records.
	DeleteWorkflow(ctx context.Context, workflowID id.WorkflowID) error
}
