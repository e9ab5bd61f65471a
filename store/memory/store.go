// Package memory provides an in-memory store.Store for development and
// tests. All operations run under one mutex, which makes every call atomic.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/store"
	"github.com/xraph/stepwise/workflow"
)

// Ensure Store implements store.Store at compile time.
var _ store.Store = (*Store)(nil)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Values are copied on the way in and out so
// callers can mutate results without racing with the store.
type Store struct {
	mu sync.RWMutex

	workflows map[string]*workflow.Instance
	steps     map[string]*workflow.Step
	// stepIndex lists step IDs per workflow in step-number order.
	stepIndex map[string][]string
	records   map[string][]*workflow.ValidationRecord // key: workflow ID

	closed bool
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		workflows: make(map[string]*workflow.Instance),
		steps:     make(map[string]*workflow.Step),
		stepIndex: make(map[string][]string),
		records:   make(map[string][]*workflow.ValidationRecord),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping fails only after Close.
func (m *Store) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return stepwise.ErrStoreClosed
	}
	return nil
}

// Close marks the store closed; later calls fail with ErrStoreClosed.
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// Workflow instances
// ──────────────────────────────────────────────────

// CreateWorkflow persists a new instance and its steps.
func (m *Store) CreateWorkflow(_ context.Context, wf *workflow.Instance, steps []*workflow.Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return stepwise.ErrStoreClosed
	}
	key := wf.ID.String()
	if _, exists := m.workflows[key]; exists {
		return stepwise.ErrWorkflowAlreadyExists
	}
	for _, s := range steps {
		if _, exists := m.steps[s.ID.String()]; exists {
			return stepwise.ErrWorkflowAlreadyExists
		}
	}

	sorted := append([]*workflow.Step(nil), steps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StepNumber < sorted[j].StepNumber })

	ids := make([]string, 0, len(sorted))
	for _, s := range sorted {
		m.steps[s.ID.String()] = s.Clone()
		ids = append(ids, s.ID.String())
	}
	m.stepIndex[key] = ids
	m.workflows[key] = wf.Clone()
	return nil
}

// GetWorkflow retrieves an instance by ID.
func (m *Store) GetWorkflow(_ context.Context, workflowID id.WorkflowID) (*workflow.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, stepwise.ErrStoreClosed
	}
	wf, ok := m.workflows[workflowID.String()]
	if !ok {
		return nil, stepwise.ErrWorkflowNotFound
	}
	return wf.Clone(), nil
}

// ListWorkflows returns instances matching opts, oldest first.
func (m *Store) ListWorkflows(_ context.Context, opts workflow.ListOpts) ([]*workflow.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, stepwise.ErrStoreClosed
	}

	var result []*workflow.Instance
	for _, wf := range m.workflows {
		if opts.OwnerID != "" && wf.OwnerID != opts.OwnerID {
			continue
		}
		if opts.SkillType != "" && wf.SkillType != opts.SkillType {
			continue
		}
		if opts.Status != "" && wf.Status != opts.Status {
			continue
		}
		result = append(result, wf.Clone())
	}

	// IDs are K-sortable, so they break creation-time ties deterministically.
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Commit writes the instance, its changed steps, and new records if the
// stored version still matches.
func (m *Store) Commit(_ context.Context, c *workflow.Commit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return stepwise.ErrStoreClosed
	}
	key := c.Workflow.ID.String()
	cur, ok := m.workflows[key]
	if !ok {
		return stepwise.ErrWorkflowNotFound
	}
	if cur.Version != c.ExpectedVersion {
		return stepwise.ErrVersionConflict
	}
	for _, s := range c.Steps {
		existing, ok := m.steps[s.ID.String()]
		if !ok || existing.WorkflowID.String() != key {
			return stepwise.ErrStepNotFound
		}
	}

	m.workflows[key] = c.Workflow.Clone()
	for _, s := range c.Steps {
		m.steps[s.ID.String()] = s.Clone()
	}
	m.appendRecords(key, c.Records)
	return nil
}

// DeleteWorkflow removes an instance with its steps and records.
func (m *Store) DeleteWorkflow(_ context.Context, workflowID id.WorkflowID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return stepwise.ErrStoreClosed
	}
	key := workflowID.String()
	if _, ok := m.workflows[key]; !ok {
		return stepwise.ErrWorkflowNotFound
	}

	delete(m.records, key)
	for _, sid := range m.stepIndex[key] {
		delete(m.steps, sid)
	}
	delete(m.stepIndex, key)
	delete(m.workflows, key)
	return nil
}

// ──────────────────────────────────────────────────
// Steps
// ──────────────────────────────────────────────────

// GetStep retrieves a step that belongs to workflowID.
func (m *Store) GetStep(_ context.Context, workflowID id.WorkflowID, stepID id.StepID) (*workflow.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, stepwise.ErrStoreClosed
	}
	s, ok := m.steps[stepID.String()]
	if !ok || s.WorkflowID.String() != workflowID.String() {
		return nil, stepwise.ErrStepNotFound
	}
	return s.Clone(), nil
}

// ListSteps returns a workflow's steps in step-number order.
func (m *Store) ListSteps(_ context.Context, workflowID id.WorkflowID) ([]*workflow.Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, stepwise.ErrStoreClosed
	}
	key := workflowID.String()
	if _, ok := m.workflows[key]; !ok {
		return nil, stepwise.ErrWorkflowNotFound
	}

	ids := m.stepIndex[key]
	out := make([]*workflow.Step, 0, len(ids))
	for _, sid := range ids {
		out = append(out, m.steps[sid].Clone())
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Validation records
// ──────────────────────────────────────────────────

// AppendValidationRecords appends records to the log.
func (m *Store) AppendValidationRecords(_ context.Context, records []*workflow.ValidationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return stepwise.ErrStoreClosed
	}
	for _, r := range records {
		if _, ok := m.workflows[r.WorkflowID.String()]; !ok {
			return stepwise.ErrWorkflowNotFound
		}
	}
	for _, r := range records {
		m.appendRecords(r.WorkflowID.String(), []*workflow.ValidationRecord{r})
	}
	return nil
}

// ListValidationRecords returns records in creation order, optionally
// restricted to one step.
func (m *Store) ListValidationRecords(_ context.Context, workflowID id.WorkflowID, stepID id.StepID) ([]*workflow.ValidationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, stepwise.ErrStoreClosed
	}
	key := workflowID.String()
	if _, ok := m.workflows[key]; !ok {
		return nil, stepwise.ErrWorkflowNotFound
	}

	var out []*workflow.ValidationRecord
	for _, r := range m.records[key] {
		if !stepID.IsNil() && r.StepID.String() != stepID.String() {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *Store) appendRecords(key string, records []*workflow.ValidationRecord) {
	for _, r := range records {
		cp := *r
		m.records[key] = append(m.records[key], &cp)
	}
}
