// Package storetest is a conformance suite for store.Store backends. Each
// backend's tests call Run with a factory that returns an empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/store"
	"github.com/xraph/stepwise/workflow"
)

// Factory returns a fresh, migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run executes every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateDuplicate", testCreateDuplicate},
		{"GetMissing", testGetMissing},
		{"ListFilters", testListFilters},
		{"ListPagination", testListPagination},
		{"Steps", testSteps},
		{"CommitApplies", testCommitApplies},
		{"CommitVersionConflict", testCommitVersionConflict},
		{"CommitUnknownStep", testCommitUnknownStep},
		{"Records", testRecords},
		{"DeleteCascades", testDeleteCascades},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// now returns a timestamp every backend can store without losing
// precision.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func testDefinition() *definition.Workflow {
	def := &definition.Workflow{
		SkillType: "conformance",
		Name:      "Conformance",
		DataKeys:  []string{"company"},
		Phases: []definition.Phase{
			{Number: 1, Name: "One", Steps: []definition.Step{
				{Number: 1, Name: "First", Rules: []definition.Rule{definition.MinCount("items", 2)}},
				{Number: 2, Name: "Second"},
			}},
			{Number: 2, Name: "Two", Steps: []definition.Step{
				{Number: 3, Name: "Third", Optional: true},
			}},
		},
	}
	def.Normalize()
	return def
}

// NewWorkflow builds an instance with one pending step per definition step.
func NewWorkflow(owner string) (*workflow.Instance, []*workflow.Step) {
	def := testDefinition()
	ts := now()
	wf := &workflow.Instance{
		Entity:       stepwise.Entity{CreatedAt: ts, UpdatedAt: ts},
		ID:           id.NewWorkflowID(),
		OwnerID:      owner,
		SkillType:    def.SkillType,
		Name:         def.Name,
		Status:       workflow.StatusNotStarted,
		CurrentPhase: 1,
		CurrentStep:  1,
		Data:         workflow.Values{"company": "Acme"},
		Metadata:     workflow.Values{"source": "test"},
		Version:      1,
		Definition:   def,
	}

	steps := make([]*workflow.Step, 0, def.StepCount())
	// Insert out of order to make sure backends sort by step number.
	all := def.Steps()
	for i := len(all) - 1; i >= 0; i-- {
		sd := all[i]
		steps = append(steps, &workflow.Step{
			Entity:      stepwise.Entity{CreatedAt: ts, UpdatedAt: ts},
			ID:          id.NewStepID(),
			WorkflowID:  wf.ID,
			StepNumber:  sd.Number,
			PhaseNumber: sd.PhaseNumber,
			Name:        sd.Name,
			Status:      workflow.StepPending,
		})
	}
	return wf, steps
}

func mustCreate(t *testing.T, s store.Store, owner string) (*workflow.Instance, []*workflow.Step) {
	t.Helper()
	wf, steps := NewWorkflow(owner)
	if err := s.CreateWorkflow(context.Background(), wf, steps); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}
	return wf, steps
}

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	wf, _ := mustCreate(t, s, "owner-1")

	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	if got.ID.String() != wf.ID.String() || got.OwnerID != "owner-1" || got.Status != workflow.StatusNotStarted {
		t.Errorf("got %+v", got)
	}
	if got.Version != 1 || got.CurrentStep != 1 || got.CurrentPhase != 1 {
		t.Errorf("pointer/version = %d/%d/%d", got.CurrentPhase, got.CurrentStep, got.Version)
	}
	if got.Data["company"] != "Acme" || got.Metadata["source"] != "test" {
		t.Errorf("data = %v, metadata = %v", got.Data, got.Metadata)
	}
	if got.Definition == nil || got.Definition.StepCount() != 3 {
		t.Fatalf("definition snapshot not persisted: %+v", got.Definition)
	}
	first, _ := got.Definition.Step(1)
	if len(first.Rules) != 1 || first.Rules[0].Min != 2 || first.Rules[0].Type != definition.RuleMinimumCount {
		t.Errorf("definition rules = %+v", first.Rules)
	}
	if !got.CreatedAt.Equal(wf.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, wf.CreatedAt)
	}
	if got.StartedAt != nil || got.CompletedAt != nil {
		t.Error("timestamps should be nil for a new workflow")
	}
}

func testCreateDuplicate(t *testing.T, s store.Store) {
	wf, steps := mustCreate(t, s, "owner")
	err := s.CreateWorkflow(context.Background(), wf, steps)
	if !errors.Is(err, stepwise.ErrWorkflowAlreadyExists) {
		t.Fatalf("expected ErrWorkflowAlreadyExists, got %v", err)
	}
}

func testGetMissing(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.GetWorkflow(ctx, id.NewWorkflowID()); !errors.Is(err, stepwise.ErrWorkflowNotFound) {
		t.Errorf("GetWorkflow: expected ErrWorkflowNotFound, got %v", err)
	}
	if _, err := s.ListSteps(ctx, id.NewWorkflowID()); !errors.Is(err, stepwise.ErrWorkflowNotFound) {
		t.Errorf("ListSteps: expected ErrWorkflowNotFound, got %v", err)
	}
	if err := s.DeleteWorkflow(ctx, id.NewWorkflowID()); !errors.Is(err, stepwise.ErrWorkflowNotFound) {
		t.Errorf("DeleteWorkflow: expected ErrWorkflowNotFound, got %v", err)
	}
}

func testListFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, _ := mustCreate(t, s, "alice")
	mustCreate(t, s, "alice")
	mustCreate(t, s, "bob")

	// Move one of alice's workflows to in_progress.
	next := a.Clone()
	next.Status = workflow.StatusInProgress
	next.Version = a.Version + 1
	if err := s.Commit(ctx, &workflow.Commit{Workflow: next, ExpectedVersion: a.Version}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tests := []struct {
		name string
		opts workflow.ListOpts
		want int
	}{
		{"all", workflow.ListOpts{}, 3},
		{"owner", workflow.ListOpts{OwnerID: "alice"}, 2},
		{"owner and status", workflow.ListOpts{OwnerID: "alice", Status: workflow.StatusInProgress}, 1},
		{"skill", workflow.ListOpts{SkillType: "conformance"}, 3},
		{"other skill", workflow.ListOpts{SkillType: "nope"}, 0},
		{"unknown owner", workflow.ListOpts{OwnerID: "carol"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListWorkflows(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListWorkflows: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d workflows, want %d", len(got), tt.want)
			}
		})
	}
}

func testListPagination(t *testing.T, s store.Store) {
	ctx := context.Background()
	var created []id.WorkflowID
	for range 5 {
		wf, _ := mustCreate(t, s, "pager")
		created = append(created, wf.ID)
		time.Sleep(2 * time.Millisecond)
	}

	page, err := s.ListWorkflows(ctx, workflow.ListOpts{OwnerID: "pager", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d, want 2", len(page))
	}
	if page[0].ID.String() != created[1].String() || page[1].ID.String() != created[2].String() {
		t.Errorf("page not ordered oldest first")
	}

	beyond, err := s.ListWorkflows(ctx, workflow.ListOpts{OwnerID: "pager", Offset: 10})
	if err != nil {
		t.Fatalf("ListWorkflows beyond: %v", err)
	}
	if len(beyond) != 0 {
		t.Errorf("offset past the end returned %d workflows", len(beyond))
	}
}

func testSteps(t *testing.T, s store.Store) {
	ctx := context.Background()
	wf, steps := mustCreate(t, s, "owner")

	list, err := s.ListSteps(ctx, wf.ID)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d steps, want 3", len(list))
	}
	for i, st := range list {
		if st.StepNumber != i+1 {
			t.Errorf("steps not ordered: index %d has step %d", i, st.StepNumber)
		}
		if st.Status != workflow.StepPending {
			t.Errorf("step %d status = %s", st.StepNumber, st.Status)
		}
	}
	if list[2].PhaseNumber != 2 || list[2].Name != "Third" {
		t.Errorf("step 3 = %+v", list[2])
	}

	got, err := s.GetStep(ctx, wf.ID, steps[0].ID)
	if err != nil {
		t.Fatalf("GetStep: %v", err)
	}
	if got.StepNumber != steps[0].StepNumber {
		t.Errorf("GetStep returned step %d", got.StepNumber)
	}

	other, _ := mustCreate(t, s, "owner")
	if _, err := s.GetStep(ctx, other.ID, steps[0].ID); !errors.Is(err, stepwise.ErrStepNotFound) {
		t.Errorf("step of another workflow: expected ErrStepNotFound, got %v", err)
	}
	if _, err := s.GetStep(ctx, wf.ID, id.NewStepID()); !errors.Is(err, stepwise.ErrStepNotFound) {
		t.Errorf("unknown step: expected ErrStepNotFound, got %v", err)
	}
}

func stepNumber(steps []*workflow.Step, n int) *workflow.Step {
	for _, s := range steps {
		if s.StepNumber == n {
			return s
		}
	}
	return nil
}

func record(wf *workflow.Instance, step *workflow.Step, typ string, res workflow.RecordResult) *workflow.ValidationRecord {
	return &workflow.ValidationRecord{
		ID:         id.NewRecordID(),
		WorkflowID: wf.ID,
		StepID:     step.ID,
		Type:       typ,
		Result:     res,
		Message:    typ + " " + string(res),
		Details:    workflow.RecordDetails{Field: "items", Rule: "minimum_count(items >= 2)", Observed: "x"},
		CreatedAt:  now(),
	}
}

func testCommitApplies(t *testing.T, s store.Store) {
	ctx := context.Background()
	wf, steps := mustCreate(t, s, "owner")
	first := stepNumber(steps, 1)

	ts := now()
	next := wf.Clone()
	next.Status = workflow.StatusInProgress
	next.CurrentStep = 2
	next.Data = next.Data.Merge(map[string]any{"items": []any{"a", "b"}})
	next.StartedAt = &ts
	next.Version = wf.Version + 1
	next.UpdatedAt = ts

	done := first.Clone()
	done.Status = workflow.StepCompleted
	done.Data = workflow.Values{"items": []any{"a", "b"}}
	done.CompletedAt = &ts
	done.Validation = &workflow.Validation{Valid: true, Errors: []stepwise.Issue{}, Warnings: []stepwise.Issue{{Field: "x", Rule: "r", Message: "m"}}, ValidatedAt: ts}

	err := s.Commit(ctx, &workflow.Commit{
		Workflow:        next,
		ExpectedVersion: wf.Version,
		Steps:           []*workflow.Step{done},
		Records:         []*workflow.ValidationRecord{record(wf, first, "minimum_count", workflow.ResultPass)},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, _ := s.GetWorkflow(ctx, wf.ID)
	if got.Version != 2 || got.CurrentStep != 2 || got.Status != workflow.StatusInProgress {
		t.Errorf("workflow after commit = %+v", got)
	}
	if got.StartedAt == nil || !got.StartedAt.Equal(ts) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, ts)
	}
	items, _ := got.Data["items"].([]any)
	if len(items) != 2 {
		t.Errorf("data not merged: %v", got.Data)
	}

	st, _ := s.GetStep(ctx, wf.ID, first.ID)
	if st.Status != workflow.StepCompleted || st.CompletedAt == nil {
		t.Errorf("step after commit = %+v", st)
	}
	if st.Validation == nil || !st.Validation.Valid || len(st.Validation.Warnings) != 1 {
		t.Errorf("validation not persisted: %+v", st.Validation)
	}

	recs, _ := s.ListValidationRecords(ctx, wf.ID, id.Nil)
	if len(recs) != 1 || recs[0].Result != workflow.ResultPass {
		t.Errorf("records = %+v", recs)
	}
}

func testCommitVersionConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	wf, steps := mustCreate(t, s, "owner")
	first := stepNumber(steps, 1)

	winner := wf.Clone()
	winner.Status = workflow.StatusInProgress
	winner.Version = wf.Version + 1
	if err := s.Commit(ctx, &workflow.Commit{Workflow: winner, ExpectedVersion: wf.Version}); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	loser := wf.Clone()
	loser.Status = workflow.StatusFailed
	loser.Version = wf.Version + 1
	failed := first.Clone()
	failed.Status = workflow.StepFailed
	err := s.Commit(ctx, &workflow.Commit{
		Workflow:        loser,
		ExpectedVersion: wf.Version,
		Steps:           []*workflow.Step{failed},
		Records:         []*workflow.ValidationRecord{record(wf, first, "required_field", workflow.ResultFail)},
	})
	if !errors.Is(err, stepwise.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := s.GetWorkflow(ctx, wf.ID)
	if got.Status != workflow.StatusInProgress || got.Version != 2 {
		t.Errorf("loser overwrote winner: %+v", got)
	}
	st, _ := s.GetStep(ctx, wf.ID, first.ID)
	if st.Status != workflow.StepPending {
		t.Errorf("partial step write: %s", st.Status)
	}
	recs, _ := s.ListValidationRecords(ctx, wf.ID, id.Nil)
	if len(recs) != 0 {
		t.Errorf("partial record write: %d records", len(recs))
	}
}

func testCommitUnknownStep(t *testing.T, s store.Store) {
	ctx := context.Background()
	wf, _ := mustCreate(t, s, "owner")
	_, foreign := mustCreate(t, s, "owner")

	next := wf.Clone()
	next.Version = wf.Version + 1
	next.Status = workflow.StatusInProgress
	err := s.Commit(ctx, &workflow.Commit{
		Workflow:        next,
		ExpectedVersion: wf.Version,
		Steps:           []*workflow.Step{foreign[0]},
	})
	if !errors.Is(err, stepwise.ErrStepNotFound) {
		t.Fatalf("expected ErrStepNotFound, got %v", err)
	}

	got, _ := s.GetWorkflow(ctx, wf.ID)
	if got.Version != wf.Version || got.Status != workflow.StatusNotStarted {
		t.Errorf("partial workflow write: %+v", got)
	}

	missing := wf.Clone()
	missing.ID = id.NewWorkflowID()
	if err := s.Commit(ctx, &workflow.Commit{Workflow: missing, ExpectedVersion: 1}); !errors.Is(err, stepwise.ErrWorkflowNotFound) {
		t.Errorf("unknown workflow: expected ErrWorkflowNotFound, got %v", err)
	}
}

func testRecords(t *testing.T, s store.Store) {
	ctx := context.Background()
	wf, steps := mustCreate(t, s, "owner")
	one, two := stepNumber(steps, 1), stepNumber(steps, 2)

	batch := []*workflow.ValidationRecord{
		record(wf, one, "required_field", workflow.ResultFail),
		record(wf, one, "minimum_count", workflow.ResultWarning),
		record(wf, two, "no_rules", workflow.ResultPass),
	}
	if err := s.AppendValidationRecords(ctx, batch); err != nil {
		t.Fatalf("AppendValidationRecords: %v", err)
	}
	if err := s.AppendValidationRecords(ctx, []*workflow.ValidationRecord{record(wf, one, "format", workflow.ResultPass)}); err != nil {
		t.Fatalf("AppendValidationRecords: %v", err)
	}

	all, err := s.ListValidationRecords(ctx, wf.ID, id.Nil)
	if err != nil {
		t.Fatalf("ListValidationRecords: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d records, want 4", len(all))
	}
	wantTypes := []string{"required_field", "minimum_count", "no_rules", "format"}
	for i, r := range all {
		if r.Type != wantTypes[i] {
			t.Errorf("record %d type = %s, want %s (creation order)", i, r.Type, wantTypes[i])
		}
	}
	if all[0].Details.Field != "items" || all[0].Details.Observed != "x" {
		t.Errorf("details = %+v", all[0].Details)
	}

	forOne, _ := s.ListValidationRecords(ctx, wf.ID, one.ID)
	if len(forOne) != 3 {
		t.Errorf("records for step 1 = %d, want 3", len(forOne))
	}

	orphan := record(wf, one, "required_field", workflow.ResultPass)
	orphan.WorkflowID = id.NewWorkflowID()
	if err := s.AppendValidationRecords(ctx, []*workflow.ValidationRecord{orphan}); !errors.Is(err, stepwise.ErrWorkflowNotFound) {
		t.Errorf("orphan record: expected ErrWorkflowNotFound, got %v", err)
	}
}

func testDeleteCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	wf, steps := mustCreate(t, s, "owner")
	keep, _ := mustCreate(t, s, "owner")

	if err := s.AppendValidationRecords(ctx, []*workflow.ValidationRecord{
		record(wf, steps[0], "required_field", workflow.ResultPass),
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteWorkflow(ctx, wf.ID); err != nil {
		t.Fatalf("DeleteWorkflow: %v", err)
	}
	if _, err := s.GetWorkflow(ctx, wf.ID); !errors.Is(err, stepwise.ErrWorkflowNotFound) {
		t.Errorf("workflow still present: %v", err)
	}
	if _, err := s.GetStep(ctx, wf.ID, steps[0].ID); !errors.Is(err, stepwise.ErrStepNotFound) {
		t.Errorf("step still present: %v", err)
	}
	if _, err := s.ListValidationRecords(ctx, wf.ID, id.Nil); !errors.Is(err, stepwise.ErrWorkflowNotFound) {
		t.Errorf("records still reachable: %v", err)
	}

	if _, err := s.GetWorkflow(ctx, keep.ID); err != nil {
		t.Errorf("unrelated workflow deleted: %v", err)
	}
}

func testPing(t *testing.T, s store.Store) {
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
