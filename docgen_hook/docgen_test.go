package docgenhook_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	docgenhook "github.com/xraph/stepwise/docgen_hook"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/id"
	"github.com/xraph/stepwise/workflow"
)

type captureGenerator struct {
	reqs []*docgenhook.Request
	err  error
}

func (g *captureGenerator) Generate(_ context.Context, req *docgenhook.Request) error {
	g.reqs = append(g.reqs, req)
	return g.err
}

func newWorkflow() *workflow.Instance {
	return &workflow.Instance{
		ID:        id.NewWorkflowID(),
		OwnerID:   "owner_1",
		SkillType: "venture_development",
		Data:      workflow.Values{"company": "Acme"},
		Definition: &definition.Workflow{
			SkillType: "venture_development",
			Phases: []definition.Phase{{Number: 1, Name: "Ideation", Steps: []definition.Step{
				{Number: 1, Name: "Problem"},
				{Number: 2, Name: "Canvas", Deliverables: []string{"business_model_canvas", "one_pager"}},
			}}},
		},
	}
}

func newStep(wf *workflow.Instance, n int) *workflow.Step {
	return &workflow.Step{
		ID:         id.NewStepID(),
		WorkflowID: wf.ID,
		StepNumber: n,
		Name:       "Canvas",
		Data:       workflow.Values{"segments": []any{"smb"}},
	}
}

func TestName(t *testing.T) {
	if got := docgenhook.New(&captureGenerator{}).Name(); got != "docgen-hook" {
		t.Errorf("expected name %q, got %q", "docgen-hook", got)
	}
}

func TestOnStepCompleted(t *testing.T) {
	tests := []struct {
		name    string
		opts    []docgenhook.Option
		mutate  func(*workflow.Instance)
		step    int
		wantReq bool
	}{
		{name: "step with deliverables", step: 2, wantReq: true},
		{name: "step without deliverables", step: 1},
		{name: "step missing from definition", step: 9},
		{name: "no definition snapshot", step: 2, mutate: func(wf *workflow.Instance) { wf.Definition = nil }},
		{name: "skill filtered out", step: 2, opts: []docgenhook.Option{docgenhook.WithSkills("quality_gate")}},
		{name: "skill allowed", step: 2, wantReq: true, opts: []docgenhook.Option{docgenhook.WithSkills("venture_development")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &captureGenerator{}
			h := docgenhook.New(gen, tt.opts...)
			wf := newWorkflow()
			if tt.mutate != nil {
				tt.mutate(wf)
			}

			if err := h.OnStepCompleted(context.Background(), wf, newStep(wf, tt.step)); err != nil {
				t.Fatalf("OnStepCompleted: %v", err)
			}
			if got := len(gen.reqs) == 1; got != tt.wantReq {
				t.Fatalf("generated: want %v, got %d requests", tt.wantReq, len(gen.reqs))
			}
		})
	}
}

func TestRequestContent(t *testing.T) {
	gen := &captureGenerator{}
	h := docgenhook.New(gen)
	wf := newWorkflow()
	s := newStep(wf, 2)

	if err := h.OnStepCompleted(context.Background(), wf, s); err != nil {
		t.Fatalf("OnStepCompleted: %v", err)
	}
	req := gen.reqs[0]
	if !slices.Equal(req.Deliverables, []string{"business_model_canvas", "one_pager"}) {
		t.Errorf("Deliverables: got %v", req.Deliverables)
	}
	if req.WorkflowID != wf.ID.String() || req.OwnerID != "owner_1" || req.StepNumber != 2 {
		t.Errorf("identity fields wrong: %+v", req)
	}
	if req.WorkflowData["company"] != "Acme" {
		t.Errorf("WorkflowData: got %v", req.WorkflowData)
	}

	// The request carries copies.
	req.WorkflowData["company"] = "changed"
	if wf.Data["company"] != "Acme" {
		t.Error("request shares workflow data with the instance")
	}
}

func TestGeneratorErrorReturned(t *testing.T) {
	boom := errors.New("renderer offline")
	h := docgenhook.New(&captureGenerator{err: boom})
	wf := newWorkflow()

	if err := h.OnStepCompleted(context.Background(), wf, newStep(wf, 2)); !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
}

func TestViaRegistry(t *testing.T) {
	var calls int
	h := docgenhook.New(docgenhook.GeneratorFunc(func(context.Context, *docgenhook.Request) error {
		calls++
		return errors.New("ignored by registry")
	}))

	reg := ext.NewRegistry(slog.Default())
	reg.Register(h)

	wf := newWorkflow()
	reg.EmitStepCompleted(context.Background(), wf, newStep(wf, 2))
	reg.EmitStepCompleted(context.Background(), wf, newStep(wf, 1))

	if calls != 1 {
		t.Errorf("expected 1 generation, got %d", calls)
	}
}
