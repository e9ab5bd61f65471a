package skills_test

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"testing"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/engine"
	"github.com/xraph/stepwise/skills"
	"github.com/xraph/stepwise/store/memory"
	"github.com/xraph/stepwise/validator"
)

func load(t *testing.T) *skills.Bundle {
	t.Helper()
	b, err := skills.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return b
}

func TestLoad_Shapes(t *testing.T) {
	b := load(t)

	tests := []struct {
		skill  string
		phases int
		steps  int
	}{
		{skills.VentureDevelopment, 6, 24},
		{skills.QualityGate, 3, 7},
		{skills.DueDiligence, 4, 9},
	}
	for _, tt := range tests {
		t.Run(tt.skill, func(t *testing.T) {
			def, err := b.Registry.Get(tt.skill)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if len(def.Phases) != tt.phases {
				t.Errorf("phases = %d, want %d", len(def.Phases), tt.phases)
			}
			if def.StepCount() != tt.steps {
				t.Errorf("steps = %d, want %d", def.StepCount(), tt.steps)
			}
		})
	}

	if got := b.Registry.Names(); !slices.Equal(got, []string{skills.DueDiligence, skills.QualityGate, skills.VentureDevelopment}) {
		t.Errorf("Names = %v", got)
	}
}

func TestLoad_Complete(t *testing.T) {
	b := load(t)
	if err := b.Guidance.Check(b.Registry.All()...); err != nil {
		t.Errorf("guidance gaps: %v", err)
	}
	if missing := b.Validator.MissingChecks(b.Registry.All()...); len(missing) > 0 {
		t.Errorf("custom checks without implementation: %v", missing)
	}
}

func TestLoad_FundingGuidance(t *testing.T) {
	b := load(t)
	ctx := context.Background()

	plain, err := b.Guidance.Execute(ctx, skills.VentureDevelopment, 18, nil)
	if err != nil {
		t.Fatal(err)
	}
	seed, err := b.Guidance.Execute(ctx, skills.VentureDevelopment, 18, map[string]any{"stage": "seed"})
	if err != nil {
		t.Fatal(err)
	}
	if len(seed.Recommendations) != len(plain.Recommendations)+2 {
		t.Errorf("seed stage should add two recommendations: %v", seed.Recommendations)
	}
	if seed.StepName != "Funding requirements" {
		t.Errorf("StepName = %q", seed.StepName)
	}

	// Outside the funding phase the static handler still answers.
	res, err := b.Guidance.Execute(ctx, skills.VentureDevelopment, 1, map[string]any{"company": "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Guidance == "" || !slices.Contains(res.Deliverables, "problem_brief") {
		t.Errorf("unexpected step 1 guidance: %+v", res)
	}
}

func TestAdd_RejectsOverlap(t *testing.T) {
	b := load(t)
	def, _ := b.Registry.Get(skills.QualityGate)
	def.Version = 2

	err := b.Add(def)
	if err == nil {
		t.Fatal("expected overlapping guidance to be rejected")
	}
	got, err := b.Registry.Get(skills.QualityGate)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 {
		t.Errorf("rejected definition reached the registry: version %d", got.Version)
	}
	if _, err := b.Registry.GetVersion(skills.QualityGate, 2); err == nil {
		t.Error("version 2 registered without guidance")
	}
	if n := len(b.Definitions); n != 3 {
		t.Errorf("Definitions has %d entries, want 3", n)
	}
}

func TestAdd_InvalidLeavesGuidanceUntouched(t *testing.T) {
	b := load(t)
	err := b.Add(&definition.Workflow{
		SkillType: "broken",
		Phases: []definition.Phase{{Number: 1, Name: "Only", Steps: []definition.Step{
			{Number: 1, Name: "One"}, {Number: 1, Name: "Duplicate"},
		}}},
	})
	if err == nil {
		t.Fatal("expected invalid definition to be rejected")
	}
	if r := b.Guidance.Ranges("broken"); len(r) != 0 {
		t.Errorf("guidance registered for rejected definition: %v", r)
	}
	if _, err := b.Registry.Get("broken"); err == nil {
		t.Error("rejected definition reached the registry")
	}
}

func TestAdd_NewSkill(t *testing.T) {
	b := load(t)
	err := b.Add(&definition.Workflow{
		SkillType: "onboarding",
		Phases: []definition.Phase{{Number: 1, Name: "Setup", Steps: []definition.Step{
			{Number: 1, Name: "Account"},
		}}},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.Guidance.Check(b.Registry.All()...); err != nil {
		t.Errorf("guidance gaps after Add: %v", err)
	}
}

func TestChecks(t *testing.T) {
	checks := skills.Checks()

	tests := []struct {
		name    string
		check   string
		value   any
		data    map[string]any
		wantErr bool
	}{
		{"funnel ok", "market_funnel", nil, map[string]any{"tam": 100, "sam": 10, "som": 1}, false},
		{"funnel sam above tam", "market_funnel", nil, map[string]any{"tam": 10, "sam": 100}, true},
		{"funnel som above sam", "market_funnel", nil, map[string]any{"tam": 100, "sam": 10, "som": 50}, true},
		{"funnel missing", "market_funnel", nil, map[string]any{"tam": 100}, true},
		{"unique strings", "unique_entries", []any{"Acme", "Globex"}, nil, false},
		{"duplicate strings", "unique_entries", []any{"Acme", " acme"}, nil, true},
		{"duplicate objects", "unique_entries", []any{map[string]any{"name": "A"}, map[string]any{"name": "a"}}, nil, true},
		{"unique not a list", "unique_entries", "Acme", nil, true},
		{"ltv/cac healthy", "ltv_cac_ratio", nil, map[string]any{"ltv": 900, "cac": 300}, false},
		{"ltv/cac weak", "ltv_cac_ratio", nil, map[string]any{"ltv": 500, "cac": 300}, true},
		{"ltv/cac zero cac", "ltv_cac_ratio", nil, map[string]any{"ltv": 1, "cac": 0}, false},
		{"allocation map", "allocation_sums_to_100", map[string]any{"eng": 60, "sales": 40}, nil, false},
		{"allocation list", "allocation_sums_to_100", []any{map[string]any{"percent": 70.0}, map[string]any{"percent": 30.0}}, nil, false},
		{"allocation short", "allocation_sums_to_100", map[string]any{"eng": 60}, nil, true},
		{"allocation missing", "allocation_sums_to_100", nil, nil, true},
		{"dates ordered", "chronological", []any{map[string]any{"date": "2026-01-01"}, map[string]any{"date": "2026-06-01"}}, nil, false},
		{"dates reversed", "chronological", []any{map[string]any{"date": "2026-06-01"}, map[string]any{"date": "2026-01-01"}}, nil, true},
		{"dates malformed", "chronological", []any{map[string]any{"date": "June"}}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, ok := checks[tt.check]
			if !ok {
				t.Fatalf("check %q not registered", tt.check)
			}
			err := fn(tt.value, validator.StepContext{Data: tt.data})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAdvisors(t *testing.T) {
	b := load(t)

	tests := []struct {
		name     string
		skill    string
		step     int
		data     map[string]any
		wfData   map[string]any
		wantWarn string
	}{
		{"aggressive som", skills.VentureDevelopment, 5, map[string]any{"tam": 1000, "sam": 100, "som": 50}, nil, "som_share"},
		{"few interviews", skills.VentureDevelopment, 7, map[string]any{"interviews": 8, "problem_score": 7}, nil, "interview_depth"},
		{"long payback", skills.VentureDevelopment, 11, map[string]any{"cac": 100, "ltv": 400, "payback_months": 24}, nil, "cac_payback"},
		{"large deal short history", skills.DueDiligence, 3, map[string]any{"statement_years": 3}, map[string]any{"deal_size": 50_000_000}, "deal_size_history"},
		{"small deal", skills.DueDiligence, 3, map[string]any{"statement_years": 3}, map[string]any{"deal_size": 1_000_000}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, _ := b.Registry.Get(tt.skill)
			sd, _ := def.Step(tt.step)
			res := b.Validator.Validate(validator.StepContext{
				SkillType:    tt.skill,
				StepNumber:   tt.step,
				Data:         tt.data,
				WorkflowData: tt.wfData,
			}, sd.Rules, sd.Advisories)

			if !res.Valid {
				t.Fatalf("advisors must not block: %v", res.Errors)
			}
			found := slices.ContainsFunc(res.Warnings, func(is stepwise.Issue) bool { return is.Rule == tt.wantWarn })
			if tt.wantWarn != "" && !found {
				t.Errorf("expected warning %q, got %v", tt.wantWarn, res.Warnings)
			}
			if tt.wantWarn == "" && len(res.Warnings) > 0 {
				t.Errorf("expected no warnings, got %v", res.Warnings)
			}
		})
	}
}

func TestEngineRunsQualityGate(t *testing.T) {
	b := load(t)
	eng, err := engine.New(memory.New(), b.Registry, b.Guidance,
		engine.WithValidator(b.Validator),
		engine.WithLogger(slog.New(slog.DiscardHandler)),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	ctx := context.Background()

	wf, err := eng.CreateWorkflow(ctx, engine.CreateInput{OwnerID: "qa", SkillType: skills.QualityGate})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.StartWorkflow(ctx, wf.ID); err != nil {
		t.Fatal(err)
	}
	steps, _ := eng.GetWorkflowSteps(ctx, wf.ID)

	payloads := map[int]map[string]any{
		1: {"change_summary": "new billing page", "ticket_url": "https://tracker.example.com/REL-42"},
		2: {"risk_score": 2, "blast_radius": "billing only"},
		3: {"coverage": 86.5, "failed_tests": 0},
		4: {"critical_findings": 0, "high_findings": 3},
		6: {"rollback_plan": "revert deploy"},
		7: {"approvers": []any{"ana@example.com", "ben@example.com"}},
	}

	for _, s := range steps {
		if s.StepNumber == 5 {
			if _, err := eng.SkipStep(ctx, wf.ID, s.ID, "no perf baseline yet"); err != nil {
				t.Fatalf("SkipStep: %v", err)
			}
			continue
		}
		res, err := eng.CompleteStep(ctx, wf.ID, s.ID, payloads[s.StepNumber])
		if err != nil {
			t.Fatalf("step %d: %v", s.StepNumber, err)
		}
		if s.StepNumber == 4 && len(res.Validation.Warnings) != 1 {
			t.Errorf("high findings above 2 should warn: %v", res.Validation.Warnings)
		}
	}

	got, _ := eng.GetWorkflow(ctx, wf.ID)
	if got.Status != "completed" {
		t.Errorf("Status = %q, want completed", got.Status)
	}

}

func TestEngineRejectsDuplicateApprovers(t *testing.T) {
	b := load(t)
	def, _ := b.Registry.Get(skills.QualityGate)
	sd, _ := def.Step(7)

	res := b.Validator.Validate(validator.StepContext{
		SkillType:  skills.QualityGate,
		StepNumber: 7,
		Data:       map[string]any{"approvers": []any{"ana@example.com", "ANA@example.com"}},
	}, sd.Rules, sd.Advisories)

	if res.Valid {
		t.Fatal("duplicate approvers should fail")
	}
	if len(res.Errors) != 1 || res.Errors[0].Message != "approvers must be distinct people" {
		t.Errorf("unexpected errors: %v", res.Errors)
	}
	if !errors.Is(&stepwise.StepValidationError{Errors: res.Errors}, stepwise.ErrStepValidation) {
		t.Error("StepValidationError does not match ErrStepValidation")
	}
}
