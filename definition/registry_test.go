package definition_test

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := definition.NewRegistry()
	if err := r.Register(sampleWorkflow()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get("sample")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if s, _ := got.Step(3); s.PhaseNumber != 2 {
		t.Errorf("registry should normalize phase numbers, got %d", s.PhaseNumber)
	}

	// Mutating the returned copy must not leak into the registry.
	got.Phases[0].Name = "mutated"
	again, _ := r.Get("sample")
	if again.Phases[0].Name != "Discover" {
		t.Error("Get returned a shared definition")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := definition.NewRegistry()
	_, err := r.Get("nonexistent")
	if !errors.Is(err, stepwise.ErrSkillNotFound) {
		t.Fatalf("expected ErrSkillNotFound, got %v", err)
	}
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	r := definition.NewRegistry()
	w := sampleWorkflow()
	w.Phases[1].Steps[0].Number = 9

	if err := r.Register(w); !errors.Is(err, stepwise.ErrDefinitionInvalid) {
		t.Fatalf("expected ErrDefinitionInvalid, got %v", err)
	}
	if len(r.Names()) != 0 {
		t.Error("invalid definition should not be registered")
	}
}

func TestRegistry_Versions(t *testing.T) {
	r := definition.NewRegistry()

	v2 := sampleWorkflow()
	v2.Version = 2
	v2.Name = "Sample v2"
	if err := r.Register(v2); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(sampleWorkflow()); err != nil {
		t.Fatal(err)
	}

	latest, _ := r.Get("sample")
	if latest.Version != 2 {
		t.Errorf("latest version = %d, want 2", latest.Version)
	}
	v1, err := r.GetVersion("sample", 1)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if v1.Name != "Sample" {
		t.Errorf("v1 name = %q", v1.Name)
	}

	v2.Name = "Sample v2 again"
	if err := r.Register(v2); err != nil {
		t.Fatal(err)
	}
	latest, _ = r.Get("sample")
	if latest.Name != "Sample v2 again" {
		t.Errorf("re-registering a version should replace it, got %q", latest.Name)
	}
}

func TestRegistry_Names(t *testing.T) {
	r := definition.NewRegistry()
	for _, name := range []string{"zeta", "alpha"} {
		w := sampleWorkflow()
		w.SkillType = name
		if err := r.Register(w); err != nil {
			t.Fatal(err)
		}
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Errorf("Names = %v", names)
	}
	if all := r.All(); len(all) != 2 || all[0].SkillType != "alpha" {
		t.Errorf("All = %v", all)
	}
}

const twoSkills = `
skill_type: first
name: First
phases:
  - number: 1
    name: Only
    steps:
      - number: 1
        name: Contact
        rules:
          - type: format
            rule: contact:email
            message: Provide a valid email
          - type: range
            rule: score between 1 and 5
            severity: warning
---
skill_type: second
name: Second
phases:
  - number: 1
    name: A
    steps:
      - number: 1
        name: One
  - number: 2
    name: B
    steps:
      - number: 2
        name: Two
        optional: true
`

func TestLoadYAML(t *testing.T) {
	defs, err := definition.LoadYAML(strings.NewReader(twoSkills))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}

	s, _ := defs[0].Step(1)
	if len(s.Rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(s.Rules))
	}
	if s.Rules[0].Format != definition.FormatEmail || s.Rules[0].Message != "Provide a valid email" {
		t.Errorf("rule 0 = %+v", s.Rules[0])
	}
	if s.Rules[1].Severity != definition.SeverityWarning || s.Rules[1].Max != 5 {
		t.Errorf("rule 1 = %+v", s.Rules[1])
	}

	two, _ := defs[1].Step(2)
	if two.PhaseNumber != 2 || !two.Optional {
		t.Errorf("step 2 = %+v", two)
	}
}

func TestLoadYAMLBadRule(t *testing.T) {
	doc := `
skill_type: broken
phases:
  - number: 1
    name: A
    steps:
      - number: 1
        name: One
        rules:
          - type: minimum_count
            rule: items
`
	_, err := definition.LoadYAML(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected error for malformed rule")
	}
	if !strings.Contains(err.Error(), "line") {
		t.Errorf("error should carry a line number: %v", err)
	}
}

func TestLoadFS(t *testing.T) {
	fsys := fstest.MapFS{
		"defs/skills.yaml": &fstest.MapFile{Data: []byte(twoSkills)},
		"defs/README.md":   &fstest.MapFile{Data: []byte("ignored")},
	}

	defs, err := definition.LoadFS(fsys, "defs")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}

	r := definition.NewRegistry()
	if err := r.RegisterAll(defs...); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if got := r.Names(); len(got) != 2 {
		t.Errorf("Names = %v", got)
	}
}
