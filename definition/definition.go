package definition

import "slices"

// Workflow is the phase/step/rule template for one skill type.
type Workflow struct {
	// SkillType is the unique key of the guided process, e.g.
	// "venture_development".
	SkillType string `json:"skill_type" yaml:"skill_type"`

	// Name is a human-readable title used when an instance is created
	// without an explicit name.
	Name string `json:"name" yaml:"name"`

	// Version is bumped whenever the step layout changes. Zero is treated
	// as version 1.
	Version int `json:"version,omitempty" yaml:"version"`

	Description string `json:"description,omitempty" yaml:"description"`

	// DataKeys lists the workflow-data keys this skill declares. Anything
	// else written to the instance data lands in the extra bag.
	DataKeys []string `json:"data_keys,omitempty" yaml:"data_keys"`

	Phases []Phase `json:"phases" yaml:"phases"`
}

// Phase is an ordered grouping of consecutive steps.
type Phase struct {
	Number int    `json:"number" yaml:"number"`
	Name   string `json:"name" yaml:"name"`
	Steps  []Step `json:"steps" yaml:"steps"`
}

// Step is the definition of one unit of work.
type Step struct {
	Number      int    `json:"number" yaml:"number"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`

	// PhaseNumber is filled from the enclosing phase by Normalize.
	PhaseNumber int `json:"phase_number" yaml:"-"`

	// Optional steps may be skipped instead of completed.
	Optional bool `json:"optional,omitempty" yaml:"optional"`

	// Rules gate completion. Rules with warning severity are reported but
	// never block.
	Rules []Rule `json:"rules,omitempty" yaml:"rules"`

	// Advisories are best-practice checks; they only ever warn.
	Advisories []Rule `json:"advisories,omitempty" yaml:"advisories"`

	Deliverables    []string `json:"deliverables,omitempty" yaml:"deliverables"`
	Guidance        string   `json:"guidance,omitempty" yaml:"guidance"`
	Recommendations []string `json:"recommendations,omitempty" yaml:"recommendations"`
}

// Normalize stamps every step with its phase number. It is idempotent and
// is applied by the registry and the engine before validation.
func (w *Workflow) Normalize() {
	for pi := range w.Phases {
		for si := range w.Phases[pi].Steps {
			w.Phases[pi].Steps[si].PhaseNumber = w.Phases[pi].Number
		}
	}
	if w.Version <= 0 {
		w.Version = 1
	}
}

// Steps returns every step in definition order.
func (w *Workflow) Steps() []Step {
	n := 0
	for _, p := range w.Phases {
		n += len(p.Steps)
	}
	out := make([]Step, 0, n)
	for _, p := range w.Phases {
		for _, s := range p.Steps {
			s.PhaseNumber = p.Number
			out = append(out, s)
		}
	}
	return out
}

// StepCount returns the total number of steps across all phases.
func (w *Workflow) StepCount() int {
	n := 0
	for _, p := range w.Phases {
		n += len(p.Steps)
	}
	return n
}

// Step returns the step definition with the given number.
func (w *Workflow) Step(number int) (Step, bool) {
	for _, p := range w.Phases {
		for _, s := range p.Steps {
			if s.Number == number {
				s.PhaseNumber = p.Number
				return s, true
			}
		}
	}
	return Step{}, false
}

// Phase returns the phase with the given number.
func (w *Workflow) Phase(number int) (Phase, bool) {
	for _, p := range w.Phases {
		if p.Number == number {
			return p, true
		}
	}
	return Phase{}, false
}

// StepRange returns the first and last step number of a phase.
func (p Phase) StepRange() (first, last int) {
	if len(p.Steps) == 0 {
		return 0, 0
	}
	return p.Steps[0].Number, p.Steps[len(p.Steps)-1].Number
}

// Declares reports whether key is one of the skill's declared data keys.
func (w *Workflow) Declares(key string) bool {
	return slices.Contains(w.DataKeys, key)
}

// Clone returns a deep copy of the definition.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	cp := *w
	cp.DataKeys = slices.Clone(w.DataKeys)
	cp.Phases = make([]Phase, len(w.Phases))
	for pi, p := range w.Phases {
		p.Steps = slices.Clone(p.Steps)
		for si, s := range p.Steps {
			s.Rules = slices.Clone(s.Rules)
			s.Advisories = slices.Clone(s.Advisories)
			s.Deliverables = slices.Clone(s.Deliverables)
			s.Recommendations = slices.Clone(s.Recommendations)
			p.Steps[si] = s
		}
		cp.Phases[pi] = p
	}
	return &cp
}
