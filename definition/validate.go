package definition

import (
	"fmt"

	"github.com/xraph/stepwise"
)

// Validate checks the structural invariants of a definition and reports
// every problem found, not just the first. It returns nil or a
// *stepwise.DefinitionInvalidError.
//
// Step numbers must be strictly increasing across phases and contiguous
// from 1, phase numbers strictly increasing, and every step must carry the
// number of the phase that encloses it.
func (w *Workflow) Validate() error {
	var problems []string
	addf := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if w.SkillType == "" {
		addf("skill_type is empty")
	}
	if len(w.Phases) == 0 {
		addf("definition has no phases")
	}

	seenKeys := make(map[string]struct{}, len(w.DataKeys))
	for _, k := range w.DataKeys {
		if _, dup := seenKeys[k]; dup {
			addf("data key %q declared twice", k)
		}
		seenKeys[k] = struct{}{}
	}

	expectStep := 1
	lastPhase := 0
	for pi, p := range w.Phases {
		if p.Number <= lastPhase {
			addf("phase %d (index %d): phase numbers must be strictly increasing", p.Number, pi)
		}
		lastPhase = p.Number

		if len(p.Steps) == 0 {
			addf("phase %d has no steps", p.Number)
		}

		for _, s := range p.Steps {
			if s.Number != expectStep {
				addf("phase %d: step number %d out of sequence, expected %d", p.Number, s.Number, expectStep)
			}
			if s.Number >= expectStep {
				expectStep = s.Number + 1
			}
			if s.Name == "" {
				addf("step %d has no name", s.Number)
			}
			if s.PhaseNumber != 0 && s.PhaseNumber != p.Number {
				addf("step %d declares phase %d but belongs to phase %d", s.Number, s.PhaseNumber, p.Number)
			}
			for ri, r := range s.Rules {
				if err := r.validate(); err != nil {
					addf("step %d rule %d: %v", s.Number, ri+1, err)
				}
			}
			for ai, r := range s.Advisories {
				if err := r.validate(); err != nil {
					addf("step %d advisory %d: %v", s.Number, ai+1, err)
				}
			}
		}
	}

	if len(problems) > 0 {
		return &stepwise.DefinitionInvalidError{SkillType: w.SkillType, Problems: problems}
	}
	return nil
}
