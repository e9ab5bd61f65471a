// Package skills ships the built-in skill types: venture_development
// (24 steps in 6 phases), quality_gate and due_diligence.
//
// Definitions are embedded YAML. Load registers them, builds a guidance
// table over their content, and returns a validator carrying the custom
// checks and advisors they reference:
//
//	b, err := skills.Load()
//	eng, err := engine.New(store, b.Registry, b.Guidance, engine.WithValidator(b.Validator))
package skills

import (
	"embed"
	"fmt"

	"github.com/xraph/stepwise/definition"
	"github.com/xraph/stepwise/guidance"
	"github.com/xraph/stepwise/validator"
)

//go:embed definitions/*.yaml
var definitionsFS embed.FS

// Skill type names.
const (
	VentureDevelopment = "venture_development"
	QualityGate        = "quality_gate"
	DueDiligence       = "due_diligence"
)

// Bundle is everything an engine needs to run the built-in skills.
type Bundle struct {
	Definitions []*definition.Workflow
	Registry    *definition.Registry
	Guidance    *guidance.Table
	Validator   *validator.Validator
}

// Definitions parses the embedded definition files.
func Definitions() ([]*definition.Workflow, error) {
	return definition.LoadFS(definitionsFS, "definitions")
}

// ValidatorOptions returns the checks and advisors of the built-in skills.
func ValidatorOptions() []validator.Option {
	return []validator.Option{
		validator.WithChecks(Checks()),
		validator.WithAdvisor(VentureDevelopment, validator.AdvisorFunc(ventureAdvisor)),
		validator.WithAdvisor(DueDiligence, validator.AdvisorFunc(diligenceAdvisor)),
	}
}

// Load builds a Bundle from the embedded definitions.
func Load() (*Bundle, error) {
	defs, err := Definitions()
	if err != nil {
		return nil, fmt.Errorf("skills: %w", err)
	}

	b := &Bundle{
		Registry:  definition.NewRegistry(),
		Guidance:  guidance.NewTable(),
		Validator: validator.New(ValidatorOptions()...),
	}
	if err := b.Add(defs...); err != nil {
		return nil, err
	}

	venture, err := b.Registry.Get(VentureDevelopment)
	if err != nil {
		return nil, fmt.Errorf("skills: %w", err)
	}
	if err := b.Guidance.Override(VentureDevelopment, fundingRange, fundingCoach(guidance.NewStatic(venture))); err != nil {
		return nil, fmt.Errorf("skills: funding guidance: %w", err)
	}
	return b, nil
}

// Add registers extra definitions with static guidance, for example ones
// loaded from a directory at startup. A definition is validated and its
// guidance registered before it enters the registry, so a rejected
// definition leaves the bundle as it was.
func (b *Bundle) Add(defs ...*definition.Workflow) error {
	for _, def := range defs {
		cp := def.Clone()
		cp.Normalize()
		if err := cp.Validate(); err != nil {
			return fmt.Errorf("skills: register %s: %w", def.SkillType, err)
		}
		if err := guidance.RegisterDefinition(b.Guidance, cp); err != nil {
			return fmt.Errorf("skills: guidance for %s: %w", def.SkillType, err)
		}
		if err := b.Registry.Register(cp); err != nil {
			return fmt.Errorf("skills: register %s: %w", def.SkillType, err)
		}
		b.Definitions = append(b.Definitions, def)
	}
	return nil
}
