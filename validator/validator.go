// Package validator evaluates one step's submitted data against the step's
// typed rules and advisories.
//
// Evaluation is deterministic and side-effect free: the same data and rules
// always produce the same [Result], in rule order. Every rule yields exactly
// one [Evaluation]; the engine turns each evaluation into one validation
// record.
package validator

import (
	"fmt"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
)

// Outcome is the result of evaluating a single rule.
type Outcome string

const (
	OutcomePass    Outcome = "pass"
	OutcomeFail    Outcome = "fail"
	OutcomeWarning Outcome = "warning"
)

// Evaluation types that do not correspond to a rule type.
const (
	// TypeBestPractice tags advisory and advisor findings.
	TypeBestPractice = "best_practice"
	// TypeNoRules tags the single pass evaluation of a step without rules.
	TypeNoRules = "no_rules"
)

// StepContext is the input to one validation run.
type StepContext struct {
	SkillType  string
	StepNumber int

	// Data is the submitted step payload.
	Data map[string]any

	// WorkflowData is the instance's accumulated data. Rules never read it;
	// custom checks and advisors may.
	WorkflowData map[string]any
}

// Evaluation is the outcome of one rule, advisory, or advisor finding.
type Evaluation struct {
	// Type is the rule type, TypeBestPractice, or TypeNoRules.
	Type string `json:"type"`
	// Rule is the rendered rule expression. Empty for advisor findings.
	Rule     string  `json:"rule,omitempty"`
	Field    string  `json:"field,omitempty"`
	Outcome  Outcome `json:"outcome"`
	Message  string  `json:"message"`
	Observed any     `json:"observed,omitempty"`
}

// Issue converts the evaluation into a field-level issue.
func (e Evaluation) Issue() stepwise.Issue {
	rule := e.Rule
	if rule == "" {
		rule = e.Type
	}
	return stepwise.Issue{Field: e.Field, Rule: rule, Message: e.Message}
}

// Result aggregates every evaluation of a validation run.
type Result struct {
	// Valid is true when no evaluation failed.
	Valid       bool             `json:"valid"`
	Errors      []stepwise.Issue `json:"errors"`
	Warnings    []stepwise.Issue `json:"warnings"`
	Evaluations []Evaluation     `json:"evaluations"`
}

// CheckFunc implements a custom rule. value is the rule's field value, or
// nil when the rule names no field or the field is absent. sc carries the
// complete step payload. A non-nil error fails the rule with the error's
// message.
type CheckFunc func(value any, sc StepContext) error

// Advisor produces best-practice findings for a skill. Findings are always
// reported as warnings.
type Advisor interface {
	Advise(sc StepContext) []stepwise.Issue
}

// AdvisorFunc is a function adapter for Advisor.
type AdvisorFunc func(sc StepContext) []stepwise.Issue

// Advise implements Advisor.
func (f AdvisorFunc) Advise(sc StepContext) []stepwise.Issue { return f(sc) }

// Option configures a Validator.
type Option func(*Validator)

// WithCheck registers a custom check under name.
func WithCheck(name string, fn CheckFunc) Option {
	return func(v *Validator) { v.checks[name] = fn }
}

// WithChecks registers every check in the map.
func WithChecks(checks map[string]CheckFunc) Option {
	return func(v *Validator) {
		for name, fn := range checks {
			v.checks[name] = fn
		}
	}
}

// WithAdvisor registers a best-practice advisor for a skill type.
func WithAdvisor(skillType string, a Advisor) Option {
	return func(v *Validator) { v.advisors[skillType] = append(v.advisors[skillType], a) }
}

// Validator evaluates step data. It is immutable after construction and
// safe for concurrent use.
type Validator struct {
	checks   map[string]CheckFunc
	advisors map[string][]Advisor
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		checks:   make(map[string]CheckFunc),
		advisors: make(map[string][]Advisor),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HasCheck reports whether a custom check is registered under name.
func (v *Validator) HasCheck(name string) bool {
	_, ok := v.checks[name]
	return ok
}

// MissingChecks lists, per definition, every custom rule whose check is not
// registered, formatted as "skill step N: name".
func (v *Validator) MissingChecks(defs ...*definition.Workflow) []string {
	var missing []string
	for _, def := range defs {
		for _, s := range def.Steps() {
			for _, r := range append(append([]definition.Rule(nil), s.Rules...), s.Advisories...) {
				if r.Type == definition.RuleCustom && !v.HasCheck(r.Check) {
					missing = append(missing, fmt.Sprintf("%s step %d: %s", def.SkillType, s.Number, r.Check))
				}
			}
		}
	}
	return missing
}

// Validate evaluates rules, then advisories, then the skill's advisors.
// Rules with warning severity and all advisories never fail the result.
// A step with no rules yields a single TypeNoRules pass evaluation.
func (v *Validator) Validate(sc StepContext, rules, advisories []definition.Rule) Result {
	res := Result{
		Valid:    true,
		Errors:   []stepwise.Issue{},
		Warnings: []stepwise.Issue{},
	}

	if len(rules) == 0 {
		res.Evaluations = append(res.Evaluations, Evaluation{
			Type:    TypeNoRules,
			Outcome: OutcomePass,
			Message: "no validation rules defined for this step",
		})
	}

	for _, r := range rules {
		ev := v.evaluate(r, sc)
		if ev.Outcome == OutcomeFail && !r.Blocking() {
			ev.Outcome = OutcomeWarning
		}
		res.add(ev)
	}

	for _, r := range advisories {
		ev := v.evaluate(r, sc)
		ev.Type = TypeBestPractice
		if ev.Outcome == OutcomeFail {
			ev.Outcome = OutcomeWarning
		}
		res.add(ev)
	}

	for _, a := range v.advisors[sc.SkillType] {
		for _, is := range a.Advise(sc) {
			res.add(Evaluation{
				Type:    TypeBestPractice,
				Rule:    is.Rule,
				Field:   is.Field,
				Outcome: OutcomeWarning,
				Message: is.Message,
			})
		}
	}

	return res
}

func (r *Result) add(ev Evaluation) {
	r.Evaluations = append(r.Evaluations, ev)
	switch ev.Outcome {
	case OutcomeFail:
		r.Valid = false
		r.Errors = append(r.Errors, ev.Issue())
	case OutcomeWarning:
		r.Warnings = append(r.Warnings, ev.Issue())
	}
}
