package validator

import (
	"fmt"
	"strconv"

	"github.com/xraph/stepwise/definition"
)

// evaluate runs a single rule. The returned evaluation's outcome is pass or
// fail before severity is applied, except for custom rules without a
// registered check, which always warn.
func (v *Validator) evaluate(r definition.Rule, sc StepContext) Evaluation {
	ev := Evaluation{Type: string(r.Type), Rule: r.String(), Field: r.Field}
	value, present := Lookup(sc.Data, r.Field)
	if present {
		ev.Observed = value
	}

	pass := func(msg string) Evaluation {
		ev.Outcome, ev.Message = OutcomePass, msg
		return ev
	}
	fail := func(msg string) Evaluation {
		ev.Outcome, ev.Message = OutcomeFail, msg
		if r.Message != "" {
			ev.Message = r.Message
		}
		return ev
	}

	switch r.Type {
	case definition.RuleRequiredField:
		if !present || isEmpty(value) {
			return fail(fmt.Sprintf("%s is required", r.Field))
		}
		return pass(fmt.Sprintf("%s is present", r.Field))

	case definition.RuleMinimumCount:
		n := 0.0
		if present {
			c, ok := count(value)
			if !ok {
				return fail(fmt.Sprintf("%s must be a list or a number", r.Field))
			}
			n = c
		}
		ev.Observed = n
		if n < r.Min {
			return fail(fmt.Sprintf("%s needs at least %s items, got %s", r.Field, num(r.Min), num(n)))
		}
		return pass(fmt.Sprintf("%s has %s items", r.Field, num(n)))

	case definition.RuleMinimumValue, definition.RuleMaximumValue, definition.RuleRange:
		if !present || value == nil {
			return pass(fmt.Sprintf("%s not provided; bound not evaluated", r.Field))
		}
		f, ok := ToFloat(value)
		if !ok {
			return fail(fmt.Sprintf("%s must be a number", r.Field))
		}
		switch {
		case r.Type == definition.RuleMinimumValue && f < r.Min:
			return fail(fmt.Sprintf("%s must be at least %s, got %s", r.Field, num(r.Min), num(f)))
		case r.Type == definition.RuleMaximumValue && f > r.Max:
			return fail(fmt.Sprintf("%s must be at most %s, got %s", r.Field, num(r.Max), num(f)))
		case r.Type == definition.RuleRange && (f < r.Min || f > r.Max):
			return fail(fmt.Sprintf("%s must be between %s and %s, got %s", r.Field, num(r.Min), num(r.Max), num(f)))
		}
		return pass(fmt.Sprintf("%s is within bounds", r.Field))

	case definition.RuleFormat:
		if !present || value == nil {
			return pass(fmt.Sprintf("%s not provided; format not evaluated", r.Field))
		}
		s, ok := value.(string)
		if !ok || !matchesFormat(r.Format, s) {
			return fail(fmt.Sprintf("%s must be a valid %s", r.Field, r.Format))
		}
		return pass(fmt.Sprintf("%s is a valid %s", r.Field, r.Format))

	case definition.RuleCustom:
		fn, ok := v.checks[r.Check]
		if !ok {
			ev.Outcome = OutcomeWarning
			ev.Message = fmt.Sprintf("no check registered for %q", r.Check)
			return ev
		}
		if err := fn(value, sc); err != nil {
			return fail(err.Error())
		}
		return pass(fmt.Sprintf("%s passed", r.Check))
	}

	return fail(fmt.Sprintf("unsupported rule type %q", r.Type))
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
