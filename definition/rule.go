package definition

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleType tags the kind of check a rule performs.
type RuleType string

const (
	// RuleRequiredField fails when the field is absent, nil, blank, or an
	// empty collection.
	RuleRequiredField RuleType = "required_field"
	// RuleMinimumCount requires a collection length (or number) >= Min.
	RuleMinimumCount RuleType = "minimum_count"
	// RuleMinimumValue requires a numeric value >= Min.
	RuleMinimumValue RuleType = "minimum_value"
	// RuleMaximumValue requires a numeric value <= Max.
	RuleMaximumValue RuleType = "maximum_value"
	// RuleRange requires Min <= value <= Max.
	RuleRange RuleType = "range"
	// RuleFormat requires the value to parse as Format.
	RuleFormat RuleType = "format"
	// RuleCustom delegates to a named check supplied by the skill.
	RuleCustom RuleType = "custom"
)

// Severity decides whether a failed rule blocks completion.
type Severity string

const (
	// SeverityFail blocks step completion. It is the default.
	SeverityFail Severity = "fail"
	// SeverityWarning is reported but never blocks.
	SeverityWarning Severity = "warning"
)

// FormatKind names a value format understood by format rules.
type FormatKind string

const (
	FormatEmail FormatKind = "email"
	FormatURL   FormatKind = "url"
	FormatDate  FormatKind = "date"
	FormatPhone FormatKind = "phone"
)

// Rule is one typed, pre-parsed validation rule.
type Rule struct {
	Type  RuleType `json:"type"`
	Field string   `json:"field,omitempty"`

	// Min is the lower bound of minimum_count, minimum_value and range.
	Min float64 `json:"min,omitempty"`
	// Max is the upper bound of maximum_value and range.
	Max float64 `json:"max,omitempty"`

	Format FormatKind `json:"format,omitempty"`

	// Check names the custom check of a custom rule.
	Check string `json:"check,omitempty"`

	Message  string   `json:"message,omitempty"`
	Severity Severity `json:"severity,omitempty"`

	// Expr is the source expression the rule was parsed from, kept for
	// audit details.
	Expr string `json:"expr,omitempty"`
}

// Blocking reports whether a failure of this rule blocks completion.
func (r Rule) Blocking() bool {
	return r.Severity == "" || r.Severity == SeverityFail
}

// String renders the rule in expression form.
func (r Rule) String() string {
	if r.Expr != "" {
		return string(r.Type) + "(" + r.Expr + ")"
	}
	switch r.Type {
	case RuleRequiredField:
		return fmt.Sprintf("required_field(%s)", r.Field)
	case RuleMinimumCount, RuleMinimumValue:
		return fmt.Sprintf("%s(%s >= %s)", r.Type, r.Field, formatNumber(r.Min))
	case RuleMaximumValue:
		return fmt.Sprintf("%s(%s <= %s)", r.Type, r.Field, formatNumber(r.Max))
	case RuleRange:
		return fmt.Sprintf("range(%s between %s and %s)", r.Field, formatNumber(r.Min), formatNumber(r.Max))
	case RuleFormat:
		return fmt.Sprintf("format(%s:%s)", r.Field, r.Format)
	case RuleCustom:
		if r.Field != "" {
			return fmt.Sprintf("custom(%s(%s))", r.Check, r.Field)
		}
		return fmt.Sprintf("custom(%s)", r.Check)
	}
	return string(r.Type)
}

// WithMessage returns a copy of r with a custom message.
func (r Rule) WithMessage(msg string) Rule {
	r.Message = msg
	return r
}

// AsWarning returns a copy of r that only warns.
func (r Rule) AsWarning() Rule {
	r.Severity = SeverityWarning
	return r
}

// Required builds a required_field rule.
func Required(field string) Rule {
	return Rule{Type: RuleRequiredField, Field: field}
}

// MinCount builds a minimum_count rule.
func MinCount(field string, n int) Rule {
	return Rule{Type: RuleMinimumCount, Field: field, Min: float64(n)}
}

// MinValue builds a minimum_value rule.
func MinValue(field string, v float64) Rule {
	return Rule{Type: RuleMinimumValue, Field: field, Min: v}
}

// MaxValue builds a maximum_value rule.
func MaxValue(field string, v float64) Rule {
	return Rule{Type: RuleMaximumValue, Field: field, Max: v}
}

// Between builds an inclusive range rule.
func Between(field string, lo, hi float64) Rule {
	return Rule{Type: RuleRange, Field: field, Min: lo, Max: hi}
}

// FormatOf builds a format rule.
func FormatOf(field string, kind FormatKind) Rule {
	return Rule{Type: RuleFormat, Field: field, Format: kind}
}

// Custom builds a custom rule bound to a named check. Field may be empty
// when the check inspects the whole payload.
func Custom(check, field string) Rule {
	return Rule{Type: RuleCustom, Check: check, Field: field}
}

var (
	fieldPattern      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	comparisonPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s*(>=|<=)\s*(-?[0-9]+(?:\.[0-9]+)?)\s*$`)
	betweenPattern    = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s+between\s+(-?[0-9]+(?:\.[0-9]+)?)\s+and\s+(-?[0-9]+(?:\.[0-9]+)?)\s*$`)
	dotsPattern       = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_.]*)\s+in\s+(-?[0-9]+(?:\.[0-9]+)?)\s*\.\.\s*(-?[0-9]+(?:\.[0-9]+)?)\s*$`)
	chainedPattern    = regexp.MustCompile(`^\s*(-?[0-9]+(?:\.[0-9]+)?)\s*<=\s*([A-Za-z_][A-Za-z0-9_.]*)\s*<=\s*(-?[0-9]+(?:\.[0-9]+)?)\s*$`)
	customPattern     = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\(\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\))?\s*$`)
)

// ParseRule turns a rule type and its expression into a typed Rule.
//
// Accepted expressions:
//
//	required_field  market_size
//	minimum_count   competitors >= 3
//	minimum_value   price >= 0
//	maximum_value   discount <= 0.5
//	range           score between 1 and 10  |  score in 1..10  |  1 <= score <= 10
//	format          contact:email            (email, url, date, phone)
//	custom          unique_competitors       |  unique_competitors(competitors)
func ParseRule(typ RuleType, expr, message string) (Rule, error) {
	r := Rule{Type: typ, Message: message, Expr: strings.TrimSpace(expr)}

	switch typ {
	case RuleRequiredField:
		r.Field = r.Expr
		if !fieldPattern.MatchString(r.Field) {
			return Rule{}, fmt.Errorf("required_field: invalid field %q", expr)
		}

	case RuleMinimumCount, RuleMinimumValue, RuleMaximumValue:
		m := comparisonPattern.FindStringSubmatch(expr)
		if m == nil {
			return Rule{}, fmt.Errorf("%s: expected \"field >= N\" or \"field <= N\", got %q", typ, expr)
		}
		n, _ := strconv.ParseFloat(m[3], 64) //nolint:errcheck // pattern guarantees a number
		r.Field = m[1]
		switch {
		case typ == RuleMaximumValue && m[2] == "<=":
			r.Max = n
		case typ != RuleMaximumValue && m[2] == ">=":
			r.Min = n
		default:
			return Rule{}, fmt.Errorf("%s: operator %q not allowed in %q", typ, m[2], expr)
		}

	case RuleRange:
		var field, lo, hi string
		if m := betweenPattern.FindStringSubmatch(expr); m != nil {
			field, lo, hi = m[1], m[2], m[3]
		} else if m := dotsPattern.FindStringSubmatch(expr); m != nil {
			field, lo, hi = m[1], m[2], m[3]
		} else if m := chainedPattern.FindStringSubmatch(expr); m != nil {
			field, lo, hi = m[2], m[1], m[3]
		} else {
			return Rule{}, fmt.Errorf("range: expected \"field between A and B\", got %q", expr)
		}
		r.Field = field
		r.Min, _ = strconv.ParseFloat(lo, 64) //nolint:errcheck // pattern guarantees a number
		r.Max, _ = strconv.ParseFloat(hi, 64) //nolint:errcheck // pattern guarantees a number

	case RuleFormat:
		field, kind, ok := strings.Cut(r.Expr, ":")
		if !ok {
			return Rule{}, fmt.Errorf("format: expected \"field:kind\", got %q", expr)
		}
		r.Field = strings.TrimSpace(field)
		r.Format = FormatKind(strings.TrimSpace(kind))

	case RuleCustom:
		m := customPattern.FindStringSubmatch(expr)
		if m == nil {
			return Rule{}, fmt.Errorf("custom: expected \"check\" or \"check(field)\", got %q", expr)
		}
		r.Check, r.Field = m[1], m[2]

	default:
		return Rule{}, fmt.Errorf("unknown rule type %q", typ)
	}

	if err := r.validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// validate checks the typed fields of a rule, however it was built.
func (r Rule) validate() error {
	switch r.Type {
	case RuleRequiredField, RuleMinimumCount, RuleMinimumValue, RuleMaximumValue, RuleRange, RuleFormat:
		if !fieldPattern.MatchString(r.Field) {
			return fmt.Errorf("%s: invalid field %q", r.Type, r.Field)
		}
	case RuleCustom:
		if r.Check == "" {
			return fmt.Errorf("custom: missing check name")
		}
		if r.Field != "" && !fieldPattern.MatchString(r.Field) {
			return fmt.Errorf("custom: invalid field %q", r.Field)
		}
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}

	switch r.Type {
	case RuleMinimumCount:
		if r.Min < 0 || r.Min != float64(int(r.Min)) {
			return fmt.Errorf("minimum_count: count must be a non-negative integer, got %s", formatNumber(r.Min))
		}
	case RuleRange:
		if r.Min > r.Max {
			return fmt.Errorf("range: lower bound %s exceeds upper bound %s", formatNumber(r.Min), formatNumber(r.Max))
		}
	case RuleFormat:
		switch r.Format {
		case FormatEmail, FormatURL, FormatDate, FormatPhone:
		default:
			return fmt.Errorf("format: unknown kind %q", r.Format)
		}
	}

	switch r.Severity {
	case "", SeverityFail, SeverityWarning:
	default:
		return fmt.Errorf("%s: unknown severity %q", r.Type, r.Severity)
	}
	return nil
}

// UnmarshalYAML decodes the authoring form {type, rule, message, severity}
// and parses the expression.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type     RuleType `yaml:"type"`
		Rule     string   `yaml:"rule"`
		Message  string   `yaml:"message"`
		Severity Severity `yaml:"severity"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := ParseRule(raw.Type, raw.Rule, raw.Message)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	parsed.Severity = raw.Severity
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}

	*r = parsed
	return nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
