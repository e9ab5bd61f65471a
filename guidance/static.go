package guidance

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/xraph/stepwise/definition"
)

// Static serves guidance straight from definition content. Placeholders of
// the form {key} in the guidance text and recommendations are replaced with
// the matching value from the workflow data; unknown placeholders are left
// as written.
type Static struct {
	def *definition.Workflow
}

// NewStatic creates a Static handler over a copy of def.
func NewStatic(def *definition.Workflow) *Static {
	cp := def.Clone()
	cp.Normalize()
	return &Static{def: cp}
}

// Guide implements Handler.
func (s *Static) Guide(_ context.Context, req Request) (Result, error) {
	step, ok := s.def.Step(req.StepNumber)
	if !ok {
		return Result{}, fmt.Errorf("step %d not in definition %q", req.StepNumber, s.def.SkillType)
	}

	r := placeholders(req.Data)
	recs := make([]string, len(step.Recommendations))
	for i, rec := range step.Recommendations {
		recs[i] = r.Replace(rec)
	}

	text := step.Guidance
	if text == "" {
		text = step.Description
	}

	return Result{
		StepName:        step.Name,
		PhaseNumber:     step.PhaseNumber,
		Guidance:        r.Replace(text),
		Recommendations: recs,
		Deliverables:    slices.Clone(step.Deliverables),
	}, nil
}

func placeholders(data map[string]any) *strings.Replacer {
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		switch v.(type) {
		case string, bool, int, int64, float64:
			pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
		}
	}
	return strings.NewReplacer(pairs...)
}

// SameContent reports whether a and b lay out the same steps with the same
// guidance text, recommendations and deliverables. Rules are not compared.
func SameContent(a, b *definition.Workflow) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.SkillType != b.SkillType || max(a.Version, 1) != max(b.Version, 1) {
		return false
	}
	as, bs := a.Steps(), b.Steps()
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		x, y := as[i], bs[i]
		if x.Number != y.Number || x.PhaseNumber != y.PhaseNumber || x.Name != y.Name ||
			x.Description != y.Description || x.Guidance != y.Guidance ||
			!slices.Equal(x.Recommendations, y.Recommendations) ||
			!slices.Equal(x.Deliverables, y.Deliverables) {
			return false
		}
	}
	return true
}

// RegisterDefinition registers one Static range per phase of def, all or
// none.
func RegisterDefinition(t *Table, def *definition.Workflow) error {
	h := NewStatic(def)
	ranges := make([]Range, 0, len(h.def.Phases))
	for _, p := range h.def.Phases {
		if first, last := p.StepRange(); first != 0 {
			ranges = append(ranges, Range{From: first, To: last})
		}
	}
	return t.RegisterRanges(def.SkillType, h, ranges...)
}

// FromDefinitions builds a table with static guidance for every definition.
func FromDefinitions(defs ...*definition.Workflow) (*Table, error) {
	t := NewTable()
	for _, def := range defs {
		if err := RegisterDefinition(t, def); err != nil {
			return nil, err
		}
	}
	return t, nil
}
