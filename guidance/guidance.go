// Package guidance routes a (skill type, step number) pair to the guidance,
// recommendations and deliverables of that step.
//
// A [Table] holds, per skill type, a set of non-overlapping inclusive step
// ranges, each bound to a [Handler]. Lookups are pure: a handler sees the
// request and nothing else.
//
//	t := guidance.NewTable()
//	_ = guidance.RegisterDefinition(t, def)                  // one static range per phase
//	_ = t.Override("venture_development", guidance.Range{From: 7, To: 7}, pricingCoach)
//
//	res, err := t.Execute(ctx, "venture_development", 7, data)
package guidance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/definition"
)

// Request is the input to a guidance handler.
type Request struct {
	SkillType  string
	StepNumber int

	// Data is the workflow's accumulated data at the time of the request.
	Data map[string]any
}

// Result is the guidance payload for one step.
type Result struct {
	SkillType       string   `json:"skill_type"`
	StepNumber      int      `json:"step_number"`
	StepName        string   `json:"step_name,omitempty"`
	PhaseNumber     int      `json:"phase_number,omitempty"`
	Guidance        string   `json:"guidance"`
	Recommendations []string `json:"recommendations"`
	Deliverables    []string `json:"deliverables"`
}

// Handler produces guidance for the steps of its range.
type Handler interface {
	Guide(ctx context.Context, req Request) (Result, error)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, req Request) (Result, error)

// Guide implements Handler.
func (f HandlerFunc) Guide(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

// Range is an inclusive span of step numbers.
type Range struct {
	From int
	To   int
}

// Contains reports whether n lies in the range.
func (r Range) Contains(n int) bool { return n >= r.From && n <= r.To }

func (r Range) overlaps(o Range) bool { return r.From <= o.To && o.From <= r.To }

func (r Range) String() string {
	if r.From == r.To {
		return fmt.Sprintf("%d", r.From)
	}
	return fmt.Sprintf("%d-%d", r.From, r.To)
}

type entry struct {
	rng     Range
	handler Handler
}

// Table is the range-dispatch table. It is safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	skills map[string][]entry // sorted by rng.From
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{skills: make(map[string][]entry)}
}

// Register binds h to the steps in r for a skill type. Ranges must not
// overlap any range already registered for the same skill.
func (t *Table) Register(skillType string, r Range, h Handler) error {
	return t.RegisterRanges(skillType, h, r)
}

// RegisterRanges binds h to every range at once. The ranges must not
// overlap each other or anything registered for the skill; on error
// nothing is registered.
func (t *Table) RegisterRanges(skillType string, h Handler, ranges ...Range) error {
	for i, r := range ranges {
		if r.From < 1 || r.To < r.From {
			return fmt.Errorf("guidance: %s: invalid range %d-%d", skillType, r.From, r.To)
		}
		for _, o := range ranges[:i] {
			if o.overlaps(r) {
				return fmt.Errorf("guidance: %s: ranges %s and %s overlap", skillType, o, r)
			}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.skills[skillType] {
		for _, r := range ranges {
			if e.rng.overlaps(r) {
				return fmt.Errorf("guidance: %s: range %s overlaps registered range %s", skillType, r, e.rng)
			}
		}
	}
	for _, r := range ranges {
		t.insert(skillType, entry{rng: r, handler: h})
	}
	return nil
}

// Override binds h to r, carving the range out of any existing entries for
// the skill. Steps outside r keep their previous handlers.
func (t *Table) Override(skillType string, r Range, h Handler) error {
	if r.From < 1 || r.To < r.From {
		return fmt.Errorf("guidance: %s: invalid range %d-%d", skillType, r.From, r.To)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := make([]entry, 0, len(t.skills[skillType])+2)
	for _, e := range t.skills[skillType] {
		if !e.rng.overlaps(r) {
			kept = append(kept, e)
			continue
		}
		if e.rng.From < r.From {
			kept = append(kept, entry{rng: Range{From: e.rng.From, To: r.From - 1}, handler: e.handler})
		}
		if e.rng.To > r.To {
			kept = append(kept, entry{rng: Range{From: r.To + 1, To: e.rng.To}, handler: e.handler})
		}
	}
	t.skills[skillType] = kept
	t.insert(skillType, entry{rng: r, handler: h})
	return nil
}

func (t *Table) insert(skillType string, e entry) {
	entries := append(t.skills[skillType], e)
	sort.Slice(entries, func(i, j int) bool { return entries[i].rng.From < entries[j].rng.From })
	t.skills[skillType] = entries
}

func (t *Table) lookup(skillType string, stepNumber int) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entries := t.skills[skillType]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].rng.To >= stepNumber })
	if i < len(entries) && entries[i].rng.Contains(stepNumber) {
		return entries[i].handler, true
	}
	return nil, false
}

// Execute returns the guidance for a step. An unregistered pair yields a
// *stepwise.UnknownStepError.
func (t *Table) Execute(ctx context.Context, skillType string, stepNumber int, data map[string]any) (Result, error) {
	h, ok := t.lookup(skillType, stepNumber)
	if !ok {
		return Result{}, &stepwise.UnknownStepError{SkillType: skillType, StepNumber: stepNumber}
	}
	return Serve(ctx, h, skillType, stepNumber, data)
}

// Serve runs h for one step outside any table and fills in the fields
// every Result carries.
func Serve(ctx context.Context, h Handler, skillType string, stepNumber int, data map[string]any) (Result, error) {
	res, err := h.Guide(ctx, Request{SkillType: skillType, StepNumber: stepNumber, Data: data})
	if err != nil {
		return Result{}, fmt.Errorf("guidance: %s step %d: %w", skillType, stepNumber, err)
	}
	res.SkillType, res.StepNumber = skillType, stepNumber
	if res.Recommendations == nil {
		res.Recommendations = []string{}
	}
	if res.Deliverables == nil {
		res.Deliverables = []string{}
	}
	return res, nil
}

// Ranges returns the registered ranges of a skill in step order.
func (t *Table) Ranges(skillType string) []Range {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Range, 0, len(t.skills[skillType]))
	for _, e := range t.skills[skillType] {
		out = append(out, e.rng)
	}
	return out
}

// CoverageError lists every step of every definition that has no handler.
type CoverageError struct {
	Gaps []string
}

func (e *CoverageError) Error() string {
	return "guidance: uncovered steps: " + strings.Join(e.Gaps, ", ")
}

// Is matches stepwise.ErrUnknownStep.
func (e *CoverageError) Is(target error) bool { return target == stepwise.ErrUnknownStep }

// Check verifies that every step of every given definition has a handler.
// It reports every gap in one *CoverageError.
func (t *Table) Check(defs ...*definition.Workflow) error {
	var gaps []string
	for _, def := range defs {
		for _, s := range def.Steps() {
			if _, ok := t.lookup(def.SkillType, s.Number); !ok {
				gaps = append(gaps, fmt.Sprintf("%s step %d", def.SkillType, s.Number))
			}
		}
	}
	if len(gaps) > 0 {
		return &CoverageError{Gaps: gaps}
	}
	return nil
}
