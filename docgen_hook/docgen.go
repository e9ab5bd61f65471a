// Package docgenhook requests document generation when a step completes.
// Each step definition may name deliverables ("business_model_canvas",
// "rollback_plan"); after the step is committed the hook hands those names,
// the submitted step data and the accumulated workflow data to a Generator.
//
// Steps without deliverables are ignored. Generation runs after the commit
// and its failures never undo the completion.
package docgenhook

import (
	"context"
	"log/slog"

	"github.com/xraph/stepwise/ext"
	"github.com/xraph/stepwise/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.StepCompleted = (*Extension)(nil)
)

// Request describes the documents to produce for one completed step.
type Request struct {
	WorkflowID   string
	OwnerID      string
	SkillType    string
	StepNumber   int
	StepName     string
	Deliverables []string
	StepData     workflow.Values
	WorkflowData workflow.Values
}

// Generator produces deliverable documents.
type Generator interface {
	Generate(ctx context.Context, req *Request) error
}

// GeneratorFunc is an adapter to use a plain function as a Generator.
type GeneratorFunc func(ctx context.Context, req *Request) error

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, req *Request) error { return f(ctx, req) }

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used for generation failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithSkills limits generation to the given skill types. With no skills
// configured every skill is handled.
func WithSkills(skillTypes ...string) Option {
	return func(e *Extension) {
		e.skills = make(map[string]bool, len(skillTypes))
		for _, s := range skillTypes {
			e.skills[s] = true
		}
	}
}

// Extension forwards completed steps with deliverables to a Generator.
type Extension struct {
	gen    Generator
	skills map[string]bool
	logger *slog.Logger
}

// New creates an Extension backed by gen.
func New(gen Generator, opts ...Option) *Extension {
	e := &Extension{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "docgen-hook" }

// OnStepCompleted implements ext.StepCompleted.
func (e *Extension) OnStepCompleted(ctx context.Context, wf *workflow.Instance, s *workflow.Step) error {
	if len(e.skills) > 0 && !e.skills[wf.SkillType] {
		return nil
	}
	if wf.Definition == nil {
		return nil
	}
	def, ok := wf.Definition.Step(s.StepNumber)
	if !ok || len(def.Deliverables) == 0 {
		return nil
	}

	req := &Request{
		WorkflowID:   wf.ID.String(),
		OwnerID:      wf.OwnerID,
		SkillType:    wf.SkillType,
		StepNumber:   s.StepNumber,
		StepName:     s.Name,
		Deliverables: append([]string(nil), def.Deliverables...),
		StepData:     s.Data.Clone(),
		WorkflowData: wf.Data.Clone(),
	}
	if err := e.gen.Generate(ctx, req); err != nil {
		e.logger.Warn("docgen: generation failed",
			slog.String("workflow_id", req.WorkflowID),
			slog.Int("step_number", req.StepNumber),
			slog.Any("deliverables", req.Deliverables),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
