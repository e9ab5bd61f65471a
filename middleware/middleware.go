// Package middleware provides composable middleware for engine operations.
// Middleware wraps operation calls synchronously and can observe or modify
// execution (recover from panics, log, add tracing, etc.).
package middleware

import (
	"context"

	"github.com/xraph/stepwise/id"
)

// Handler is the terminal function that runs the operation.
type Handler func(ctx context.Context) error

// Op identifies the engine operation being wrapped. WorkflowID and StepID
// are id.Nil when the operation does not address one.
type Op struct {
	// Name is the operation name in snake case, e.g. "complete_step".
	Name       string
	WorkflowID id.WorkflowID
	StepID     id.StepID
	SkillType  string
	OwnerID    string
}

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the operation being run, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, op Op, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, tracing) executes as:
//
//	logging → recover → tracing → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, op Op, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, op, prev)
			}
		}
		return h(ctx)
	}
}

// attrs returns the identifying log attributes of op.
func (op Op) attrs() []any {
	out := []any{"op", op.Name}
	if !op.WorkflowID.IsNil() {
		out = append(out, "workflow_id", op.WorkflowID.String())
	}
	if !op.StepID.IsNil() {
		out = append(out, "step_id", op.StepID.String())
	}
	if op.SkillType != "" {
		out = append(out, "skill_type", op.SkillType)
	}
	return out
}
