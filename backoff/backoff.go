// Package backoff spaces out retries: the engine's re-runs after a lost
// version race and the client's re-sent reads. Strategies are stateless
// and safe for concurrent use.
package backoff

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Strategy names accepted by New.
const (
	KindJitter   = "jitter"
	KindConstant = "constant"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial conflict.
	Delay(attempt int) time.Duration
}

// New builds the strategy named kind. For KindConstant every delay is
// initial and ceiling is ignored.
func New(kind string, initial, ceiling time.Duration) (Strategy, error) {
	if initial < 0 || ceiling < 0 {
		return nil, fmt.Errorf("backoff: negative delay %v/%v", initial, ceiling)
	}
	switch kind {
	case KindJitter, "":
		return NewJitter(initial, ceiling), nil
	case KindConstant:
		return NewConstant(initial), nil
	}
	return nil, fmt.Errorf("backoff: unknown strategy %q", kind)
}

// Constant waits the same interval before every attempt.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay implements Strategy.
func (c *Constant) Delay(int) time.Duration { return c.Interval }

// Jitter draws each delay uniformly from [0, Initial * 2^(attempt-1)],
// with the upper bound capped at Ceiling. Writers that lost the same race
// spread out instead of colliding again.
type Jitter struct {
	Initial time.Duration
	Ceiling time.Duration
}

// NewJitter creates a full-jitter exponential strategy.
func NewJitter(initial, ceiling time.Duration) *Jitter {
	return &Jitter{Initial: initial, Ceiling: ceiling}
}

// Delay implements Strategy.
func (j *Jitter) Delay(attempt int) time.Duration {
	bound := j.Initial
	for i := 1; i < attempt && bound > 0 && (j.Ceiling <= 0 || bound < j.Ceiling); i++ {
		bound *= 2
	}
	if bound <= 0 || (j.Ceiling > 0 && bound > j.Ceiling) {
		bound = j.Ceiling
	}
	if bound <= 0 {
		return 0
	}
	return rand.N(bound + 1) //nolint:gosec // jitter does not need crypto rand
}

// DefaultStrategy is the engine's default: jitter from 5ms up to 100ms.
// Version conflicts clear as soon as the competing write commits, so the
// delays stay short.
func DefaultStrategy() Strategy {
	return NewJitter(5*time.Millisecond, 100*time.Millisecond)
}

// Wait sleeps for s.Delay(attempt) or until ctx is done, whichever comes
// first. It returns ctx.Err() when the context ends the wait.
func Wait(ctx context.Context, s Strategy, attempt int) error {
	d := s.Delay(attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
