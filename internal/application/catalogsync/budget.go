package catalogsync

import (
	"context"
	"math"
	"time"
)

// Budget reports the execution time left in the current invocation.
type Budget interface {
	Remaining() time.Duration
}

// DeadlineBudget measures the time left until a fixed deadline.
type DeadlineBudget struct {
	deadline time.Time
	now      func() time.Time
}

// NewDeadlineBudget returns a budget bound to ctx's deadline. A context
// without a deadline yields an unlimited budget.
func NewDeadlineBudget(ctx context.Context, now func() time.Time) Budget {
	if now == nil {
		now = time.Now
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return UnlimitedBudget{}
	}
	return &DeadlineBudget{deadline: deadline, now: now}
}

// Remaining returns the time left, never negative.
func (b *DeadlineBudget) Remaining() time.Duration {
	left := b.deadline.Sub(b.now())
	if left < 0 {
		return 0
	}
	return left
}

// UnlimitedBudget never runs out, for local CLI runs.
type UnlimitedBudget struct{}

// Remaining returns the largest duration.
func (UnlimitedBudget) Remaining() time.Duration {
	return time.Duration(math.MaxInt64)
}

// BudgetFunc adapts a function to Budget.
type BudgetFunc func() time.Duration

// Remaining calls f.
func (f BudgetFunc) Remaining() time.Duration {
	return f()
}
