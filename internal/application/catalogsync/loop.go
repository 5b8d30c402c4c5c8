package catalogsync

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultMaxHandoffs bounds the self-invocation chain of one task.
	DefaultMaxHandoffs = 100
	// DefaultSpendFactor is the safety multiple of the slowest item kept in reserve.
	DefaultSpendFactor = 5
)

// ErrRunawayLoopExceeded matches every RunawayLoopError.
var ErrRunawayLoopExceeded = errors.New("catalogsync: runaway loop exceeded")

// RunawayLoopError aborts a chain whose next handoff would pass the ceiling.
type RunawayLoopError struct {
	Loop  int
	Limit int
}

func (e *RunawayLoopError) Error() string {
	return fmt.Sprintf("catalogsync: runaway loop: handoff %d exceeds limit %d", e.Loop, e.Limit)
}

// Is makes errors.Is(err, ErrRunawayLoopExceeded) true.
func (e *RunawayLoopError) Is(target error) bool {
	return target == ErrRunawayLoopExceeded
}

// HandoffPolicy decides when a run must yield to a fresh invocation.
type HandoffPolicy struct {
	MaxHandoffs int
	SpendFactor int
}

// DefaultHandoffPolicy returns the production policy.
func DefaultHandoffPolicy() HandoffPolicy {
	return HandoffPolicy{MaxHandoffs: DefaultMaxHandoffs, SpendFactor: DefaultSpendFactor}
}

func (p HandoffPolicy) withDefaults() HandoffPolicy {
	if p.MaxHandoffs <= 0 {
		p.MaxHandoffs = DefaultMaxHandoffs
	}
	if p.SpendFactor <= 0 {
		p.SpendFactor = DefaultSpendFactor
	}
	return p
}

// ShouldHandoff reports whether the remaining budget no longer covers
// SpendFactor times the slowest item while work is left.
func (p HandoffPolicy) ShouldHandoff(remaining, maxSpend time.Duration, left int) bool {
	p = p.withDefaults()
	return remaining-time.Duration(p.SpendFactor)*maxSpend <= 0 && left > 0
}

// NextLoop returns loop+1, or a RunawayLoopError when it passes the ceiling.
func (p HandoffPolicy) NextLoop(loop int) (int, error) {
	p = p.withDefaults()
	next := loop + 1
	if next > p.MaxHandoffs {
		return loop, &RunawayLoopError{Loop: next, Limit: p.MaxHandoffs}
	}
	return next, nil
}
