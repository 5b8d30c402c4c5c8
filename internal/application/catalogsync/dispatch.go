package catalogsync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/erp/catalogsync/internal/domain/integration"
	"go.uber.org/zap"
)

// dispatch fires the payload at target as an event invocation.
func (r *runner) dispatch(ctx context.Context, target string, p Payload) error {
	if target == "" {
		return integration.ErrInvalidTarget
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("catalogsync: encode payload: %w", err)
	}
	if _, err := r.dispatcher.Invoke(ctx, target, body, integration.InvocationModeEvent); err != nil {
		return fmt.Errorf("catalogsync: dispatch to %s: %w", target, err)
	}
	return nil
}

// handoff dispatches the successor of a run to self, enforcing the loop ceiling.
func (r *runner) handoff(ctx context.Context, task string, req RunRequest, result *RunResult, next func(loop int, token string) Payload) (*RunResult, error) {
	p := req.Payload
	loop, err := r.policy.NextLoop(p.Loop.Int())
	if err != nil {
		r.logger.Error("Handoff ceiling reached, aborting chain",
			zap.String("task", task),
			zap.String("source", p.Source),
			zap.Int("loop", p.Loop.Int()),
			zap.Int("offset", result.Offset),
			zap.Int("total", result.Total),
		)
		result.Outcome = OutcomeFailed
		result.Err = err
		return result, err
	}

	token := r.newToken()
	if err := r.dispatch(ctx, req.Self, next(loop, token)); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
		return result, err
	}

	r.metrics.RecordHandoff(ctx, task, p.DataType, loop)
	r.logger.Info("Handed off to next invocation",
		zap.String("task", task),
		zap.String("source", p.Source),
		zap.Int("offset", result.Offset),
		zap.Int("total", result.Total),
		zap.Int("next_loop", loop),
		zap.String("token", token),
	)
	result.Outcome = OutcomeHandedOff
	result.NextToken = token
	return result, nil
}
