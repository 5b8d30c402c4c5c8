package catalogsync

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared"
	"go.uber.org/zap"
)

// Invocation is one delivery of a trigger to the handler.
type Invocation struct {
	// RequestID is the platform request id, the fallback idempotency token
	RequestID string
	// FunctionARN identifies the running function; it is the handoff target
	// and the failure notification subject
	FunctionARN string
	Body        []byte
	Budget      Budget
}

// HandlerConfig holds the trigger guard and escalation settings.
type HandlerConfig struct {
	TokenTTL     time.Duration
	FailureTopic string
}

// Handler guards a task against redelivered triggers and escalates run errors.
type Handler struct {
	task     Task
	tokens   shared.IdempotencyStore
	notifier integration.Notifier
	cfg      HandlerConfig
	logger   *zap.Logger
}

// NewHandler creates a new invocation handler
func NewHandler(task Task, tokens shared.IdempotencyStore, notifier integration.Notifier, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = shared.DefaultTokenTTL
	}
	return &Handler{task: task, tokens: tokens, notifier: notifier, cfg: cfg, logger: logger}
}

// Handle runs one invocation. The returned result always carries the run
// error in Err; a duplicate trigger yields OutcomeDuplicate with no error.
func (h *Handler) Handle(ctx context.Context, inv Invocation) *RunResult {
	result := &RunResult{Task: h.task.Name()}

	p, err := ParsePayload(inv.Body)
	if err != nil {
		return h.fail(ctx, inv, result, Payload{}, err)
	}
	result.Loop = p.Loop.Int()
	result.Offset = p.Offset.Int()

	token := p.IdempotencyToken
	if token == "" {
		token = inv.RequestID
	}
	result.TriggerToken = token
	if token != "" {
		claimed, err := h.tokens.MarkProcessed(ctx, token, h.cfg.TokenTTL)
		if err != nil {
			return h.fail(ctx, inv, result, p, fmt.Errorf("catalogsync: claim trigger token: %w", err))
		}
		if !claimed {
			h.logger.Info("Duplicate trigger ignored",
				zap.String("task", h.task.Name()),
				zap.String("source", p.Source),
				zap.String("token", token),
			)
			result.Outcome = OutcomeDuplicate
			return result
		}
	} else {
		h.logger.Warn("Invocation carries no idempotency token", zap.String("task", h.task.Name()))
	}

	res, err := h.task.Run(ctx, RunRequest{Payload: p, Budget: inv.Budget, Self: inv.FunctionARN})
	if res != nil {
		res.TriggerToken = result.TriggerToken
		result = res
	}
	if err != nil {
		return h.fail(ctx, inv, result, p, err)
	}
	h.logger.Info("Invocation finished", zap.String("summary", result.Summary()))
	return result
}

// fail logs and publishes a run error. A publish failure is logged only.
func (h *Handler) fail(ctx context.Context, inv Invocation, result *RunResult, p Payload, err error) *RunResult {
	result.Outcome = OutcomeFailed
	result.Err = err

	text := fmt.Sprintf("%s run failed (source=%s data_type=%s offset=%d loop=%d): %v",
		h.task.Name(), p.Source, p.DataType, result.Offset, result.Loop, err)
	h.logger.Error("Invocation failed",
		zap.String("task", h.task.Name()),
		zap.String("source", p.Source),
		zap.String("request_id", inv.RequestID),
		zap.String("code", shared.CodeOf(err)),
		zap.Error(err),
	)
	if h.notifier == nil || h.cfg.FailureTopic == "" {
		h.logger.Warn("No failure topic configured, error not escalated")
		return result
	}
	if perr := h.notifier.Publish(ctx, h.cfg.FailureTopic, inv.FunctionARN, integration.DefaultMessage(text)); perr != nil {
		h.logger.Error("Failed to publish failure notification",
			zap.String("topic", h.cfg.FailureTopic),
			zap.Error(perr),
		)
	}
	return result
}
