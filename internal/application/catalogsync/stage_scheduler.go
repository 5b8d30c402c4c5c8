package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/staging"
	"go.uber.org/zap"
)

// ErrForwardTargetMissing is returned when staging finishes with nowhere to forward.
var ErrForwardTargetMissing = errors.New("catalogsync: forward target is not configured")

// Item outcomes recorded by the schedulers.
const (
	itemStaged    = "staged"
	itemUnchanged = "unchanged"
	itemForwarded = "forwarded"
	itemFailed    = "failed"
)

// ---------------------------------------------------------------------------
// StageScheduler
// ---------------------------------------------------------------------------

// StageScheduler moves feed rows into staging, writing only changed payloads,
// and hands off to itself when the budget runs low.
type StageScheduler struct {
	runner
	feed          FeedSource
	staging       StagingProvider
	forwardTarget string
}

// NewStageScheduler creates a new stage scheduler
func NewStageScheduler(
	feed FeedSource,
	stagingProvider StagingProvider,
	dispatcher integration.Dispatcher,
	forwardTarget string,
	logger *zap.Logger,
	opts ...Option,
) *StageScheduler {
	return &StageScheduler{
		runner:        newRunner(dispatcher, logger, opts...),
		feed:          feed,
		staging:       stagingProvider,
		forwardTarget: forwardTarget,
	}
}

// Name returns the task name
func (s *StageScheduler) Name() string {
	return TaskStage
}

// Run stages candidates from the payload offset until the feed is exhausted
// or the budget asks for a handoff.
func (s *StageScheduler) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	started := s.clock()
	p := req.Payload
	budget := budgetOrUnlimited(req.Budget)
	result := &RunResult{Task: TaskStage, Offset: p.Offset.Int(), Loop: p.Loop.Int()}

	res, err := s.run(ctx, p, budget, req, result)
	if err != nil && result.Err == nil {
		result.Outcome = OutcomeFailed
		result.Err = err
	}
	s.metrics.RecordRun(ctx, TaskStage, p.DataType, result.Outcome, s.clock().Sub(started))
	return res, err
}

func (s *StageScheduler) run(ctx context.Context, p Payload, budget Budget, req RunRequest, result *RunResult) (*RunResult, error) {
	if err := p.Validate(); err != nil {
		return result, err
	}
	kind, _ := p.Kind()
	log := s.logger.With(
		zap.String("task", TaskStage),
		zap.String("source", p.Source),
		zap.String("data_type", kind.String()),
	)
	log.Info("Starting stage run",
		zap.Duration("remaining", budget.Remaining()),
		zap.Int("loop", result.Loop),
		zap.Int("offset", result.Offset),
	)

	if result.Offset > 0 && p.TimeInterval > 0 {
		if err := s.sleep(ctx, time.Duration(p.TimeInterval)*time.Second); err != nil {
			return result, fmt.Errorf("catalogsync: resume pacing: %w", err)
		}
	}

	loc, err := s.feedLocation(p)
	if err != nil {
		return result, err
	}
	rows, err := s.feed.Fetch(ctx, loc)
	if err != nil {
		return result, fmt.Errorf("catalogsync: fetch feed: %w", err)
	}
	candidates, err := catalog.Normalize(kind, catalog.Ingest(kind, rows), catalog.NormalizeOptions{
		AttributeSchema: p.AttributeSchema(),
	})
	if err != nil {
		return result, fmt.Errorf("catalogsync: normalize feed: %w", err)
	}
	catalog.SortBySKU(candidates)
	result.Total = len(candidates)

	repo, err := s.staging.Repository(p.Table())
	if err != nil {
		return result, fmt.Errorf("catalogsync: open staging: %w", err)
	}
	existing, err := repo.ListBySource(ctx, p.Source, staging.ListFilter{})
	if err != nil {
		return result, fmt.Errorf("catalogsync: load staged records: %w", err)
	}
	index := indexBySKU(existing)

	stream := NewStream(candidates, result.Offset)
	var maxSpend time.Duration
	for {
		c, ok := stream.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := s.clock()
		outcome := s.stageOne(ctx, repo, kind, p.Source, c, index[c.SKU], result)
		spend := s.clock().Sub(start)
		if spend > maxSpend {
			maxSpend = spend
		}
		s.metrics.RecordItem(ctx, TaskStage, p.DataType, outcome, spend)
		log.Debug("Staged item", zap.String("sku", c.SKU), zap.String("outcome", outcome), zap.Duration("spend", spend))

		result.Offset = stream.Offset()
		if s.policy.ShouldHandoff(budget.Remaining(), maxSpend, result.Total-result.Offset) {
			stream.Stop()
			return s.handoff(ctx, TaskStage, req, result, func(loop int, token string) Payload {
				return p.Handoff(result.Offset, loop, token)
			})
		}
	}

	return s.triggerForward(ctx, p, result, log)
}

// stageOne writes a candidate when it differs from the staged copy. A failed
// write leaves a failure marker behind and never stops the run.
func (s *StageScheduler) stageOne(
	ctx context.Context,
	repo staging.Repository,
	kind catalog.DataType,
	source string,
	c catalog.Candidate,
	prev *staging.StagedRecord,
	result *RunResult,
) string {
	now := s.clock()
	payload, err := c.Payload()
	if err == nil {
		var stored []byte
		if prev != nil {
			stored = prev.Data
		}
		if !catalog.NeedsRestage(kind, stored, payload) {
			result.Unchanged++
			return itemUnchanged
		}
		var record *staging.StagedRecord
		record, err = prev.Restage(source, c.SKU, payload, now)
		if err == nil {
			err = repo.Put(ctx, record)
		}
	}
	if err == nil {
		result.Staged++
		return itemStaged
	}

	s.logger.Warn("Failed to stage item",
		zap.String("source", source),
		zap.String("sku", c.SKU),
		zap.Error(err),
	)
	marker := prev.FailureMarker(source, c.SKU, err, now)
	if perr := repo.Put(ctx, marker); perr != nil {
		s.logger.Error("Failed to write failure marker",
			zap.String("source", source),
			zap.String("sku", c.SKU),
			zap.Error(perr),
		)
	}
	result.Failed++
	return itemFailed
}

func (s *StageScheduler) triggerForward(ctx context.Context, p Payload, result *RunResult, log *zap.Logger) (*RunResult, error) {
	if s.forwardTarget == "" {
		return result, ErrForwardTargetMissing
	}
	token := s.newToken()
	if err := s.dispatch(ctx, s.forwardTarget, p.ForwardTrigger(token)); err != nil {
		return result, err
	}
	log.Info("Staging complete, forward triggered",
		zap.Int("offset", result.Offset),
		zap.Int("total", result.Total),
		zap.Int("staged", result.Staged),
		zap.Int("failed", result.Failed),
		zap.String("forward_target", s.forwardTarget),
	)
	result.Outcome = OutcomeForwardTriggered
	result.NextToken = token
	return result, nil
}

// indexBySKU keys records by sku; the first record seen for a sku wins.
func indexBySKU(records []*staging.StagedRecord) map[string]*staging.StagedRecord {
	index := make(map[string]*staging.StagedRecord, len(records))
	for _, r := range records {
		if _, ok := index[r.SKU]; !ok {
			index[r.SKU] = r
		}
	}
	return index
}
