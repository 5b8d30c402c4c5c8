package catalogsync

import (
	"context"
	"fmt"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/erp/catalogsync/internal/domain/integration"
	"go.uber.org/zap"
)

// TaskPush is the one-shot feed to destination sync without staging.
const TaskPush = "push"

// Pusher sends every feed candidate straight to the destination in one
// pass. It keeps no staging state, so unchanged items are sent again.
type Pusher struct {
	runner
	feed                FeedSource
	connector           integration.Connector
	defaultAttributeSet string
}

// NewPusher creates a new pusher
func NewPusher(feed FeedSource, connector integration.Connector, defaultAttributeSet string, logger *zap.Logger, opts ...Option) *Pusher {
	return &Pusher{
		runner:              newRunner(nil, logger, opts...),
		feed:                feed,
		connector:           connector,
		defaultAttributeSet: defaultAttributeSet,
	}
}

// Name returns the task name
func (s *Pusher) Name() string {
	return TaskPush
}

// Run pushes candidates from the payload offset to the end of the feed. The
// budget is ignored. Rejected items are counted and logged; an unreachable
// destination aborts the run.
func (s *Pusher) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	started := s.clock()
	p := req.Payload
	result := &RunResult{Task: TaskPush, Offset: p.Offset.Int()}

	err := s.run(ctx, p, result)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = err
	} else {
		result.Outcome = OutcomeCompleted
	}
	s.metrics.RecordRun(ctx, TaskPush, p.DataType, result.Outcome, s.clock().Sub(started))
	return result, err
}

func (s *Pusher) run(ctx context.Context, p Payload, result *RunResult) error {
	if err := p.Validate(); err != nil {
		return err
	}
	kind, _ := p.Kind()
	log := s.logger.With(
		zap.String("task", TaskPush),
		zap.String("source", p.Source),
		zap.String("data_type", kind.String()),
	)

	loc, err := s.feedLocation(p)
	if err != nil {
		return err
	}
	rows, err := s.feed.Fetch(ctx, loc)
	if err != nil {
		return fmt.Errorf("catalogsync: fetch feed: %w", err)
	}
	candidates, err := catalog.Normalize(kind, catalog.Ingest(kind, rows), catalog.NormalizeOptions{
		AttributeSchema: p.AttributeSchema(),
	})
	if err != nil {
		return fmt.Errorf("catalogsync: normalize feed: %w", err)
	}
	catalog.SortBySKU(candidates)
	result.Total = len(candidates)
	log.Info("Starting push run", zap.Int("total", result.Total), zap.Int("offset", result.Offset))

	session, err := s.connector.Open(ctx)
	if err != nil {
		return fmt.Errorf("catalogsync: open destination session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("Failed to close destination session", zap.Error(cerr))
		}
	}()

	stream := NewStream(candidates, result.Offset)
	for {
		c, ok := stream.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		start := s.clock()
		outcome := itemForwarded
		data, err := c.Payload()
		if err == nil {
			_, err = syncItem(ctx, session, kind, p, s.defaultAttributeSet, c.SKU, data)
		}
		result.Offset = stream.Offset()
		if integration.IsTransportError(err) {
			return fmt.Errorf("catalogsync: push %s: %w", c.SKU, err)
		}
		if err != nil {
			log.Warn("Destination rejected item", zap.String("sku", c.SKU), zap.Error(err))
			outcome = itemFailed
			result.Failed++
		} else {
			result.Forwarded++
		}
		s.metrics.RecordItem(ctx, TaskPush, p.DataType, outcome, s.clock().Sub(start))
	}

	log.Info("Push run complete",
		zap.Int("total", result.Total),
		zap.Int("forwarded", result.Forwarded),
		zap.Int("failed", result.Failed),
	)
	return nil
}
