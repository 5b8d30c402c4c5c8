package catalogsync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/staging"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// ForwardScheduler
// ---------------------------------------------------------------------------

// ForwardScheduler pushes pending staged records to the destination and
// records each outcome on the record.
type ForwardScheduler struct {
	runner
	connector           integration.Connector
	staging             StagingProvider
	defaultAttributeSet string
}

// NewForwardScheduler creates a new forward scheduler
func NewForwardScheduler(
	connector integration.Connector,
	stagingProvider StagingProvider,
	dispatcher integration.Dispatcher,
	defaultAttributeSet string,
	logger *zap.Logger,
	opts ...Option,
) *ForwardScheduler {
	return &ForwardScheduler{
		runner:              newRunner(dispatcher, logger, opts...),
		connector:           connector,
		staging:             stagingProvider,
		defaultAttributeSet: defaultAttributeSet,
	}
}

// Name returns the task name
func (f *ForwardScheduler) Name() string {
	return TaskForward
}

// Run forwards queued records in sku order until the queue drains, the budget
// asks for a handoff, or the destination becomes unreachable.
func (f *ForwardScheduler) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	started := f.clock()
	p := req.Payload
	result := &RunResult{Task: TaskForward, Loop: p.Loop.Int()}

	res, err := f.run(ctx, p, budgetOrUnlimited(req.Budget), req, result)
	if err != nil && result.Err == nil {
		result.Outcome = OutcomeFailed
		result.Err = err
	}
	f.metrics.RecordRun(ctx, TaskForward, p.DataType, result.Outcome, f.clock().Sub(started))
	return res, err
}

func (f *ForwardScheduler) run(ctx context.Context, p Payload, budget Budget, req RunRequest, result *RunResult) (*RunResult, error) {
	if err := p.Validate(); err != nil {
		return result, err
	}
	kind, _ := p.Kind()
	log := f.logger.With(
		zap.String("task", TaskForward),
		zap.String("source", p.Source),
		zap.String("data_type", kind.String()),
	)
	log.Info("Starting forward run",
		zap.Duration("remaining", budget.Remaining()),
		zap.Int("loop", result.Loop),
	)

	session, err := f.connector.Open(ctx)
	if err != nil {
		return result, fmt.Errorf("catalogsync: open destination session: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("Failed to close destination session", zap.Error(cerr))
		}
	}()

	repo, err := f.staging.Repository(p.Table())
	if err != nil {
		return result, fmt.Errorf("catalogsync: open staging: %w", err)
	}
	filter := staging.ListFilter{Statuses: []staging.TxStatus{staging.TxStatusPending}}
	if p.RetryFailed && result.Loop == 0 {
		filter.Statuses = append(filter.Statuses, staging.TxStatusFailed)
	}
	records, err := repo.ListBySource(ctx, p.Source, filter)
	if err != nil {
		return result, fmt.Errorf("catalogsync: list staged records: %w", err)
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].SKU < records[j].SKU })
	result.Total = len(records)

	stream := NewStream(records, 0)
	var maxSpend time.Duration
	for {
		rec, ok := stream.Next()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		start := f.clock()
		outcome, err := f.forwardOne(ctx, session, repo, kind, p, rec, result)
		spend := f.clock().Sub(start)
		if spend > maxSpend {
			maxSpend = spend
		}
		result.Offset = stream.Offset()
		if err != nil {
			log.Error("Destination unreachable, aborting forward run",
				zap.String("sku", rec.SKU),
				zap.Int("offset", result.Offset),
				zap.Error(err),
			)
			return result, err
		}
		f.metrics.RecordItem(ctx, TaskForward, p.DataType, outcome, spend)
		log.Debug("Forwarded item", zap.String("sku", rec.SKU), zap.String("outcome", outcome), zap.Duration("spend", spend))

		if f.policy.ShouldHandoff(budget.Remaining(), maxSpend, result.Total-result.Offset) {
			stream.Stop()
			return f.handoff(ctx, TaskForward, req, result, func(loop int, token string) Payload {
				return p.Handoff(0, loop, token)
			})
		}
	}

	log.Info("Forward run complete",
		zap.Int("total", result.Total),
		zap.Int("forwarded", result.Forwarded),
		zap.Int("failed", result.Failed),
	)
	result.Outcome = OutcomeCompleted
	return result, nil
}

// forwardOne syncs one record. Business errors are written to the record;
// only transport and storage errors are returned.
func (f *ForwardScheduler) forwardOne(
	ctx context.Context,
	session integration.Session,
	repo staging.Repository,
	kind catalog.DataType,
	p Payload,
	rec *staging.StagedRecord,
	result *RunResult,
) (string, error) {
	destinationID, err := f.sync(ctx, session, kind, p, rec)
	if integration.IsTransportError(err) {
		return itemFailed, err
	}

	update := staging.Synced(destinationID, f.clock())
	outcome := itemForwarded
	if err != nil {
		f.logger.Warn("Destination rejected record",
			zap.String("source", rec.Source),
			zap.String("sku", rec.SKU),
			zap.Error(err),
		)
		update = staging.Failed(err, f.clock())
		outcome = itemFailed
	}
	if uerr := repo.UpdateStatus(ctx, rec.ID, update); uerr != nil {
		return outcome, fmt.Errorf("catalogsync: record outcome for %s: %w", rec.SKU, uerr)
	}
	if outcome == itemFailed {
		result.Failed++
	} else {
		result.Forwarded++
	}
	return outcome, nil
}

func (f *ForwardScheduler) sync(ctx context.Context, session integration.Session, kind catalog.DataType, p Payload, rec *staging.StagedRecord) (string, error) {
	return syncItem(ctx, session, kind, p, f.defaultAttributeSet, rec.SKU, rec.Data)
}

// syncItem sends one item to the destination. Extension kinds pass through;
// products are translated first.
func syncItem(ctx context.Context, session integration.Session, kind catalog.DataType, p Payload, defaultAttributeSet, sku string, data []byte) (string, error) {
	if kind.IsExtension() {
		return session.SyncExtension(ctx, sku, kind.String(), data)
	}
	attributeSet := p.AttributeSet
	if attributeSet == "" {
		attributeSet = defaultAttributeSet
	}
	product, err := catalog.BuildProductPayload(sku, data, p.TxMap, attributeSet)
	if err != nil {
		return "", err
	}
	return session.SyncProduct(ctx, integration.ProductRequest{
		SKU:          product.SKU,
		AttributeSet: product.AttributeSet,
		TypeID:       product.TypeID,
		StoreID:      product.StoreID,
		Data:         product.Data,
	})
}
