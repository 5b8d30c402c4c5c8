package telemetry

import (
	"context"
	"time"

	"github.com/erp/catalogsync/internal/application/catalogsync"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of sync metrics.
const MeterName = "github.com/erp/catalogsync"

// SyncMetrics implements catalogsync.Metrics over OpenTelemetry instruments.
type SyncMetrics struct {
	items        *Counter
	itemDuration *Histogram
	handoffs     *Counter
	handoffLoop  metric.Int64Gauge
	runs         *Counter
	runDuration  *Histogram
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	items, err := NewCounter(meter, "catalogsync.items", "Items processed by outcome", "{item}")
	if err != nil {
		return nil, err
	}
	itemDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync.item.duration",
		Description: "Per-item processing time",
		Unit:        "s",
		Boundaries:  ItemDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	handoffs, err := NewCounter(meter, "catalogsync.handoffs", "Self-invocations dispatched", "{handoff}")
	if err != nil {
		return nil, err
	}
	handoffLoop, err := meter.Int64Gauge("catalogsync.handoff.loop",
		metric.WithDescription("Loop number of the last dispatched handoff"),
		metric.WithUnit("{loop}"),
	)
	if err != nil {
		return nil, err
	}
	runs, err := NewCounter(meter, "catalogsync.runs", "Invocations by outcome", "{run}")
	if err != nil {
		return nil, err
	}
	runDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "catalogsync.run.duration",
		Description: "Invocation wall time",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &SyncMetrics{
		items:        items,
		itemDuration: itemDuration,
		handoffs:     handoffs,
		handoffLoop:  handoffLoop,
		runs:         runs,
		runDuration:  runDuration,
	}, nil
}

// RecordItem counts one processed item and its spend.
func (m *SyncMetrics) RecordItem(ctx context.Context, task, kind, outcome string, spend time.Duration) {
	attrs := []attribute.KeyValue{AttrTask.String(task), AttrDataType.String(kind), AttrOutcome.String(outcome)}
	m.items.Inc(ctx, attrs...)
	m.itemDuration.RecordDuration(ctx, spend, attrs...)
}

// RecordHandoff counts a dispatched successor invocation.
func (m *SyncMetrics) RecordHandoff(ctx context.Context, task, kind string, loop int) {
	attrs := []attribute.KeyValue{AttrTask.String(task), AttrDataType.String(kind)}
	m.handoffs.Inc(ctx, attrs...)
	m.handoffLoop.Record(ctx, int64(loop), metric.WithAttributes(attrs...))
}

// RecordRun counts a finished invocation.
func (m *SyncMetrics) RecordRun(ctx context.Context, task, kind string, outcome catalogsync.Outcome, duration time.Duration) {
	attrs := []attribute.KeyValue{AttrTask.String(task), AttrDataType.String(kind), AttrOutcome.String(outcome.String())}
	m.runs.Inc(ctx, attrs...)
	m.runDuration.RecordDuration(ctx, duration, attrs...)
}

var _ catalogsync.Metrics = (*SyncMetrics)(nil)
