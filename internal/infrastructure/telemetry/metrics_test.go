package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{ServiceName: "test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestMeterProviderWithReader(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	mp := telemetry.NewMeterProviderWithReader(reader, nil)
	assert.True(t, mp.IsEnabled())

	counter, err := telemetry.NewCounter(mp.Meter("test"), "test.count", "count", "{x}")
	require.NoError(t, err)
	counter.Inc(ctx, telemetry.AttrTask.String("stage"))
	counter.Inc(ctx, telemetry.AttrTask.String("stage"))

	hist, err := telemetry.NewHistogram(mp.Meter("test"), telemetry.HistogramOpts{
		Name: "test.duration", Unit: "s", Boundaries: telemetry.ItemDurationBuckets,
	})
	require.NoError(t, err)
	hist.RecordDuration(ctx, 250*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sum := findMetric(t, rm, "test.count").Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)

	h := findMetric(t, rm, "test.duration").Data.(metricdata.Histogram[float64])
	require.Len(t, h.DataPoints, 1)
	assert.InDelta(t, 0.25, h.DataPoints[0].Sum, 1e-9)

	assert.NoError(t, mp.Shutdown(ctx))
}

func findMetric(t *testing.T, rm metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return metricdata.Metrics{}
}
