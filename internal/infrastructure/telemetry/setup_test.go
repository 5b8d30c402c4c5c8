package telemetry

import (
	"context"
	"testing"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestSetup_Disabled(t *testing.T) {
	ctx := context.Background()
	p, err := Setup(ctx, config.TelemetryConfig{ServiceName: "catalogsync-test"}, nil)
	require.NoError(t, err)

	assert.False(t, p.Tracer.IsEnabled())
	assert.False(t, p.Meter.IsEnabled())
	assert.False(t, p.Logs.IsEnabled())

	m, err := p.SyncMetrics()
	require.NoError(t, err)
	m.RecordHandoff(ctx, "stage", "products", 1)

	assert.Equal(t, "catalogsync:db_tracing", p.DBPlugin().Name())
	assert.False(t, p.LogCore(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, p.ForceFlush(ctx))
	assert.NoError(t, p.Shutdown(ctx))
}
