package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var epoch = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestGormLogger(level gormlogger.LogLevel, elapsed time.Duration, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	gl := NewGormLogger(zap.New(core), level, opts...)
	gl.now = func() time.Time { return epoch.Add(elapsed) }
	return gl, recorded
}

func sqlFn() (string, int64) {
	return `SELECT * FROM "staged_records" WHERE source = 'feed'`, 3
}

func TestGormLogger_Options(t *testing.T) {
	gl, _ := newTestGormLogger(gormlogger.Info, 0, WithSlowThreshold(time.Second), WithIgnoreRecordNotFoundError(false))
	assert.Equal(t, time.Second, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)

	warn, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, warn.logLevel)
	assert.Equal(t, gormlogger.Info, gl.logLevel)
}

func TestGormLogger_Trace(t *testing.T) {
	ctx, _ := WithRequestID(context.Background(), zap.NewNop(), "req-9")

	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		elapsed   time.Duration
		err       error
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{"query at info", gormlogger.Info, time.Millisecond, nil, "SQL query", zapcore.DebugLevel},
		{"slow query", gormlogger.Warn, time.Second, nil, "Slow SQL", zapcore.WarnLevel},
		{"error", gormlogger.Error, time.Millisecond, errors.New("duplicate key"), "SQL error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gl, recorded := newTestGormLogger(tt.level, tt.elapsed)
			gl.Trace(ctx, epoch, sqlFn, tt.err)

			entries := recorded.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantMsg, entries[0].Message)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
			assert.Equal(t, "req-9", entries[0].ContextMap()["request_id"])
			assert.Equal(t, int64(3), entries[0].ContextMap()["rows"])
		})
	}
}

func TestGormLogger_TraceSkips(t *testing.T) {
	t.Run("silent", func(t *testing.T) {
		gl, recorded := newTestGormLogger(gormlogger.Silent, time.Second)
		gl.Trace(context.Background(), epoch, sqlFn, errors.New("boom"))
		assert.Zero(t, recorded.Len())
	})

	t.Run("record not found ignored", func(t *testing.T) {
		gl, recorded := newTestGormLogger(gormlogger.Error, 0)
		gl.Trace(context.Background(), epoch, sqlFn, gormlogger.ErrRecordNotFound)
		assert.Zero(t, recorded.Len())
	})

	t.Run("fast query at warn", func(t *testing.T) {
		gl, recorded := newTestGormLogger(gormlogger.Warn, time.Millisecond)
		gl.Trace(context.Background(), epoch, sqlFn, nil)
		assert.Zero(t, recorded.Len())
	})
}

func TestGormLogger_Messages(t *testing.T) {
	gl, recorded := newTestGormLogger(gormlogger.Warn, 0)
	gl.Info(context.Background(), "migrated %d tables", 2)
	gl.Warn(context.Background(), "pool %s", "saturated")
	gl.Error(context.Background(), "lost %s", "connection")

	require.Equal(t, 2, recorded.Len())
	assert.Equal(t, "pool saturated", recorded.All()[0].Message)
	assert.Equal(t, "lost connection", recorded.All()[1].Message)
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}
