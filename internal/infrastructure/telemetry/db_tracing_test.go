package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type tracedRecord struct {
	ID  uint   `gorm:"primaryKey"`
	SKU string `gorm:"size:64"`
}

func setupTracedDB(t *testing.T, plugin gorm.Plugin) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRecord{}))
	if plugin != nil {
		require.NoError(t, db.Use(plugin))
	}
	return db
}

func TestNewDBTracingPlugin_Defaults(t *testing.T) {
	p := NewDBTracingPlugin(DBTracingConfig{}, nil)
	assert.Equal(t, 200*time.Millisecond, p.config.SlowQueryThresh)
	assert.Equal(t, "postgresql", p.config.DBSystem)
	assert.Equal(t, "catalogsync:db_tracing", p.Name())
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	recorder := withSpanRecorder(t)
	db := setupTracedDB(t, NewDBTracingPlugin(DBTracingConfig{}, nil))

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedRecord{SKU: "A1"}).Error)
	assert.Empty(t, recorder.Ended())
}

func TestDBTracingPlugin_Enabled(t *testing.T) {
	recorder := withSpanRecorder(t)
	db := setupTracedDB(t, NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, nil))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&tracedRecord{SKU: "A1"}).Error)
	var rec tracedRecord
	require.NoError(t, db.WithContext(ctx).First(&rec, "sku = ?", "A1").Error)

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	var sawTable bool
	for _, s := range spans {
		if v, ok := spanAttr(s, attribute.Key("db.sql.table")); ok && v.AsString() == "traced_records" {
			sawTable = true
		}
	}
	assert.True(t, sawTable)
}

func TestDBTracingPlugin_SlowQuery(t *testing.T) {
	recorder := withSpanRecorder(t)
	p := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Second}, nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	p.now = func() time.Time {
		calls++
		// each statement reads the clock twice: before and after
		if calls%2 == 0 {
			return base.Add(2 * time.Second)
		}
		return base
	}
	db := setupTracedDB(t, p)

	require.NoError(t, db.WithContext(context.Background()).Create(&tracedRecord{SKU: "S1"}).Error)

	var slow bool
	for _, s := range recorder.Ended() {
		if v, ok := spanAttr(s, attribute.Key("db.slow_query")); ok && v.AsBool() {
			slow = true
		}
	}
	assert.True(t, slow)
}
