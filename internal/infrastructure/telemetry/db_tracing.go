package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for staging database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans, development only
	SlowQueryThresh time.Duration // default: 200ms
	DBSystem        string        // default: "postgresql"
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin is a gorm.Plugin that installs otelgorm and annotates each
// statement span with the table, rows affected and a slow-query flag.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewDBTracingPlugin creates the plugin. Zero fields take defaults.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	def := DefaultDBTracingConfig()
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = def.SlowQueryThresh
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = def.DBSystem
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger, now: time.Now}
}

// Name implements gorm.Plugin.
func (p *DBTracingPlugin) Name() string {
	return "catalogsync:db_tracing"
}

// Initialize implements gorm.Plugin. It is a no-op when tracing is disabled.
func (p *DBTracingPlugin) Initialize(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

type queryStartKey struct{}

// otelAfter names the otelgorm callback that ends the statement span.
func otelAfter(op string) string {
	if op == "query" {
		op = "select"
	}
	return "otel:after:" + op
}

func (p *DBTracingPlugin) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, p.now())
	}
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	type hook struct {
		name   string
		before func(string) error
		after  func(string) error
	}
	hooks := []hook{
		{"create",
			func(n string) error { return cb.Create().Before("gorm:create").Register(n, p.before) },
			func(n string) error {
				return cb.Create().After("gorm:create").Before(otelAfter("create")).Register(n, p.after)
			}},
		{"query",
			func(n string) error { return cb.Query().Before("gorm:query").Register(n, p.before) },
			func(n string) error {
				return cb.Query().After("gorm:query").Before(otelAfter("query")).Register(n, p.after)
			}},
		{"update",
			func(n string) error { return cb.Update().Before("gorm:update").Register(n, p.before) },
			func(n string) error {
				return cb.Update().After("gorm:update").Before(otelAfter("update")).Register(n, p.after)
			}},
		{"delete",
			func(n string) error { return cb.Delete().Before("gorm:delete").Register(n, p.before) },
			func(n string) error {
				return cb.Delete().After("gorm:delete").Before(otelAfter("delete")).Register(n, p.after)
			}},
		{"row",
			func(n string) error { return cb.Row().Before("gorm:row").Register(n, p.before) },
			func(n string) error { return cb.Row().After("gorm:row").Before(otelAfter("row")).Register(n, p.after) }},
		{"raw",
			func(n string) error { return cb.Raw().Before("gorm:raw").Register(n, p.before) },
			func(n string) error { return cb.Raw().After("gorm:raw").Before(otelAfter("raw")).Register(n, p.after) }},
	}
	for _, h := range hooks {
		if err := h.before("catalogsync_timing:before_" + h.name); err != nil {
			return err
		}
		if err := h.after("catalogsync_timing:after_" + h.name); err != nil {
			return err
		}
	}
	return nil
}

// after annotates the statement span opened by otelgorm.
func (p *DBTracingPlugin) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if start, ok := ctx.Value(queryStartKey{}).(time.Time); ok {
		elapsed := p.now().Sub(start)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

var _ gorm.Plugin = (*DBTracingPlugin)(nil)
