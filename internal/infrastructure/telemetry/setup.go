package telemetry

import (
	"context"
	"errors"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

// Providers bundles the signal providers of one process.
type Providers struct {
	Tracer *TracerProvider
	Meter  *MeterProvider
	Logs   *LoggerProvider
	cfg    config.TelemetryConfig
	logger *zap.Logger
}

// Setup initializes tracing, metrics and log export from cfg. Disabled
// signals fall back to no-op providers.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tp, err := NewTracerProvider(ctx, Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		return nil, err
	}
	mp, err := NewMeterProvider(ctx, MetricsConfig{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	lp, err := NewLoggerProvider(ctx, LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	return &Providers{Tracer: tp, Meter: mp, Logs: lp, cfg: cfg, logger: logger}, nil
}

// SyncMetrics returns the scheduler metrics sink.
func (p *Providers) SyncMetrics() (*SyncMetrics, error) {
	return NewSyncMetrics(p.Meter.Meter(MeterName))
}

// DBPlugin returns the staging database tracing plugin.
func (p *Providers) DBPlugin() gorm.Plugin {
	return NewDBTracingPlugin(DBTracingConfig{
		Enabled:         p.cfg.Enabled && p.cfg.DBTraceEnabled,
		LogFullSQL:      p.cfg.DBLogFullSQL,
		SlowQueryThresh: p.cfg.DBSlowQueryThresh,
	}, p.logger)
}

// LogCore returns the zap core exporting entries at level and above.
func (p *Providers) LogCore(level zapcore.Level) zapcore.Core {
	return NewZapOTELCore(ZapBridgeConfig{
		ServiceName:    p.cfg.ServiceName,
		LoggerProvider: p.Logs,
		Level:          level,
	})
}

// ForceFlush exports everything buffered so far. Function runtimes call it
// before the instance is frozen between invocations.
func (p *Providers) ForceFlush(ctx context.Context) error {
	return errors.Join(
		p.Tracer.ForceFlush(ctx),
		p.Meter.ForceFlush(ctx),
		p.Logs.ForceFlush(ctx),
	)
}

// Shutdown flushes and stops every provider.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Tracer.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Logs.Shutdown(ctx),
	)
}
