package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/erp/catalogsync/internal/application/catalogsync"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/awsclient"
	"github.com/erp/catalogsync/internal/infrastructure/cache"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/connector"
	"github.com/erp/catalogsync/internal/infrastructure/feed"
	"github.com/erp/catalogsync/internal/infrastructure/invocation"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/notification"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/erp/catalogsync/internal/infrastructure/secrets"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// shutdownTimeout bounds telemetry flushing on exit.
const shutdownTimeout = 5 * time.Second

// ErrUnknownTask is returned for a task name outside stage, forward and push.
var ErrUnknownTask = errors.New("app: unknown task")

// deps builds adapters on first use so that a command opens only what it
// needs. It is not safe for concurrent use.
type deps struct {
	cfg       *config.Config
	logger    *zap.Logger
	providers *telemetry.Providers

	awsCfg   *aws.Config
	endpoint *string
	db       *persistence.Database
	tokens   shared.IdempotencyStore

	closeOnce sync.Once
	closeErr  error
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config, providers *telemetry.Providers) (*zap.Logger, error) {
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if providers == nil || !providers.Logs.IsEnabled() {
		return logger.New(logCfg)
	}
	return logger.New(logCfg, providers.LogCore(logger.ParseLevel(cfg.Log.Level)))
}

// newDeps starts telemetry and the logger.
func newDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	bootstrap, err := newLogger(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	providers, err := telemetry.Setup(ctx, cfg.Telemetry, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	log, err := newLogger(cfg, providers)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env))
	return &deps{cfg: cfg, logger: log, providers: providers}, nil
}

func (d *deps) aws(ctx context.Context) (aws.Config, *string, error) {
	if d.awsCfg != nil {
		return *d.awsCfg, d.endpoint, nil
	}
	endpoint, err := awsclient.Endpoint(d.cfg.AWS)
	if err != nil {
		return aws.Config{}, nil, err
	}
	awsCfg, err := awsclient.Load(ctx, d.cfg.AWS)
	if err != nil {
		return aws.Config{}, nil, err
	}
	d.awsCfg, d.endpoint = &awsCfg, endpoint
	return awsCfg, endpoint, nil
}

func (d *deps) database() (*persistence.Database, error) {
	if d.db != nil {
		return d.db, nil
	}
	db, err := persistence.NewDatabase(&d.cfg.Database,
		persistence.WithGormLogger(logger.NewGormLogger(d.logger, logger.MapGormLogLevel(d.cfg.Log.Level))),
		persistence.WithPlugins(d.providers.DBPlugin()),
	)
	if err != nil {
		return nil, err
	}
	d.db = db
	return db, nil
}

// idempotencyStore returns the trigger token store the configuration names.
func (d *deps) idempotencyStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if d.tokens != nil {
		return d.tokens, nil
	}
	opts := []cache.IdempotencyStoreFactoryOption{cache.WithLogger(d.logger)}
	if d.cfg.Idempotency.Backend == cache.BackendDatabase {
		db, err := d.database()
		if err != nil {
			return nil, err
		}
		opts = append(opts, cache.WithDatabaseStore(persistence.NewGormInvocationTokenStore(db.DB)))
	}
	store, err := cache.NewIdempotencyStoreFactory(d.cfg.Idempotency, d.cfg.Redis, opts...).CreateStore(ctx)
	if err != nil {
		return nil, err
	}
	d.tokens = store
	return store, nil
}

func (d *deps) feedSource(ctx context.Context) (*feed.Source, error) {
	awsCfg, endpoint, err := d.aws(ctx)
	if err != nil {
		return nil, err
	}
	urls := feed.NewHTTPSource(d.cfg.Feed.HTTPTimeout, d.logger, feed.WithUserAgent(d.cfg.Feed.UserAgent))
	objects := feed.NewS3Source(feed.NewS3Client(awsCfg, endpoint), d.logger)
	return feed.NewSource(urls, objects, d.logger), nil
}

func (d *deps) connector(ctx context.Context) (*connector.Connector, error) {
	awsCfg, endpoint, err := d.aws(ctx)
	if err != nil {
		return nil, err
	}
	getter := secrets.NewFromConfig(awsCfg, endpoint, secrets.WithLogger(d.logger))
	return connector.New(d.cfg.Connector, getter, d.logger)
}

func (d *deps) dispatcher(ctx context.Context) (*invocation.LambdaDispatcher, error) {
	awsCfg, endpoint, err := d.aws(ctx)
	if err != nil {
		return nil, err
	}
	return invocation.NewLambdaDispatcher(invocation.NewLambdaClient(awsCfg, endpoint), d.logger), nil
}

func (d *deps) notifier(ctx context.Context) (*notification.SNSNotifier, error) {
	awsCfg, endpoint, err := d.aws(ctx)
	if err != nil {
		return nil, err
	}
	return notification.NewSNSNotifier(notification.NewSNSClient(awsCfg, endpoint), d.logger), nil
}

func (d *deps) schedulerOptions() ([]catalogsync.Option, error) {
	metrics, err := d.providers.SyncMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}
	return []catalogsync.Option{
		catalogsync.WithPolicy(catalogsync.HandoffPolicy{
			MaxHandoffs: d.cfg.Sync.MaxHandoffs,
			SpendFactor: d.cfg.Sync.SpendFactor,
		}),
		catalogsync.WithMetrics(metrics),
		catalogsync.WithDefaultCharset(d.cfg.Sync.DefaultDecode),
	}, nil
}

// task builds the named task wrapped in a tracing span.
func (d *deps) task(ctx context.Context, name string) (catalogsync.Task, error) {
	opts, err := d.schedulerOptions()
	if err != nil {
		return nil, err
	}

	var task catalogsync.Task
	switch name {
	case catalogsync.TaskStage, catalogsync.TaskForward:
		db, err := d.database()
		if err != nil {
			return nil, err
		}
		dispatcher, err := d.dispatcher(ctx)
		if err != nil {
			return nil, err
		}
		provider := persistence.NewStagingProvider(db.DB)
		if name == catalogsync.TaskStage {
			source, err := d.feedSource(ctx)
			if err != nil {
				return nil, err
			}
			task = catalogsync.NewStageScheduler(source, provider, dispatcher, d.cfg.Sync.ForwardTarget, d.logger, opts...)
			break
		}
		conn, err := d.connector(ctx)
		if err != nil {
			return nil, err
		}
		task = catalogsync.NewForwardScheduler(conn, provider, dispatcher, d.cfg.Sync.DefaultAttributeSet, d.logger, opts...)
	case catalogsync.TaskPush:
		source, err := d.feedSource(ctx)
		if err != nil {
			return nil, err
		}
		conn, err := d.connector(ctx)
		if err != nil {
			return nil, err
		}
		task = catalogsync.NewPusher(source, conn, d.cfg.Sync.DefaultAttributeSet, d.logger, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	return telemetry.TraceTask(task), nil
}

// handler builds the guarded invocation handler for a staged task.
func (d *deps) handler(ctx context.Context, name string) (*catalogsync.Handler, error) {
	task, err := d.task(ctx, name)
	if err != nil {
		return nil, err
	}
	tokens, err := d.idempotencyStore(ctx)
	if err != nil {
		return nil, err
	}
	notifier, err := d.notifier(ctx)
	if err != nil {
		return nil, err
	}
	return catalogsync.NewHandler(task, tokens, notifier, catalogsync.HandlerConfig{
		TokenTTL:     d.cfg.Idempotency.TTL,
		FailureTopic: d.cfg.Sync.FailureTopic,
	}, d.logger), nil
}

// Close releases every opened adapter and flushes telemetry. Only the first
// call does any work; later calls return its error.
func (d *deps) Close() error {
	d.closeOnce.Do(func() { d.closeErr = d.close() })
	return d.closeErr
}

func (d *deps) close() error {
	var errs []error
	if d.tokens != nil {
		errs = append(errs, d.tokens.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	errs = append(errs, d.providers.Shutdown(ctx))
	_ = logger.Sync(d.logger)
	return errors.Join(errs...)
}
