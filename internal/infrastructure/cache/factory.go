package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Idempotency backends
const (
	BackendRedis    = "redis"
	BackendDatabase = "database"
	BackendMemory   = "memory"
)

var (
	// ErrUnknownBackend is returned for a backend name outside BackendRedis, BackendDatabase, BackendMemory
	ErrUnknownBackend = errors.New("cache: unknown idempotency backend")
	// ErrDatabaseStoreMissing is returned when the database backend is selected without a store
	ErrDatabaseStoreMissing = errors.New("cache: database idempotency store not provided")
)

// IdempotencyStoreFactory creates the invocation token store named by configuration
type IdempotencyStoreFactory struct {
	cfg                   config.IdempotencyConfig
	redisConfig           config.RedisConfig
	databaseStore         shared.IdempotencyStore
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// IdempotencyStoreFactoryOption is a functional option for configuring the factory
type IdempotencyStoreFactoryOption func(*IdempotencyStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.logger = logger
	}
}

// WithDatabaseStore supplies the store used by the database backend
func WithDatabaseStore(store shared.IdempotencyStore) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.databaseStore = store
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to the
// in-memory store. Default is false.
func WithInMemoryFallback(allow bool) IdempotencyStoreFactoryOption {
	return func(f *IdempotencyStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewIdempotencyStoreFactory creates a new factory
func NewIdempotencyStoreFactory(cfg config.IdempotencyConfig, redisCfg config.RedisConfig, opts ...IdempotencyStoreFactoryOption) *IdempotencyStoreFactory {
	f := &IdempotencyStoreFactory{
		cfg:         cfg,
		redisConfig: redisCfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore creates the store for the configured backend
func (f *IdempotencyStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	switch f.cfg.Backend {
	case BackendRedis:
		store, err := NewRedisIdempotencyStore(ctx, f.redisConfig)
		if err == nil {
			f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
			return store, nil
		}
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
		}
		f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
			"redelivered triggers are only detected within this process",
			zap.Error(err),
		)
		return NewInMemoryIdempotencyStore(), nil
	case BackendDatabase:
		if f.databaseStore == nil {
			return nil, ErrDatabaseStoreMissing
		}
		f.logger.Info("using database idempotency store")
		return f.databaseStore, nil
	case BackendMemory:
		f.logger.Warn("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, f.cfg.Backend)
	}
}
