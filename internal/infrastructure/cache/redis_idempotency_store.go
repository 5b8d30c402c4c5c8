package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// DefaultTokenKeyPrefix namespaces invocation tokens in Redis
const DefaultTokenKeyPrefix = "catalogsync:token:"

// ErrEmptyToken is returned when claiming an empty invocation token.
var ErrEmptyToken = errors.New("cache: empty invocation token")

// RedisIdempotencyStore implements IdempotencyStore using Redis.
// Claims are shared by every function instance pointed at the same server.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore connects to Redis and verifies the connection
func NewRedisIdempotencyStore(ctx context.Context, cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisIdempotencyStoreWithClient(client, ""), nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = DefaultTokenKeyPrefix
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed claims token with SETNX so the claim and its TTL are one operation.
// Returns true if the token was newly claimed.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}
	claimed, err := s.client.SetNX(ctx, s.keyPrefix+token, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim invocation token: %w", err)
	}
	return claimed, nil
}

// IsProcessed checks if a token holds a live claim
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, token string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check invocation token: %w", err)
	}
	return exists > 0, nil
}

// Key returns the Redis key for token
func (s *RedisIdempotencyStore) Key(token string) string {
	return s.keyPrefix + token
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)
