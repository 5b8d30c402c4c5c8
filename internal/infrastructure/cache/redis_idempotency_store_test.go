package cache

import (
	"context"
	"testing"
	"time"

	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis points at a port nothing listens on.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewRedisIdempotencyStoreWithClient(t *testing.T) {
	client := unreachableRedis()

	store := NewRedisIdempotencyStoreWithClient(client, "")
	assert.Equal(t, "catalogsync:token:abc", store.Key("abc"))

	custom := NewRedisIdempotencyStoreWithClient(client, "stage:")
	assert.Equal(t, "stage:abc", custom.Key("abc"))
	assert.NoError(t, store.Close())
}

func TestRedisIdempotencyStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	store := NewRedisIdempotencyStoreWithClient(unreachableRedis(), "")
	defer store.Close()

	_, err := store.MarkProcessed(ctx, "tok", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to claim invocation token")

	_, err = store.IsProcessed(ctx, "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check invocation token")
}

func TestRedisIdempotencyStore_EmptyToken(t *testing.T) {
	store := NewRedisIdempotencyStoreWithClient(unreachableRedis(), "")
	defer store.Close()

	_, err := store.MarkProcessed(context.Background(), "", time.Minute)
	assert.ErrorIs(t, err, ErrEmptyToken)
}

func TestNewRedisIdempotencyStore_ConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisIdempotencyStore(ctx, config.RedisConfig{Host: "127.0.0.1", Port: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}
