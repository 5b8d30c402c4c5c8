package shared

import (
	"context"
	"time"
)

// DefaultTokenTTL is how long a claimed invocation token suppresses a
// redelivered trigger when no TTL is configured.
const DefaultTokenTTL = 24 * time.Hour

// IdempotencyStore is a durable set of claimed invocation tokens. A token that
// was already claimed and has not expired marks a redelivered trigger.
type IdempotencyStore interface {
	// MarkProcessed claims a token with a TTL.
	// Returns true if the token was newly claimed, false if it was already claimed
	MarkProcessed(ctx context.Context, token string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a token has already been claimed
	IsProcessed(ctx context.Context, token string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}
