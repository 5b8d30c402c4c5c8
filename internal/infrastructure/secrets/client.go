// Package secrets reads connector credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

var (
	// ErrSecretNotFound is returned when the secret id does not exist.
	ErrSecretNotFound = errors.New("secrets: secret not found")
	// ErrSecretEmpty is returned when the secret has no value.
	ErrSecretEmpty = errors.New("secrets: secret has no value")
	// ErrAccessDenied is returned when the caller may not read the secret.
	ErrAccessDenied = errors.New("secrets: access denied")
	// ErrEmptySecretID is returned for an empty secret id.
	ErrEmptySecretID = errors.New("secrets: secret id is required")
)

// AWS error codes mapped to sentinels.
const (
	codeResourceNotFound = "ResourceNotFoundException"
	codeAccessDenied     = "AccessDeniedException"
)

// DefaultCacheTTL bounds how long a value is reused within one process.
const DefaultCacheTTL = 5 * time.Minute

// ManagerAPI is the subset of the Secrets Manager client in use.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Getter returns a secret value by id.
type Getter interface {
	GetSecret(ctx context.Context, id string) (string, error)
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// Client reads secrets and caches them for a TTL. Safe for concurrent use.
type Client struct {
	api    ManagerAPI
	logger *zap.Logger
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedSecret
}

// Option configures a Client.
type Option func(*Client)

// WithCacheTTL sets the cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient wraps api.
func NewClient(api ManagerAPI, opts ...Option) *Client {
	c := &Client{
		api:    api,
		logger: zap.NewNop(),
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		cache:  make(map[string]cachedSecret),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a Client over a Secrets Manager client for cfg.
func NewFromConfig(cfg aws.Config, endpoint *string, opts ...Option) *Client {
	api := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return NewClient(api, opts...)
}

// GetSecret returns the string value of the secret. Binary secrets are
// returned as their raw bytes.
func (c *Client) GetSecret(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrEmptySecretID
	}
	if v, ok := c.cached(id); ok {
		return v, nil
	}

	out, err := c.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		return "", c.mapError(id, err)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	}
	if value == "" {
		return "", fmt.Errorf("%w: %q", ErrSecretEmpty, id)
	}

	c.store(id, value)
	c.logger.Debug("Secret retrieved", zap.String("secret_id", id))
	return value, nil
}

// Invalidate drops a cached value.
func (c *Client) Invalidate(id string) {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
}

func (c *Client) cached(id string) (string, bool) {
	if c.ttl <= 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[id]
	if !ok || !c.now().Before(entry.expiresAt) {
		return "", false
	}
	return entry.value, true
}

func (c *Client) store(id, value string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[id] = cachedSecret{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Client) mapError(id string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case codeResourceNotFound:
			return fmt.Errorf("%w: %q", ErrSecretNotFound, id)
		case codeAccessDenied:
			return fmt.Errorf("%w: %q", ErrAccessDenied, id)
		}
		c.logger.Error("Failed to retrieve secret",
			zap.String("secret_id", id),
			zap.String("code", apiErr.ErrorCode()),
		)
		return fmt.Errorf("secrets: get %q: %s: %s", id, apiErr.ErrorCode(), apiErr.ErrorMessage())
	}
	return fmt.Errorf("secrets: get %q: %w", id, err)
}

// Static is a Getter over fixed values, for local runs.
type Static map[string]string

// GetSecret returns the fixed value for id.
func (s Static) GetSecret(_ context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrEmptySecretID
	}
	v, ok := s[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrSecretNotFound, id)
	}
	if v == "" {
		return "", fmt.Errorf("%w: %q", ErrSecretEmpty, id)
	}
	return v, nil
}

var (
	_ Getter = (*Client)(nil)
	_ Getter = Static(nil)
)
