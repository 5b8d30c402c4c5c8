// Package connector implements the destination commerce system adapter over
// the Magento 2 REST API, optionally through an SSH tunnel.
package connector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/secrets"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const defaultTimeout = 30 * time.Second

// Connector opens Magento sessions. The access token and tunnel key are
// resolved on every Open so rotated secrets are picked up.
type Connector struct {
	cfg        config.ConnectorConfig
	baseURL    *url.URL
	secrets    secrets.Getter
	logger     *zap.Logger
	httpClient *http.Client
	dialSSH    sshDialer
}

// Option configures a Connector.
type Option func(*Connector)

// WithHTTPClient sets the HTTP client used when no tunnel is configured.
func WithHTTPClient(c *http.Client) Option {
	return func(cn *Connector) { cn.httpClient = c }
}

// WithSSHDialer overrides the bastion dialer.
func WithSSHDialer(d func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)) Option {
	return func(cn *Connector) { cn.dialSSH = d }
}

// New validates cfg and creates a Connector. getter may be nil when the
// token is static and no tunnel is used.
func New(cfg config.ConnectorConfig, getter secrets.Getter, logger *zap.Logger, opts ...Option) (*Connector, error) {
	if cfg.BaseURL == "" {
		return nil, integration.ErrConnectorNotConfigured
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: invalid base url %q", integration.ErrConnectorNotConfigured, cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Connector{
		cfg:     cfg,
		baseURL: base,
		secrets: getter,
		logger:  logger.Named("connector"),
		dialSSH: ssh.Dial,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Open resolves credentials, opens the tunnel when enabled and returns a
// session bound to this invocation.
func (c *Connector) Open(ctx context.Context) (integration.Session, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	httpClient := c.httpClient
	var tun *tunnel
	if c.cfg.Tunnel.Enabled {
		key, err := c.secret(ctx, c.cfg.Tunnel.PrivateKeySecretID)
		if err != nil {
			return nil, fmt.Errorf("connector: tunnel key: %w", err)
		}
		tun, err = openTunnel(c.cfg.Tunnel, key, c.cfg.Timeout, c.dialSSH, c.logger)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Transport: tun.Transport(), Timeout: c.cfg.Timeout}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: c.cfg.Timeout}
	}

	client := newRESTClient(c.baseURL, token, httpClient, newLimiter(c.cfg.RateLimit, c.cfg.Burst), c.logger)
	if tun != nil {
		return newSession(client, c.cfg.StoreCode, tun, c.logger), nil
	}
	return newSession(client, c.cfg.StoreCode, nil, c.logger), nil
}

func (c *Connector) token(ctx context.Context) (string, error) {
	if c.cfg.TokenSecretID != "" {
		token, err := c.secret(ctx, c.cfg.TokenSecretID)
		if err != nil {
			return "", fmt.Errorf("connector: access token: %w", err)
		}
		return token, nil
	}
	if c.cfg.Token == "" {
		return "", ErrMissingToken
	}
	return c.cfg.Token, nil
}

func (c *Connector) secret(ctx context.Context, id string) (string, error) {
	if c.secrets == nil {
		return "", fmt.Errorf("%w: no secret source for %q", integration.ErrConnectorNotConfigured, id)
	}
	return c.secrets.GetSecret(ctx, id)
}

var _ integration.Connector = (*Connector)(nil)
