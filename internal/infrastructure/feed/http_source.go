package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// maxErrorBody caps how much of an error response is kept for the message
const maxErrorBody = 512

// HTTPSource downloads feeds over HTTP(S), including Google Sheets CSV exports
type HTTPSource struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
}

// HTTPSourceOption is a functional option for HTTPSource
type HTTPSourceOption func(*HTTPSource)

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) HTTPSourceOption {
	return func(s *HTTPSource) {
		s.userAgent = ua
	}
}

// NewHTTPSource creates an HTTP feed source with the given request timeout
func NewHTTPSource(timeout time.Duration, logger *zap.Logger, opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		client:    &http.Client{Timeout: timeout},
		userAgent: "catalogsync/1.0",
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts the download of url. The caller closes the body.
func (s *HTTPSource) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download feed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrFetchFailed, url, resp.StatusCode, body)
	}

	s.logger.Debug("feed download started",
		zap.String("url", url),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)
	return resp.Body, nil
}
