package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erp/catalogsync/internal/domain/integration"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize is the maximum accepted response size (10MB)
const maxResponseSize = 10 * 1024 * 1024

// restClient performs authenticated, rate limited JSON calls against the
// destination REST API.
type restClient struct {
	baseURL    *url.URL
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

func newRESTClient(baseURL *url.URL, token string, httpClient *http.Client, limiter *rate.Limiter, logger *zap.Logger) *restClient {
	return &restClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}
}

// newLimiter builds the request limiter. A non-positive rate disables limiting.
func newLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// endpoint joins the REST path onto the base URL.
func (c *restClient) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// doRequest sends body as JSON and decodes the answer into out when non-nil.
func (c *restClient) doRequest(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", integration.ErrConnectorUnavailable, err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("connector: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return fmt.Errorf("connector: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", integration.ErrConnectorUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", integration.ErrConnectorUnavailable, err)
	}

	c.logger.Debug("Destination request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, payload)
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("connector: failed to decode %s %s: %w", method, path, err)
	}
	return nil
}
