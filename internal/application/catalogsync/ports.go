package catalogsync

import (
	"context"
	"strings"
	"time"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/staging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task names as used in configuration and logs.
const (
	TaskStage   = "stage"
	TaskForward = "forward"
)

// FeedSource fetches the full feed as normalized-header rows.
type FeedSource interface {
	Fetch(ctx context.Context, loc FeedLocation) ([]*catalog.Row, error)
}

// StagingProvider returns the repository bound to a staging table.
type StagingProvider interface {
	Repository(table string) (staging.Repository, error)
}

// Metrics records scheduler activity.
type Metrics interface {
	RecordItem(ctx context.Context, task, kind, outcome string, spend time.Duration)
	RecordHandoff(ctx context.Context, task, kind string, loop int)
	RecordRun(ctx context.Context, task, kind string, outcome Outcome, duration time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordItem(context.Context, string, string, string, time.Duration) {}
func (NopMetrics) RecordHandoff(context.Context, string, string, int)                {}
func (NopMetrics) RecordRun(context.Context, string, string, Outcome, time.Duration) {}

// Task runs one bounded invocation.
type Task interface {
	Name() string
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// RunRequest is the input of one bounded invocation.
type RunRequest struct {
	Payload Payload
	Budget  Budget
	// Self is the invocation target for handoffs, usually the running function.
	Self string
}

// ---------------------------------------------------------------------------
// Shared scheduler runtime
// ---------------------------------------------------------------------------

// runner holds what both schedulers need for pacing, handoff and telemetry.
type runner struct {
	dispatcher integration.Dispatcher
	policy     HandoffPolicy
	metrics    Metrics
	logger     *zap.Logger
	clock      func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
	newToken   func() string
	charset    string
}

// Option configures a scheduler.
type Option func(*runner)

// WithPolicy overrides the handoff policy.
func WithPolicy(p HandoffPolicy) Option {
	return func(r *runner) { r.policy = p.withDefaults() }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(r *runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithClock overrides the clock used for spend measurement and timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *runner) { r.clock = clock }
}

// WithSleeper overrides resume pacing.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *runner) { r.sleep = sleep }
}

// WithDefaultCharset sets the feed encoding used when a payload names none.
func WithDefaultCharset(charset string) Option {
	return func(r *runner) {
		if charset != "" {
			r.charset = charset
		}
	}
}

// WithTokenGenerator overrides idempotency token generation.
func WithTokenGenerator(gen func() string) Option {
	return func(r *runner) { r.newToken = gen }
}

func newRunner(dispatcher integration.Dispatcher, logger *zap.Logger, opts ...Option) runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := runner{
		dispatcher: dispatcher,
		policy:     DefaultHandoffPolicy(),
		metrics:    NopMetrics{},
		logger:     logger,
		clock:      time.Now,
		sleep:      sleepContext,
		newToken:   uuid.NewString,
		charset:    DefaultCharset,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// feedLocation resolves the payload feed, applying the default charset.
func (r *runner) feedLocation(p Payload) (FeedLocation, error) {
	if strings.TrimSpace(p.Decode) == "" {
		p.Decode = r.charset
	}
	return p.FeedLocation()
}

func budgetOrUnlimited(b Budget) Budget {
	if b == nil {
		return UnlimitedBudget{}
	}
	return b
}
