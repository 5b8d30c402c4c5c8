package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/domain/staging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Feed
// ---------------------------------------------------------------------------

type fakeFeed struct {
	rows  func() []*catalog.Row
	err   error
	calls []FeedLocation
}

func (f *fakeFeed) Fetch(_ context.Context, loc FeedLocation) ([]*catalog.Row, error) {
	f.calls = append(f.calls, loc)
	if f.err != nil {
		return nil, f.err
	}
	return f.rows(), nil
}

func productFeed(skus ...string) *fakeFeed {
	return &fakeFeed{rows: func() []*catalog.Row {
		rows := make([]*catalog.Row, 0, len(skus))
		for _, sku := range skus {
			rows = append(rows, catalog.RowOf("sku", sku, "attribute_name_1", "color", "attribute_value_1", "red"))
		}
		return rows
	}}
}

func skuRange(n int) []string {
	skus := make([]string, n)
	for i := range skus {
		skus[i] = fmt.Sprintf("SKU-%03d", i)
	}
	return skus
}

// ---------------------------------------------------------------------------
// Staging
// ---------------------------------------------------------------------------

type memRepo struct {
	mu       sync.Mutex
	records  map[uuid.UUID]*staging.StagedRecord
	failPut  map[string]error
	failList error
	puts     int
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[uuid.UUID]*staging.StagedRecord), failPut: make(map[string]error)}
}

func (r *memRepo) Repository(string) (staging.Repository, error) { return r, nil }

func (r *memRepo) ListBySource(_ context.Context, source string, filter staging.ListFilter) ([]*staging.StagedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList != nil {
		return nil, r.failList
	}
	var out []*staging.StagedRecord
	for _, rec := range r.records {
		if rec.Source == source && filter.Matches(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SKU < out[j].SKU
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *memRepo) ListBySKU(_ context.Context, sku string) ([]*staging.StagedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*staging.StagedRecord
	for _, rec := range r.records {
		if rec.SKU == sku {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memRepo) FindBySourceAndSKU(_ context.Context, source, sku string) (*staging.StagedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Source == source && rec.SKU == sku {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memRepo) Put(_ context.Context, rec *staging.StagedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.failPut[rec.SKU]; ok && rec.TxStatus == staging.TxStatusPending {
		return err
	}
	cp := *rec
	r.records[rec.ID] = &cp
	r.puts++
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, u staging.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return shared.ErrNotFound
	}
	rec.TxStatus = u.Status
	rec.TxNote = u.Note
	if u.DestinationID != "" {
		rec.DestinationID = u.DestinationID
	}
	rec.UpdatedAt = u.At
	return nil
}

func (r *memRepo) get(t *testing.T, source, sku string) *staging.StagedRecord {
	t.Helper()
	rec, err := r.FindBySourceAndSKU(context.Background(), source, sku)
	require.NoError(t, err)
	return rec
}

func (r *memRepo) seed(t *testing.T, source, sku, data string, status staging.TxStatus, at time.Time) *staging.StagedRecord {
	t.Helper()
	rec, err := staging.NewStagedRecord(source, sku, json.RawMessage(data), at)
	require.NoError(t, err)
	rec.TxStatus = status
	require.NoError(t, r.Put(context.Background(), rec))
	return rec
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

type dispatchCall struct {
	Target  string
	Payload Payload
	Raw     map[string]any
	Mode    integration.InvocationMode
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (d *fakeDispatcher) Invoke(_ context.Context, target string, body []byte, mode integration.InvocationMode) ([]byte, error) {
	if d.err != nil {
		return nil, d.err
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	d.calls = append(d.calls, dispatchCall{Target: target, Payload: p, Raw: raw, Mode: mode})
	return nil, nil
}

func (d *fakeDispatcher) last() dispatchCall {
	return d.calls[len(d.calls)-1]
}

// ---------------------------------------------------------------------------
// Connector
// ---------------------------------------------------------------------------

type fakeSession struct {
	products   []integration.ProductRequest
	extensions []string
	results    map[string]error
	nextID     int
	closed     bool
}

func (s *fakeSession) SyncProduct(_ context.Context, req integration.ProductRequest) (string, error) {
	if err := s.results[req.SKU]; err != nil {
		return "", err
	}
	s.products = append(s.products, req)
	s.nextID++
	return fmt.Sprint(41 + s.nextID), nil
}

func (s *fakeSession) SyncExtension(_ context.Context, sku, kind string, data []byte) (string, error) {
	if err := s.results[sku]; err != nil {
		return "", err
	}
	s.extensions = append(s.extensions, kind+":"+sku+":"+string(data))
	s.nextID++
	return fmt.Sprint(41 + s.nextID), nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

type fakeConnector struct {
	session *fakeSession
	err     error
	opened  int
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{session: &fakeSession{results: make(map[string]error)}}
}

func (c *fakeConnector) Open(context.Context) (integration.Session, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.opened++
	return c.session, nil
}

// ---------------------------------------------------------------------------
// Handler collaborators
// ---------------------------------------------------------------------------

type memTokens struct {
	claimed map[string]bool
	err     error
}

func newMemTokens() *memTokens { return &memTokens{claimed: make(map[string]bool)} }

func (m *memTokens) MarkProcessed(_ context.Context, token string, _ time.Duration) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.claimed[token] {
		return false, nil
	}
	m.claimed[token] = true
	return true, nil
}

func (m *memTokens) IsProcessed(_ context.Context, token string) (bool, error) {
	return m.claimed[token], nil
}

func (m *memTokens) Close() error { return nil }

type publishCall struct {
	Topic, Subject string
	Message        map[string]string
}

type fakeNotifier struct {
	calls []publishCall
}

func (n *fakeNotifier) Publish(_ context.Context, topic, subject string, message map[string]string) error {
	n.calls = append(n.calls, publishCall{Topic: topic, Subject: subject, Message: message})
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var errDiskFull = errors.New("disk full")

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// budgetFor returns a budget that runs out after n items. The first check is
// the start-of-run log line.
func budgetFor(n int) Budget {
	checks := 0
	return BudgetFunc(func() time.Duration {
		checks++
		if checks > n {
			return 0
		}
		return time.Hour
	})
}

func noSleep(context.Context, time.Duration) error { return nil }

func sequentialTokens() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tok-%d", n)
	}
}
