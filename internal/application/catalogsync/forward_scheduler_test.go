package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/domain/staging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newForward(conn *fakeConnector, repo *memRepo, d *fakeDispatcher, opts ...Option) *ForwardScheduler {
	base := []Option{WithClock(fixedClock(t1)), WithTokenGenerator(sequentialTokens())}
	return NewForwardScheduler(conn, repo, d, "", zap.NewNop(), append(base, opts...)...)
}

func TestSync_EndToEndProduct(t *testing.T) {
	repo := newMemRepo()
	d := &fakeDispatcher{}

	_, err := newStage(productFeed("A1"), repo, d).Run(context.Background(), RunRequest{Payload: basePayload()})
	require.NoError(t, err)
	trigger := d.last()
	require.Equal(t, forwardTarget, trigger.Target)

	conn := newFakeConnector()
	res, err := newForward(conn, repo, d).Run(context.Background(), RunRequest{Payload: trigger.Payload})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 1, res.Forwarded)

	require.Len(t, conn.session.products, 1)
	assert.Equal(t, integration.ProductRequest{
		SKU:          "A1",
		AttributeSet: "Default",
		TypeID:       "simple",
		StoreID:      "0",
		Data: map[string]any{
			"color":  "red",
			"price":  "0",
			"msrp":   "0",
			"status": "1",
		},
	}, conn.session.products[0])

	rec := repo.get(t, "feed", "A1")
	assert.Equal(t, staging.TxStatusSynced, rec.TxStatus)
	assert.Equal(t, "42", rec.DestinationID)
	assert.Equal(t, staging.NoteForwarded, rec.TxNote)
	assert.True(t, conn.session.closed)
}

func TestForwardScheduler_OnlyPendingInSKUOrder(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, "feed", "C1", `{"color":"c"}`, staging.TxStatusPending, t0)
	repo.seed(t, "feed", "A1", `{"color":"a"}`, staging.TxStatusPending, t1)
	repo.seed(t, "feed", "B1", `{"color":"b"}`, staging.TxStatusSynced, t0)
	repo.seed(t, "feed", "D1", `{"color":"d"}`, staging.TxStatusFailed, t0)
	repo.seed(t, "other", "E1", `{"color":"e"}`, staging.TxStatusPending, t0)

	conn := newFakeConnector()
	res, err := newForward(conn, repo, &fakeDispatcher{}).Run(context.Background(), RunRequest{Payload: basePayload()})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	require.Len(t, conn.session.products, 2)
	assert.Equal(t, "A1", conn.session.products[0].SKU)
	assert.Equal(t, "C1", conn.session.products[1].SKU)
	assert.Equal(t, staging.TxStatusFailed, repo.get(t, "feed", "D1").TxStatus)
}

func TestForwardScheduler_RetryFailedOnFirstLoopOnly(t *testing.T) {
	tests := []struct {
		name string
		loop int
		want int
	}{
		{"first invocation", 0, 2},
		{"resumed invocation", 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			repo.seed(t, "feed", "A1", `{}`, staging.TxStatusPending, t0)
			repo.seed(t, "feed", "B1", `{}`, staging.TxStatusFailed, t0)

			p := basePayload()
			p.RetryFailed = true
			p.Loop = FlexInt(tt.loop)
			res, err := newForward(newFakeConnector(), repo, &fakeDispatcher{}).Run(context.Background(), RunRequest{Payload: p})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Forwarded)
		})
	}
}

func TestForwardScheduler_BusinessErrorContinues(t *testing.T) {
	repo := newMemRepo()
	for _, sku := range []string{"A1", "B1", "C1"} {
		repo.seed(t, "feed", sku, `{"product_name":"Tee"}`, staging.TxStatusPending, t0)
	}
	conn := newFakeConnector()
	conn.session.results["B1"] = fmt.Errorf("%w: url key already exists", integration.ErrEntityRejected)

	res, err := newForward(conn, repo, &fakeDispatcher{}).Run(context.Background(), RunRequest{Payload: basePayload()})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Forwarded)
	assert.Equal(t, 1, res.Failed)
	failed := repo.get(t, "feed", "B1")
	assert.Equal(t, staging.TxStatusFailed, failed.TxStatus)
	assert.Contains(t, failed.TxNote, "url key already exists")
	assert.Equal(t, staging.TxStatusSynced, repo.get(t, "feed", "C1").TxStatus)
}

func TestForwardScheduler_TransportErrorAborts(t *testing.T) {
	repo := newMemRepo()
	for _, sku := range []string{"A1", "B1", "C1"} {
		repo.seed(t, "feed", sku, `{}`, staging.TxStatusPending, t0)
	}
	conn := newFakeConnector()
	conn.session.results["B1"] = fmt.Errorf("%w: tunnel closed", integration.ErrConnectorUnavailable)
	d := &fakeDispatcher{}

	res, err := newForward(conn, repo, d).Run(context.Background(), RunRequest{Payload: basePayload()})
	require.Error(t, err)
	assert.ErrorIs(t, err, integration.ErrConnectorUnavailable)

	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, staging.TxStatusSynced, repo.get(t, "feed", "A1").TxStatus)
	assert.Equal(t, staging.TxStatusPending, repo.get(t, "feed", "B1").TxStatus)
	assert.Equal(t, staging.TxStatusPending, repo.get(t, "feed", "C1").TxStatus)
	assert.Len(t, conn.session.products, 1)
	assert.True(t, conn.session.closed)
	assert.Empty(t, d.calls)
}

func TestForwardScheduler_ExtensionPassThrough(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, "feed", "A1", `[{"store_id":"0","warehouse":"admin","qty":5}]`, staging.TxStatusPending, t0)
	conn := newFakeConnector()

	p := basePayload()
	p.DataType = "inventory"
	_, err := newForward(conn, repo, &fakeDispatcher{}).Run(context.Background(), RunRequest{Payload: p})
	require.NoError(t, err)

	require.Len(t, conn.session.extensions, 1)
	assert.Equal(t, `inventory:A1:[{"store_id":"0","warehouse":"admin","qty":5}]`, conn.session.extensions[0])
	assert.Empty(t, conn.session.products)
}

func TestForwardScheduler_HandoffCarriesLoopOnly(t *testing.T) {
	repo := newMemRepo()
	for _, sku := range []string{"A1", "B1", "C1"} {
		repo.seed(t, "feed", sku, `{}`, staging.TxStatusPending, t0)
	}
	d := &fakeDispatcher{}
	conn := newFakeConnector()

	p := basePayload()
	p.Offset = 7
	res, err := newForward(conn, repo, d).Run(context.Background(), RunRequest{Payload: p, Budget: zeroBudget, Self: "catalog-forward"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeHandedOff, res.Outcome)
	require.Len(t, d.calls, 1)
	call := d.last()
	assert.Equal(t, "catalog-forward", call.Target)
	assert.Equal(t, "1", call.Raw["loop"])
	assert.NotContains(t, call.Raw, "offset")
	assert.Equal(t, "tok-1", call.Payload.IdempotencyToken)
	assert.True(t, conn.session.closed)

	// the next invocation picks up what is still pending
	res, err = newForward(conn, repo, d).Run(context.Background(), RunRequest{Payload: call.Payload})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Forwarded)
}

func TestForwardScheduler_OpenFailure(t *testing.T) {
	conn := newFakeConnector()
	conn.err = fmt.Errorf("%w: ssh handshake failed", integration.ErrConnectorUnavailable)

	res, err := newForward(conn, newMemRepo(), &fakeDispatcher{}).Run(context.Background(), RunRequest{Payload: basePayload()})
	assert.ErrorIs(t, err, integration.ErrConnectorUnavailable)
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

func TestForwardScheduler_CustomTranslationTable(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, "feed", "A1", `{"title":"Tee","type_id":"virtual","store_id":"3"}`, staging.TxStatusPending, t0)
	conn := newFakeConnector()

	p, err := ParsePayload([]byte(`{
		"source":"feed","data_type":"products","attribute_set":"Apparel",
		"txmap":{"name":{"key":"title"},"status":{"key":"status","default":"2"}}
	}`))
	require.NoError(t, err)
	_, err = newForward(conn, repo, &fakeDispatcher{}).Run(context.Background(), RunRequest{Payload: p})
	require.NoError(t, err)

	require.Len(t, conn.session.products, 1)
	got := conn.session.products[0]
	assert.Equal(t, "Apparel", got.AttributeSet)
	assert.Equal(t, "virtual", got.TypeID)
	assert.Equal(t, "3", got.StoreID)
	assert.Equal(t, map[string]any{"name": "Tee", "status": "2"}, got.Data)
}

func TestForwardScheduler_UpdateStatusFailureAborts(t *testing.T) {
	repo := newMemRepo()
	repo.seed(t, "feed", "A1", `{}`, staging.TxStatusPending, t0)
	failing := &statusFailRepo{memRepo: repo, err: errors.New("read-only transaction")}

	f := NewForwardScheduler(newFakeConnector(), failing, &fakeDispatcher{}, "", zap.NewNop(), WithClock(fixedClock(t1)))
	res, err := f.Run(context.Background(), RunRequest{Payload: basePayload()})
	assert.ErrorContains(t, err, "read-only transaction")
	assert.Equal(t, OutcomeFailed, res.Outcome)
}

type statusFailRepo struct {
	*memRepo
	err error
}

func (r *statusFailRepo) Repository(string) (staging.Repository, error) { return r, nil }

func (r *statusFailRepo) UpdateStatus(context.Context, uuid.UUID, staging.StatusUpdate) error {
	return r.err
}
