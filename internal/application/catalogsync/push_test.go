package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newPusher(feed FeedSource, conn *fakeConnector) *Pusher {
	return NewPusher(feed, conn, "", zap.NewNop(), WithClock(fixedClock(t0)))
}

func TestPusher_SendsEveryCandidate(t *testing.T) {
	conn := newFakeConnector()

	res, err := newPusher(productFeed("B2", "A1"), conn).Run(context.Background(), RunRequest{Payload: basePayload()})
	require.NoError(t, err)

	assert.Equal(t, TaskPush, res.Task)
	assert.Equal(t, OutcomeCompleted, res.Outcome)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Offset)
	assert.Equal(t, 2, res.Forwarded)
	require.Len(t, conn.session.products, 2)
	assert.Equal(t, "A1", conn.session.products[0].SKU)
	assert.Equal(t, "Default", conn.session.products[0].AttributeSet)
	assert.Equal(t, "red", conn.session.products[0].Data["color"])
	assert.True(t, conn.session.closed)
}

func TestPusher_ResumesFromOffset(t *testing.T) {
	conn := newFakeConnector()
	p := basePayload()
	p.Offset = 2

	res, err := newPusher(productFeed(skuRange(3)...), conn).Run(context.Background(), RunRequest{Payload: p})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Forwarded)
	require.Len(t, conn.session.products, 1)
	assert.Equal(t, "SKU-002", conn.session.products[0].SKU)
}

func TestPusher_RejectionContinues(t *testing.T) {
	conn := newFakeConnector()
	conn.session.results["A1"] = fmt.Errorf("bad price: %w", integration.ErrEntityRejected)

	res, err := newPusher(productFeed("A1", "B2"), conn).Run(context.Background(), RunRequest{Payload: basePayload()})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Forwarded)
}

func TestPusher_UnreachableAborts(t *testing.T) {
	conn := newFakeConnector()
	conn.session.results["A1"] = fmt.Errorf("dial: %w", integration.ErrConnectorUnavailable)

	res, err := newPusher(productFeed("A1", "B2"), conn).Run(context.Background(), RunRequest{Payload: basePayload()})
	require.Error(t, err)
	assert.True(t, integration.IsTransportError(err))
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, 1, res.Offset)
	assert.Empty(t, conn.session.products)
	assert.True(t, conn.session.closed)
}

func TestPusher_Errors(t *testing.T) {
	t.Run("feed", func(t *testing.T) {
		feed := &fakeFeed{err: errors.New("404")}
		_, err := newPusher(feed, newFakeConnector()).Run(context.Background(), RunRequest{Payload: basePayload()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "fetch feed")
	})

	t.Run("open session", func(t *testing.T) {
		conn := newFakeConnector()
		conn.err = integration.ErrConnectorNotConfigured
		_, err := newPusher(productFeed("A1"), conn).Run(context.Background(), RunRequest{Payload: basePayload()})
		assert.ErrorIs(t, err, integration.ErrConnectorNotConfigured)
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := newPusher(productFeed("A1"), newFakeConnector()).Run(context.Background(), RunRequest{Payload: Payload{}})
		require.Error(t, err)
	})
}
