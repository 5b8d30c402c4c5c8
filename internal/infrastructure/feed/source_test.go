package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/catalogsync/internal/application/catalogsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		_, _ = io.WriteString(w, "sku,color\nA1,red\nB1,blue\n")
	}))
	defer server.Close()

	objects := NewS3Source(&mockS3{objects: map[string]string{"feeds/inv.csv": "sku,qty\nA1,3\n"}}, zap.NewNop())
	src := NewSource(NewHTTPSource(time.Second, zap.NewNop()), objects, zap.NewNop())

	t.Run("url location", func(t *testing.T) {
		rows, err := src.Fetch(context.Background(), catalogsync.FeedLocation{URL: server.URL + "/export?format=csv", Charset: "utf-8"})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "red", rows[0].Text("color"))
	})

	t.Run("object location", func(t *testing.T) {
		rows, err := src.Fetch(context.Background(), catalogsync.FeedLocation{Bucket: "feeds", Key: "inv.csv", Charset: "utf-8"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "3", rows[0].Text("qty"))
	})

	t.Run("object location without an object source", func(t *testing.T) {
		bare := NewSource(NewHTTPSource(time.Second, zap.NewNop()), nil, zap.NewNop())
		_, err := bare.Fetch(context.Background(), catalogsync.FeedLocation{Bucket: "feeds", Key: "inv.csv"})
		assert.ErrorIs(t, err, ErrNoObjectSource)
	})
}
