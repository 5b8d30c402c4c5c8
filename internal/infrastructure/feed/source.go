package feed

import (
	"context"
	"io"

	"github.com/erp/catalogsync/internal/application/catalogsync"
	"github.com/erp/catalogsync/internal/domain/catalog"
	"go.uber.org/zap"
)

// URLOpener opens a feed addressed by URL
type URLOpener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// ObjectOpener opens a feed stored in an object store
type ObjectOpener interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// Source implements catalogsync.FeedSource over URL and object openers
type Source struct {
	urls    URLOpener
	objects ObjectOpener
	logger  *zap.Logger
}

// NewSource creates a feed source. objects may be nil when no object store is configured.
func NewSource(urls URLOpener, objects ObjectOpener, logger *zap.Logger) *Source {
	return &Source{urls: urls, objects: objects, logger: logger}
}

// Fetch downloads and parses the feed at loc
func (s *Source) Fetch(ctx context.Context, loc catalogsync.FeedLocation) ([]*catalog.Row, error) {
	body, err := s.open(ctx, loc)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	rows, err := ParseRows(body, WithCharset(loc.Charset))
	if err != nil {
		return nil, err
	}

	s.logger.Info("feed fetched",
		zap.String("location", loc.String()),
		zap.String("charset", loc.Charset),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (s *Source) open(ctx context.Context, loc catalogsync.FeedLocation) (io.ReadCloser, error) {
	if loc.IsObject() {
		if s.objects == nil {
			return nil, ErrNoObjectSource
		}
		return s.objects.Open(ctx, loc.Bucket, loc.Key)
	}
	return s.urls.Open(ctx, loc.URL)
}

var _ catalogsync.FeedSource = (*Source)(nil)
