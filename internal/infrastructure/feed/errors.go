package feed

import "errors"

var (
	// ErrEmptyFeed is returned when the feed has no content
	ErrEmptyFeed = errors.New("feed: empty feed")

	// ErrMissingHeader is returned when the feed has no header row
	ErrMissingHeader = errors.New("feed: missing header row")

	// ErrMissingSKUColumn is returned when the header row has no sku column
	ErrMissingSKUColumn = errors.New("feed: header row has no sku column")

	// ErrUnsupportedCharset is returned for a decode value with no known encoding
	ErrUnsupportedCharset = errors.New("feed: unsupported charset")

	// ErrFetchFailed is returned when the feed server answers with a non-2xx status
	ErrFetchFailed = errors.New("feed: fetch failed")

	// ErrObjectNotFound is returned when the feed object does not exist
	ErrObjectNotFound = errors.New("feed: object not found")

	// ErrNoObjectSource is returned for an object location when no object source is configured
	ErrNoObjectSource = errors.New("feed: object source not configured")
)
