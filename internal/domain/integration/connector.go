package integration

import (
	"context"
	"errors"
)

// ---------------------------------------------------------------------------
// Connector Errors
// ---------------------------------------------------------------------------

var (
	// ErrConnectorUnavailable is a transport failure; a forward run aborts on it.
	ErrConnectorUnavailable = errors.New("integration: destination connector unavailable")
	// ErrEntityRejected is a per-record business error; a forward run continues.
	ErrEntityRejected = errors.New("integration: destination rejected entity")
	// ErrConnectorNotConfigured is returned when no destination is configured.
	ErrConnectorNotConfigured = errors.New("integration: destination connector not configured")
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// ProductRequest is a product shaped for the destination.
type ProductRequest struct {
	SKU          string
	AttributeSet string
	TypeID       string
	StoreID      string
	Data         map[string]any
}

// Session is one authenticated conversation with the destination. A session
// is scoped to a single invocation and must be closed by its opener.
type Session interface {
	// SyncProduct creates or updates a product and returns its destination id
	SyncProduct(ctx context.Context, req ProductRequest) (string, error)

	// SyncExtension pushes an extension payload (inventory, gallery, variants,
	// custom options) for a sku and returns the destination id
	SyncExtension(ctx context.Context, sku, kind string, data []byte) (string, error)

	// Close releases the session and any tunnel it holds
	Close() error
}

// Connector opens destination sessions.
type Connector interface {
	Open(ctx context.Context) (Session, error)
}

// IsTransportError reports whether err should abort a forward run.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrConnectorUnavailable)
}
