package integration

import (
	"context"
	"errors"
)

var (
	// ErrInvocationFailed is returned when the target reports a function error.
	ErrInvocationFailed = errors.New("integration: invocation failed")
	// ErrInvalidTarget is returned for an empty invocation target.
	ErrInvalidTarget = errors.New("integration: invocation target is required")
)

// InvocationMode selects fire-and-forget or synchronous dispatch.
type InvocationMode string

const (
	// InvocationModeEvent queues the invocation and returns immediately
	InvocationModeEvent InvocationMode = "Event"
	// InvocationModeRequestResponse waits for the target's response
	InvocationModeRequestResponse InvocationMode = "RequestResponse"
)

// IsValid returns true if the mode is valid
func (m InvocationMode) IsValid() bool {
	return m == InvocationModeEvent || m == InvocationModeRequestResponse
}

// Dispatcher invokes a named target with a JSON payload. The response body is
// returned only for InvocationModeRequestResponse.
type Dispatcher interface {
	Invoke(ctx context.Context, target string, payload []byte, mode InvocationMode) ([]byte, error)
}

// Notifier publishes failure notifications. The message map carries
// per-protocol bodies keyed by protocol, with "default" always present.
type Notifier interface {
	Publish(ctx context.Context, topic, subject string, message map[string]string) error
}

// DefaultMessage builds the message body for a plain diagnostic text.
func DefaultMessage(text string) map[string]string {
	return map[string]string{"default": text}
}
