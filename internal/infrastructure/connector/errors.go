package connector

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/erp/catalogsync/internal/domain/integration"
)

var (
	// ErrMissingToken is returned when no access token is configured.
	ErrMissingToken = errors.New("connector: access token is required")
	// ErrAttributeSetNotFound is returned for an attribute set unknown to the destination.
	ErrAttributeSetNotFound = errors.New("connector: attribute set not found")
	// ErrStoreNotFound is returned for a store id unknown to the destination.
	ErrStoreNotFound = errors.New("connector: store not found")
	// ErrUnsupportedKind is returned for an extension kind the destination cannot take.
	ErrUnsupportedKind = errors.New("connector: unsupported extension kind")
	// ErrInvalidExtension is returned when staged extension data cannot be decoded.
	ErrInvalidExtension = errors.New("connector: invalid extension data")
	// ErrTunnel is returned when the SSH tunnel cannot be established.
	ErrTunnel = errors.New("connector: tunnel failed")
)

// APIError is a non-2xx answer from the destination.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("connector: HTTP %d", e.Status)
	}
	return fmt.Sprintf("connector: HTTP %d: %s", e.Status, e.Message)
}

// Unwrap classifies the error. Throttling, server faults and rejected
// credentials abort a run; other client errors reject only the entity.
func (e *APIError) Unwrap() error {
	if e.Transient() {
		return integration.ErrConnectorUnavailable
	}
	return integration.ErrEntityRejected
}

// Transient reports whether the request could succeed unchanged later.
func (e *APIError) Transient() bool {
	switch {
	case e.Status == http.StatusTooManyRequests,
		e.Status == http.StatusUnauthorized,
		e.Status >= http.StatusInternalServerError:
		return true
	}
	return false
}

// errorBody is the destination's error document. Positional parameters
// replace %1..%n, named parameters replace %name.
type errorBody struct {
	Message    string          `json:"message"`
	Parameters json.RawMessage `json:"parameters"`
}

func newAPIError(status int, body []byte) *APIError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Message == "" {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorText {
			msg = msg[:maxErrorText]
		}
		return &APIError{Status: status, Message: msg}
	}
	return &APIError{Status: status, Message: expandParameters(eb.Message, eb.Parameters)}
}

const maxErrorText = 512

func expandParameters(msg string, raw json.RawMessage) string {
	if len(raw) == 0 {
		return msg
	}
	var positional []any
	if err := json.Unmarshal(raw, &positional); err == nil {
		// Replace from the highest index so %1 does not eat %10.
		for i := len(positional); i >= 1; i-- {
			msg = strings.ReplaceAll(msg, "%"+strconv.Itoa(i), fmt.Sprint(positional[i-1]))
		}
		return msg
	}
	var named map[string]any
	if err := json.Unmarshal(raw, &named); err == nil {
		keys := make([]string, 0, len(named))
		for k := range named {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })
		for _, k := range keys {
			msg = strings.ReplaceAll(msg, "%"+k, fmt.Sprint(named[k]))
		}
	}
	return msg
}
