package staging

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/catalogsync/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Staging Errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidSource   = errors.New("staging: source is required")
	ErrInvalidSKU      = errors.New("staging: sku is required")
	ErrInvalidTxStatus = errors.New("staging: invalid tx status")
)

// ---------------------------------------------------------------------------
// TxStatus represents the forwarding state of a staged record
// ---------------------------------------------------------------------------

// TxStatus represents the forwarding state of a staged record
type TxStatus string

const (
	// TxStatusPending indicates the record awaits forwarding
	TxStatusPending TxStatus = "PENDING"
	// TxStatusSynced indicates the destination accepted the record
	TxStatusSynced TxStatus = "SYNCED"
	// TxStatusFailed indicates the last forward or stage attempt failed
	TxStatusFailed TxStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s TxStatus) IsValid() bool {
	switch s {
	case TxStatusPending, TxStatusSynced, TxStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of TxStatus
func (s TxStatus) String() string {
	return string(s)
}

// Provenance notes written by the schedulers.
const (
	NoteStaged    = "FEED->STG"
	NoteForwarded = "STG->DEST"
)

// emptyPayload is written for failure markers.
var emptyPayload = json.RawMessage(`{}`)

// ---------------------------------------------------------------------------
// StagedRecord
// ---------------------------------------------------------------------------

// StagedRecord is the staged copy of one catalog entity. ID and CreatedAt are
// assigned once and survive every restage.
type StagedRecord struct {
	shared.BaseEntity
	Source        string
	SKU           string
	Data          json.RawMessage
	TxStatus      TxStatus
	TxNote        string
	DestinationID string
}

// NewStagedRecord creates a pending record for a fresh (source, sku).
func NewStagedRecord(source, sku string, data json.RawMessage, now time.Time) (*StagedRecord, error) {
	source = strings.TrimSpace(source)
	sku = strings.TrimSpace(sku)
	if source == "" {
		return nil, ErrInvalidSource
	}
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	return &StagedRecord{
		BaseEntity: shared.NewBaseEntityAt(now),
		Source:     source,
		SKU:        sku,
		Data:       data,
		TxStatus:   TxStatusPending,
		TxNote:     NoteStaged,
	}, nil
}

// Restage returns the successor of r carrying a new payload. Identity,
// creation time and destination id are preserved; status resets to pending.
// A nil receiver yields a brand new record.
func (r *StagedRecord) Restage(source, sku string, data json.RawMessage, now time.Time) (*StagedRecord, error) {
	if r == nil {
		return NewStagedRecord(source, sku, data, now)
	}
	return &StagedRecord{
		BaseEntity:    r.BaseEntity.TouchedAt(now),
		Source:        r.Source,
		SKU:           r.SKU,
		Data:          data,
		TxStatus:      TxStatusPending,
		TxNote:        NoteStaged,
		DestinationID: r.DestinationID,
	}, nil
}

// FailureMarker returns the record written when staging a payload failed.
// The marker keeps r's identity when one exists.
func (r *StagedRecord) FailureMarker(source, sku string, cause error, now time.Time) *StagedRecord {
	marker := &StagedRecord{
		BaseEntity: shared.NewBaseEntityAt(now),
		Source:     source,
		SKU:        sku,
		Data:       emptyPayload,
		TxStatus:   TxStatusFailed,
	}
	if cause != nil {
		marker.TxNote = cause.Error()
	}
	if r != nil {
		marker.ID = r.ID
		marker.CreatedAt = r.CreatedAt
		marker.DestinationID = r.DestinationID
	}
	return marker
}

// IsForwardable reports whether the forward scheduler should pick the record.
func (r *StagedRecord) IsForwardable(retryFailed bool) bool {
	if r.TxStatus == TxStatusPending {
		return true
	}
	return retryFailed && r.TxStatus == TxStatusFailed
}

// ---------------------------------------------------------------------------
// Status updates
// ---------------------------------------------------------------------------

// StatusUpdate is the forwarding outcome written back to a record.
type StatusUpdate struct {
	Status        TxStatus
	Note          string
	DestinationID string
	At            time.Time
}

// Validate checks the update before it reaches storage.
func (u StatusUpdate) Validate() error {
	if !u.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidTxStatus, u.Status)
	}
	return nil
}

// Synced builds the update for a destination acknowledgement.
func Synced(destinationID string, at time.Time) StatusUpdate {
	return StatusUpdate{Status: TxStatusSynced, Note: NoteForwarded, DestinationID: destinationID, At: at}
}

// Failed builds the update for a rejected record.
func Failed(cause error, at time.Time) StatusUpdate {
	u := StatusUpdate{Status: TxStatusFailed, At: at}
	if cause != nil {
		u.Note = cause.Error()
	}
	return u
}
