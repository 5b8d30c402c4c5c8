package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity is the identity and timestamps shared by stored records.
// Timestamps come from the caller's clock so that runs stay reproducible.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntityAt creates a new base entity with a generated ID stamped at now
func NewBaseEntityAt(now time.Time) BaseEntity {
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TouchedAt returns e with UpdatedAt moved to at. A zero identity gets a
// fresh id and creation time.
func (e BaseEntity) TouchedAt(at time.Time) BaseEntity {
	if e.ID == uuid.Nil {
		return NewBaseEntityAt(at)
	}
	e.UpdatedAt = at
	return e
}
