package staging

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows a source listing. An empty Statuses matches every record.
type ListFilter struct {
	Statuses []TxStatus
}

// Matches reports whether a record passes the filter.
func (f ListFilter) Matches(r *StagedRecord) bool {
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.TxStatus == s {
			return true
		}
	}
	return false
}

// Repository defines the interface for staged record persistence
type Repository interface {
	// ListBySource returns the source's records ordered by updated_at
	ListBySource(ctx context.Context, source string, filter ListFilter) ([]*StagedRecord, error)

	// ListBySKU returns the records for a sku across all sources
	ListBySKU(ctx context.Context, sku string) ([]*StagedRecord, error)

	// FindBySourceAndSKU returns shared.ErrNotFound on a miss
	FindBySourceAndSKU(ctx context.Context, source, sku string) (*StagedRecord, error)

	// Put creates or replaces a record by id
	Put(ctx context.Context, record *StagedRecord) error

	// UpdateStatus writes a forwarding outcome and stamps updated_at
	UpdateStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) error
}
