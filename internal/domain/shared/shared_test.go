package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := fmt.Errorf("load: %w", Errorf(ErrNotFound, "staged record %s not found", "A1"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "load: staged record A1 not found", err.Error())
	assert.Equal(t, "NOT_FOUND", CodeOf(err))
	assert.Empty(t, CodeOf(errors.New("plain")))
}

func TestBaseEntity_TouchedAt(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	e := NewBaseEntityAt(t0)
	touched := e.TouchedAt(t1)
	assert.Equal(t, e.ID, touched.ID)
	assert.Equal(t, t0, touched.CreatedAt)
	assert.Equal(t, t1, touched.UpdatedAt)
	assert.Equal(t, t0, e.UpdatedAt)

	fresh := BaseEntity{}.TouchedAt(t1)
	assert.NotEqual(t, uuid.Nil, fresh.ID)
	assert.Equal(t, t1, fresh.CreatedAt)
}
