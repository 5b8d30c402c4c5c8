package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEmptyToken is returned when claiming an empty invocation token.
var ErrEmptyToken = errors.New("persistence: empty invocation token")

// GormInvocationTokenStore implements shared.IdempotencyStore on the
// invocation_tokens table. A claim is a single conditional insert, so two
// concurrent deliveries of one trigger cannot both succeed.
type GormInvocationTokenStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormInvocationTokenStore creates a token store over db
func NewGormInvocationTokenStore(db *gorm.DB) *GormInvocationTokenStore {
	return &GormInvocationTokenStore{db: db, now: time.Now}
}

// MarkProcessed claims token for ttl. It returns false when a live claim exists.
func (s *GormInvocationTokenStore) MarkProcessed(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}
	now := s.now().UTC()
	db := s.db.WithContext(ctx)

	// A lapsed claim is released before the insert races for the token.
	if err := db.Where("token = ? AND expires_at <= ?", token, now).
		Delete(&models.InvocationTokenModel{}).Error; err != nil {
		return false, fmt.Errorf("release expired token: %w", err)
	}

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.InvocationTokenModel{
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if result.Error != nil {
		return false, fmt.Errorf("claim token: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// IsProcessed reports whether token holds a live claim
func (s *GormInvocationTokenStore) IsProcessed(ctx context.Context, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.InvocationTokenModel{}).
		Where("token = ? AND expires_at > ?", token, s.now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return count > 0, nil
}

// Purge deletes lapsed claims and returns how many were removed
func (s *GormInvocationTokenStore) Purge(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).
		Delete(&models.InvocationTokenModel{})
	return result.RowsAffected, result.Error
}

// Close is a no-op; the connection belongs to the Database
func (s *GormInvocationTokenStore) Close() error {
	return nil
}

var _ shared.IdempotencyStore = (*GormInvocationTokenStore)(nil)
