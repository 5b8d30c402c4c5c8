package models

import "time"

// InvocationTokenModel is a claimed invocation token. A row whose ExpiresAt is
// in the past no longer suppresses redelivery and may be reclaimed.
type InvocationTokenModel struct {
	Token     string    `gorm:"type:varchar(128);primaryKey"`
	ExpiresAt time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (InvocationTokenModel) TableName() string {
	return "invocation_tokens"
}

// Expired reports whether the claim has lapsed at now.
func (m *InvocationTokenModel) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}
