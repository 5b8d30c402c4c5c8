package persistence

import (
	"github.com/erp/catalogsync/internal/application/catalogsync"
	"github.com/erp/catalogsync/internal/domain/staging"
	"gorm.io/gorm"
)

// StagingProvider hands out repositories bound to the table an invocation names
type StagingProvider struct {
	db *gorm.DB
}

// NewStagingProvider creates a provider over db
func NewStagingProvider(db *gorm.DB) *StagingProvider {
	return &StagingProvider{db: db}
}

// Repository returns the repository for table
func (p *StagingProvider) Repository(table string) (staging.Repository, error) {
	return NewGormStagedRecordRepository(p.db, table)
}

var _ catalogsync.StagingProvider = (*StagingProvider)(nil)
