package models

import (
	"encoding/json"

	"github.com/erp/catalogsync/internal/domain/staging"
)

// DefaultStagedRecordTable is the table used when a payload names none.
const DefaultStagedRecordTable = "staged_records"

// StagedRecordModel is the persistence model for staging.StagedRecord.
// A deployment may keep several staging tables with this layout; repositories
// select the table at runtime.
type StagedRecordModel struct {
	BaseModel
	Source        string `gorm:"type:varchar(128);not null;uniqueIndex:idx_staged_source_sku,priority:1"`
	SKU           string `gorm:"column:sku;type:varchar(128);not null;uniqueIndex:idx_staged_source_sku,priority:2;index:idx_staged_sku"`
	Data          string `gorm:"type:jsonb;not null"`
	TxStatus      string `gorm:"type:varchar(16);not null;index"`
	TxNote        string `gorm:"type:text"`
	DestinationID string `gorm:"type:varchar(64)"`
}

// TableName returns the default staging table
func (StagedRecordModel) TableName() string {
	return DefaultStagedRecordTable
}

// ToDomain converts the persistence model to a domain StagedRecord
func (m *StagedRecordModel) ToDomain() *staging.StagedRecord {
	data := json.RawMessage(m.Data)
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	return &staging.StagedRecord{
		BaseEntity:    m.BaseModel.ToDomain(),
		Source:        m.Source,
		SKU:           m.SKU,
		Data:          data,
		TxStatus:      staging.TxStatus(m.TxStatus),
		TxNote:        m.TxNote,
		DestinationID: m.DestinationID,
	}
}

// FromDomain populates the persistence model from a domain StagedRecord
func (m *StagedRecordModel) FromDomain(r *staging.StagedRecord) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.Source = r.Source
	m.SKU = r.SKU
	m.Data = string(r.Data)
	if m.Data == "" {
		m.Data = "{}"
	}
	m.TxStatus = string(r.TxStatus)
	m.TxNote = r.TxNote
	m.DestinationID = r.DestinationID
}

// StagedRecordModelFromDomain creates a new persistence model from a domain StagedRecord
func StagedRecordModelFromDomain(r *staging.StagedRecord) *StagedRecordModel {
	m := &StagedRecordModel{}
	m.FromDomain(r)
	return m
}
