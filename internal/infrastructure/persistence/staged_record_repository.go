package persistence

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/erp/catalogsync/internal/domain/shared"
	"github.com/erp/catalogsync/internal/domain/staging"
	"github.com/erp/catalogsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInvalidTableName is returned for a staging table name that is not a plain identifier.
var ErrInvalidTableName = errors.New("persistence: invalid table name")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateTableName checks that a payload-supplied table name is safe to
// interpolate as an identifier.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}

// GormStagedRecordRepository implements staging.Repository on one staging table
type GormStagedRecordRepository struct {
	db    *gorm.DB
	table string
}

// NewGormStagedRecordRepository creates a repository bound to table.
// An empty table selects the default staging table.
func NewGormStagedRecordRepository(db *gorm.DB, table string) (*GormStagedRecordRepository, error) {
	if table == "" {
		table = models.DefaultStagedRecordTable
	}
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}
	return &GormStagedRecordRepository{db: db, table: table}, nil
}

// Table returns the bound table name
func (r *GormStagedRecordRepository) Table() string {
	return r.table
}

func (r *GormStagedRecordRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table)
}

// ListBySource returns the source's records ordered by updated_at
func (r *GormStagedRecordRepository) ListBySource(ctx context.Context, source string, filter staging.ListFilter) ([]*staging.StagedRecord, error) {
	query := r.scoped(ctx).Where("source = ?", source)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query = query.Where("tx_status IN ?", statuses)
	}

	var rows []models.StagedRecordModel
	if err := query.Order("updated_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list staged records for source %q: %w", source, err)
	}
	return toDomainRecords(rows), nil
}

// ListBySKU returns the records for a sku across all sources
func (r *GormStagedRecordRepository) ListBySKU(ctx context.Context, sku string) ([]*staging.StagedRecord, error) {
	var rows []models.StagedRecordModel
	if err := r.scoped(ctx).Where("sku = ?", sku).Order("updated_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list staged records for sku %q: %w", sku, err)
	}
	return toDomainRecords(rows), nil
}

// FindBySourceAndSKU finds the single record for a source and sku
func (r *GormStagedRecordRepository) FindBySourceAndSKU(ctx context.Context, source, sku string) (*staging.StagedRecord, error) {
	var row models.StagedRecordModel
	if err := r.scoped(ctx).Where("source = ? AND sku = ?", source, sku).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.Errorf(shared.ErrNotFound, "staged record %s/%s not found", source, sku)
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// stagedRecordUpdateColumns are rewritten on replace. created_at is not, and
// updated_at comes from the record rather than the gorm clock.
var stagedRecordUpdateColumns = []string{
	"source", "sku", "data", "tx_status", "tx_note", "destination_id", "updated_at",
}

// Put creates or replaces a record by id. created_at is kept on replace.
func (r *GormStagedRecordRepository) Put(ctx context.Context, record *staging.StagedRecord) error {
	if record == nil {
		return shared.ErrInvalidInput
	}
	row := models.StagedRecordModelFromDomain(record)
	err := r.scoped(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(stagedRecordUpdateColumns),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("put staged record %s/%s: %w", record.Source, record.SKU, err)
	}
	return nil
}

// UpdateStatus writes a forwarding outcome. An empty DestinationID keeps the stored one.
func (r *GormStagedRecordRepository) UpdateStatus(ctx context.Context, id uuid.UUID, update staging.StatusUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	values := map[string]any{
		"tx_status":  string(update.Status),
		"tx_note":    update.Note,
		"updated_at": update.At,
	}
	if update.DestinationID != "" {
		values["destination_id"] = update.DestinationID
	}

	result := r.scoped(ctx).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("update staged record %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.Errorf(shared.ErrNotFound, "staged record %s not found", id)
	}
	return nil
}

func toDomainRecords(rows []models.StagedRecordModel) []*staging.StagedRecord {
	records := make([]*staging.StagedRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records
}

// Ensure GormStagedRecordRepository implements staging.Repository
var _ staging.Repository = (*GormStagedRecordRepository)(nil)
