package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/audit"
)

// GormAuditLogRepository implements audit.Repository using GORM
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GORM audit log repository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Record appends a single entry
func (r *GormAuditLogRepository) Record(ctx context.Context, e *audit.Entry) error {
	model := r.entryToModel(e)

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return fmt.Errorf("failed to record audit entry: %w", result.Error)
	}

	e.ID = model.ID
	return nil
}

// RecordBatch appends entries in one transaction
func (r *GormAuditLogRepository) RecordBatch(ctx context.Context, entries []*audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	models := make([]AuditLogModel, len(entries))
	for i, e := range entries {
		models[i] = *r.entryToModel(e)
	}

	result := r.db.WithContext(ctx).CreateInBatches(models, 200)
	if result.Error != nil {
		return fmt.Errorf("failed to record audit entries: %w", result.Error)
	}

	return nil
}

// ListRecent retrieves the newest entries
func (r *GormAuditLogRepository) ListRecent(ctx context.Context, limit int) ([]*audit.Entry, error) {
	var models []AuditLogModel
	result := r.db.WithContext(ctx).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", result.Error)
	}

	return r.modelsToEntries(models), nil
}

// ListByEntityType retrieves the newest entries for one entity type
func (r *GormAuditLogRepository) ListByEntityType(ctx context.Context, entityType string, limit int) ([]*audit.Entry, error) {
	var models []AuditLogModel
	result := r.db.WithContext(ctx).
		Where("entity_type = ?", entityType).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list audit entries for %s: %w", entityType, result.Error)
	}

	return r.modelsToEntries(models), nil
}

func (r *GormAuditLogRepository) modelsToEntries(models []AuditLogModel) []*audit.Entry {
	entries := make([]*audit.Entry, len(models))
	for i := range models {
		entries[i] = r.modelToEntry(&models[i])
	}
	return entries
}

// entryToModel converts domain entity to database model
func (r *GormAuditLogRepository) entryToModel(e *audit.Entry) *AuditLogModel {
	return &AuditLogModel{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Action:     e.Action,
		Details:    e.Details,
		ModifiedBy: e.ModifiedBy,
	}
}

// modelToEntry converts database model to domain entity
func (r *GormAuditLogRepository) modelToEntry(m *AuditLogModel) *audit.Entry {
	return &audit.Entry{
		ID:         m.ID,
		Timestamp:  m.Timestamp,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     m.Action,
		Details:    m.Details,
		ModifiedBy: m.ModifiedBy,
	}
}
