package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/catalog"
)

// GormStyleRepository implements catalog.StyleRepository using GORM
type GormStyleRepository struct {
	db *gorm.DB
}

// NewGormStyleRepository creates a new GORM style repository
func NewGormStyleRepository(db *gorm.DB) *GormStyleRepository {
	return &GormStyleRepository{db: db}
}

// FindByCode retrieves a style by its natural key. Returns nil, nil when unknown.
func (r *GormStyleRepository) FindByCode(ctx context.Context, styleCode string) (*catalog.Style, error) {
	var model StyleModel
	result := r.db.WithContext(ctx).Where("style_code = ?", styleCode).First(&model)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find style %s: %w", styleCode, result.Error)
	}

	return r.modelToStyle(&model), nil
}

// FindAll retrieves every style, ordered by id
func (r *GormStyleRepository) FindAll(ctx context.Context) ([]*catalog.Style, error) {
	var models []StyleModel
	result := r.db.WithContext(ctx).Order("id ASC").Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list styles: %w", result.Error)
	}

	styles := make([]*catalog.Style, len(models))
	for i := range models {
		styles[i] = r.modelToStyle(&models[i])
	}

	return styles, nil
}

// CodeToID returns the styleCode -> id lookup map for FK resolution
func (r *GormStyleRepository) CodeToID(ctx context.Context) (map[string]int64, error) {
	type pair struct {
		StyleCode string
		ID        int64
	}

	var rows []pair
	result := r.db.WithContext(ctx).
		Model(&StyleModel{}).
		Select("style_code, id").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to load style lookup: %w", result.Error)
	}

	lookup := make(map[string]int64, len(rows))
	for _, row := range rows {
		lookup[row.StyleCode] = row.ID
	}

	return lookup, nil
}

// ApplyBatch inserts and updates styles in a single transaction. Either
// the whole batch lands or none of it does.
func (r *GormStyleRepository) ApplyBatch(ctx context.Context, inserts []*catalog.Style, updates []*catalog.Style) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range inserts {
			model := r.styleToModel(s)
			if err := tx.Create(model).Error; err != nil {
				return fmt.Errorf("failed to insert style %s: %w", s.StyleCode, err)
			}
			s.ID = model.ID
		}
		for _, s := range updates {
			if err := tx.Save(r.styleToModel(s)).Error; err != nil {
				return fmt.Errorf("failed to update style %s: %w", s.StyleCode, err)
			}
		}
		return nil
	})
}

// Count returns the number of styles
func (r *GormStyleRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&StyleModel{}).Count(&count)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to count styles: %w", result.Error)
	}

	return count, nil
}

// styleToModel converts domain entity to database model
func (r *GormStyleRepository) styleToModel(s *catalog.Style) *StyleModel {
	return &StyleModel{
		ID:          s.ID,
		StyleCode:   s.StyleCode,
		Brand:       s.Brand,
		Category:    s.Category,
		SubCategory: s.SubCategory,
		MRP:         s.MRP,
		Gender:      s.Gender,
	}
}

// modelToStyle converts database model to domain entity
func (r *GormStyleRepository) modelToStyle(m *StyleModel) *catalog.Style {
	return &catalog.Style{
		ID:          m.ID,
		StyleCode:   m.StyleCode,
		Brand:       m.Brand,
		Category:    m.Category,
		SubCategory: m.SubCategory,
		MRP:         m.MRP,
		Gender:      m.Gender,
	}
}
