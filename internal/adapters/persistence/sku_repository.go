package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/catalog"
)

// GormSkuRepository implements catalog.SkuRepository using GORM
type GormSkuRepository struct {
	db *gorm.DB
}

// NewGormSkuRepository creates a new GORM SKU repository
func NewGormSkuRepository(db *gorm.DB) *GormSkuRepository {
	return &GormSkuRepository{db: db}
}

// FindByCode retrieves a SKU by its natural key. Returns nil, nil when unknown.
func (r *GormSkuRepository) FindByCode(ctx context.Context, code string) (*catalog.SKU, error) {
	var model SkuModel
	result := r.db.WithContext(ctx).Where("sku = ?", code).First(&model)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find sku %s: %w", code, result.Error)
	}

	return r.modelToSku(&model), nil
}

// FindAll retrieves every SKU, ordered by id
func (r *GormSkuRepository) FindAll(ctx context.Context) ([]*catalog.SKU, error) {
	var models []SkuModel
	result := r.db.WithContext(ctx).Order("id ASC").Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list skus: %w", result.Error)
	}

	skus := make([]*catalog.SKU, len(models))
	for i := range models {
		skus[i] = r.modelToSku(&models[i])
	}

	return skus, nil
}

// CodeToID returns the sku -> id lookup map for FK resolution
func (r *GormSkuRepository) CodeToID(ctx context.Context) (map[string]int64, error) {
	type pair struct {
		Code string `gorm:"column:sku"`
		ID   int64
	}

	var rows []pair
	result := r.db.WithContext(ctx).
		Model(&SkuModel{}).
		Select("sku, id").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to load sku lookup: %w", result.Error)
	}

	lookup := make(map[string]int64, len(rows))
	for _, row := range rows {
		lookup[row.Code] = row.ID
	}

	return lookup, nil
}

// StyleIDBySkuID returns the skuId -> styleId projection. The
// classification engine joins sales to styles through this map instead
// of issuing per-row queries.
func (r *GormSkuRepository) StyleIDBySkuID(ctx context.Context) (map[int64]int64, error) {
	type pair struct {
		ID      int64
		StyleID int64
	}

	var rows []pair
	result := r.db.WithContext(ctx).
		Model(&SkuModel{}).
		Select("id, style_id").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to load sku-style projection: %w", result.Error)
	}

	lookup := make(map[int64]int64, len(rows))
	for _, row := range rows {
		lookup[row.ID] = row.StyleID
	}

	return lookup, nil
}

// ApplyBatch inserts and updates SKUs in a single transaction
func (r *GormSkuRepository) ApplyBatch(ctx context.Context, inserts []*catalog.SKU, updates []*catalog.SKU) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, k := range inserts {
			model := r.skuToModel(k)
			if err := tx.Create(model).Error; err != nil {
				return fmt.Errorf("failed to insert sku %s: %w", k.Code, err)
			}
			k.ID = model.ID
		}
		for _, k := range updates {
			if err := tx.Save(r.skuToModel(k)).Error; err != nil {
				return fmt.Errorf("failed to update sku %s: %w", k.Code, err)
			}
		}
		return nil
	})
}

// Count returns the number of SKUs
func (r *GormSkuRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&SkuModel{}).Count(&count)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to count skus: %w", result.Error)
	}

	return count, nil
}

// skuToModel converts domain entity to database model
func (r *GormSkuRepository) skuToModel(k *catalog.SKU) *SkuModel {
	return &SkuModel{
		ID:      k.ID,
		Code:    k.Code,
		StyleID: k.StyleID,
		Size:    k.Size,
	}
}

// modelToSku converts database model to domain entity
func (r *GormSkuRepository) modelToSku(m *SkuModel) *catalog.SKU {
	return &catalog.SKU{
		ID:      m.ID,
		Code:    m.Code,
		StyleID: m.StyleID,
		Size:    m.Size,
	}
}
