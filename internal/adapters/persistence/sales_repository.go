package persistence

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/sales"
)

// salesInsertBatchSize bounds the rows per INSERT during a replacement
const salesInsertBatchSize = 500

// GormSalesRepository implements sales.Repository using GORM
type GormSalesRepository struct {
	db *gorm.DB
}

// NewGormSalesRepository creates a new GORM sales repository
func NewGormSalesRepository(db *gorm.DB) *GormSalesRepository {
	return &GormSalesRepository{db: db}
}

// FindBetween retrieves sales within [start, end] inclusive, ordered by
// date. Nil bounds are open.
func (r *GormSalesRepository) FindBetween(ctx context.Context, start, end *time.Time) ([]*sales.Sale, error) {
	query := r.db.WithContext(ctx).Model(&SaleModel{})
	if start != nil {
		query = query.Where("date >= ?", *start)
	}
	if end != nil {
		query = query.Where("date <= ?", *end)
	}

	var models []SaleModel
	result := query.Order("date ASC, id ASC").Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list sales: %w", result.Error)
	}

	rows := make([]*sales.Sale, len(models))
	for i := range models {
		rows[i] = r.modelToSale(&models[i])
	}

	return rows, nil
}

// FindAll retrieves every sale, ordered by date
func (r *GormSalesRepository) FindAll(ctx context.Context) ([]*sales.Sale, error) {
	return r.FindBetween(ctx, nil, nil)
}

// ReplaceAll deletes every existing sale and batch-inserts the given rows
// inside a single transaction, so readers observe either the previous
// upload or the new one in full.
func (r *GormSalesRepository) ReplaceAll(ctx context.Context, rows []*sales.Sale) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&SaleModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear sales: %w", err)
		}

		if len(rows) == 0 {
			return nil
		}

		models := make([]SaleModel, len(rows))
		for i, s := range rows {
			models[i] = *r.saleToModel(s)
		}

		if err := tx.CreateInBatches(models, salesInsertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert sales: %w", err)
		}

		return nil
	})
}

// Count returns the number of sales rows
func (r *GormSalesRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&SaleModel{}).Count(&count)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to count sales: %w", result.Error)
	}

	return count, nil
}

// saleToModel converts domain entity to database model
func (r *GormSalesRepository) saleToModel(s *sales.Sale) *SaleModel {
	return &SaleModel{
		ID:       s.ID,
		Date:     s.Date,
		SkuID:    s.SkuID,
		StoreID:  s.StoreID,
		Quantity: s.Quantity,
		Discount: s.Discount,
		Revenue:  s.Revenue,
	}
}

// modelToSale converts database model to domain entity
func (r *GormSalesRepository) modelToSale(m *SaleModel) *sales.Sale {
	return &sales.Sale{
		ID:       m.ID,
		Date:     m.Date,
		SkuID:    m.SkuID,
		StoreID:  m.StoreID,
		Quantity: m.Quantity,
		Discount: m.Discount,
		Revenue:  m.Revenue,
	}
}
