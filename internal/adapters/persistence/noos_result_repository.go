package persistence

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/noos"
)

// resultInsertBatchSize bounds the rows per INSERT when persisting a run
const resultInsertBatchSize = 50

// GormNoosResultRepository implements noos.ResultRepository using GORM
type GormNoosResultRepository struct {
	db *gorm.DB
}

// NewGormNoosResultRepository creates a new GORM NOOS result repository
func NewGormNoosResultRepository(db *gorm.DB) *GormNoosResultRepository {
	return &GormNoosResultRepository{db: db}
}

// ReplaceAll deletes every previous result and batch-inserts the new rows
// in one transaction. Concurrent runs therefore race at transaction
// granularity: the last-committed run wins as a whole, and readers never
// observe a mix of two runs.
func (r *GormNoosResultRepository) ReplaceAll(ctx context.Context, results []*noos.Result) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&NoosResultModel{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous results: %w", err)
		}

		if len(results) == 0 {
			return nil
		}

		models := make([]NoosResultModel, len(results))
		for i, res := range results {
			models[i] = *r.resultToModel(res)
		}

		if err := tx.CreateInBatches(models, resultInsertBatchSize).Error; err != nil {
			return fmt.Errorf("failed to insert results: %w", err)
		}

		return nil
	})
}

// FindAll retrieves stored results ordered by category and style
func (r *GormNoosResultRepository) FindAll(ctx context.Context, limit int) ([]*noos.Result, error) {
	var models []NoosResultModel
	query := r.db.WithContext(ctx).Order("category ASC, style_code ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	return r.modelsToResults(models), nil
}

// FindByType retrieves results of one classification bucket
func (r *GormNoosResultRepository) FindByType(ctx context.Context, t noos.Type, limit int) ([]*noos.Result, error) {
	var models []NoosResultModel
	query := r.db.WithContext(ctx).
		Where("type = ?", string(t)).
		Order("category ASC, style_code ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list results by type %s: %w", t, err)
	}

	return r.modelsToResults(models), nil
}

// FindByRun retrieves results produced by a specific algorithm run
func (r *GormNoosResultRepository) FindByRun(ctx context.Context, runID int64) ([]*noos.Result, error) {
	var models []NoosResultModel
	result := r.db.WithContext(ctx).
		Where("algorithm_run_id = ?", runID).
		Order("category ASC, style_code ASC").
		Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list results for run %d: %w", runID, result.Error)
	}

	return r.modelsToResults(models), nil
}

// LatestRunID returns the most recent algorithmRunId, or 0 when no
// results exist.
func (r *GormNoosResultRepository) LatestRunID(ctx context.Context) (int64, error) {
	var runID *int64
	result := r.db.WithContext(ctx).
		Model(&NoosResultModel{}).
		Select("MAX(algorithm_run_id)").
		Scan(&runID)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to find latest run: %w", result.Error)
	}

	if runID == nil {
		return 0, nil
	}

	return *runID, nil
}

// Summarize aggregates the stored results per type and category
func (r *GormNoosResultRepository) Summarize(ctx context.Context) (*noos.Summary, error) {
	summary := &noos.Summary{}

	runID, err := r.LatestRunID(ctx)
	if err != nil {
		return nil, err
	}
	summary.AlgorithmRunID = runID

	if err := r.db.WithContext(ctx).Model(&NoosResultModel{}).Count(&summary.TotalStyles).Error; err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}

	type typeRow struct {
		Type  string
		Count int64
	}
	var typeRows []typeRow
	if err := r.db.WithContext(ctx).
		Model(&NoosResultModel{}).
		Select("type, COUNT(*) as count").
		Group("type").
		Order("type ASC").
		Scan(&typeRows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate results by type: %w", err)
	}
	for _, row := range typeRows {
		summary.ByType = append(summary.ByType, noos.TypeCount{
			Type:  noos.Type(row.Type),
			Count: row.Count,
		})
	}

	type categoryRow struct {
		Category string
		Revenue  decimal.Decimal
		Styles   int64
	}
	var categoryRows []categoryRow
	if err := r.db.WithContext(ctx).
		Model(&NoosResultModel{}).
		Select("category, SUM(total_revenue) as revenue, COUNT(*) as styles").
		Group("category").
		Order("category ASC").
		Scan(&categoryRows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate results by category: %w", err)
	}
	for _, row := range categoryRows {
		summary.ByCategory = append(summary.ByCategory, noos.CategoryRevenue{
			Category: row.Category,
			Revenue:  row.Revenue,
			Styles:   row.Styles,
		})
	}

	var latest NoosResultModel
	result := r.db.WithContext(ctx).Order("calculated_at DESC").First(&latest)
	if result.Error == nil {
		calculatedAt := latest.CalculatedAt
		summary.CalculatedAt = &calculatedAt
	} else if result.Error != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to read latest calculation time: %w", result.Error)
	}

	return summary, nil
}

// Count returns the number of stored results
func (r *GormNoosResultRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&NoosResultModel{}).Count(&count)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to count results: %w", result.Error)
	}

	return count, nil
}

func (r *GormNoosResultRepository) modelsToResults(models []NoosResultModel) []*noos.Result {
	results := make([]*noos.Result, len(models))
	for i := range models {
		results[i] = r.modelToResult(&models[i])
	}
	return results
}

// resultToModel converts domain entity to database model
func (r *GormNoosResultRepository) resultToModel(res *noos.Result) *NoosResultModel {
	return &NoosResultModel{
		ID:                   res.ID,
		AlgorithmRunID:       res.AlgorithmRunID,
		Category:             res.Category,
		StyleCode:            res.StyleCode,
		StyleROS:             res.StyleROS,
		Type:                 string(res.Type),
		StyleRevContribution: res.StyleRevContribution,
		TotalQuantitySold:    res.TotalQuantitySold,
		TotalRevenue:         res.TotalRevenue,
		DaysAvailable:        res.DaysAvailable,
		DaysWithSales:        res.DaysWithSales,
		AvgDiscount:          res.AvgDiscount,
		CalculatedAt:         res.CalculatedAt,
	}
}

// modelToResult converts database model to domain entity
func (r *GormNoosResultRepository) modelToResult(m *NoosResultModel) *noos.Result {
	return &noos.Result{
		ID:                   m.ID,
		AlgorithmRunID:       m.AlgorithmRunID,
		Category:             m.Category,
		StyleCode:            m.StyleCode,
		StyleROS:             m.StyleROS,
		Type:                 noos.Type(m.Type),
		StyleRevContribution: m.StyleRevContribution,
		TotalQuantitySold:    m.TotalQuantitySold,
		TotalRevenue:         m.TotalRevenue,
		DaysAvailable:        m.DaysAvailable,
		DaysWithSales:        m.DaysWithSales,
		AvgDiscount:          m.AvgDiscount,
		CalculatedAt:         m.CalculatedAt,
	}
}
