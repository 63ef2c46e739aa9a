package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/catalog"
)

// GormStoreRepository implements catalog.StoreRepository using GORM
type GormStoreRepository struct {
	db *gorm.DB
}

// NewGormStoreRepository creates a new GORM store repository
func NewGormStoreRepository(db *gorm.DB) *GormStoreRepository {
	return &GormStoreRepository{db: db}
}

// FindByBranch retrieves a store by its natural key. Returns nil, nil when unknown.
func (r *GormStoreRepository) FindByBranch(ctx context.Context, branch string) (*catalog.Store, error) {
	var model StoreModel
	result := r.db.WithContext(ctx).Where("branch = ?", branch).First(&model)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find store %s: %w", branch, result.Error)
	}

	return r.modelToStore(&model), nil
}

// FindAll retrieves every store, ordered by id
func (r *GormStoreRepository) FindAll(ctx context.Context) ([]*catalog.Store, error) {
	var models []StoreModel
	result := r.db.WithContext(ctx).Order("id ASC").Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list stores: %w", result.Error)
	}

	stores := make([]*catalog.Store, len(models))
	for i := range models {
		stores[i] = r.modelToStore(&models[i])
	}

	return stores, nil
}

// BranchToID returns the branch -> id lookup map for FK resolution
func (r *GormStoreRepository) BranchToID(ctx context.Context) (map[string]int64, error) {
	type pair struct {
		Branch string
		ID     int64
	}

	var rows []pair
	result := r.db.WithContext(ctx).
		Model(&StoreModel{}).
		Select("branch, id").
		Scan(&rows)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to load store lookup: %w", result.Error)
	}

	lookup := make(map[string]int64, len(rows))
	for _, row := range rows {
		lookup[row.Branch] = row.ID
	}

	return lookup, nil
}

// ApplyBatch inserts and updates stores in a single transaction
func (r *GormStoreRepository) ApplyBatch(ctx context.Context, inserts []*catalog.Store, updates []*catalog.Store) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, st := range inserts {
			model := r.storeToModel(st)
			if err := tx.Create(model).Error; err != nil {
				return fmt.Errorf("failed to insert store %s: %w", st.Branch, err)
			}
			st.ID = model.ID
		}
		for _, st := range updates {
			if err := tx.Save(r.storeToModel(st)).Error; err != nil {
				return fmt.Errorf("failed to update store %s: %w", st.Branch, err)
			}
		}
		return nil
	})
}

// Count returns the number of stores
func (r *GormStoreRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&StoreModel{}).Count(&count)

	if result.Error != nil {
		return 0, fmt.Errorf("failed to count stores: %w", result.Error)
	}

	return count, nil
}

// storeToModel converts domain entity to database model
func (r *GormStoreRepository) storeToModel(st *catalog.Store) *StoreModel {
	return &StoreModel{
		ID:     st.ID,
		Branch: st.Branch,
		City:   st.City,
	}
}

// modelToStore converts database model to domain entity
func (r *GormStoreRepository) modelToStore(m *StoreModel) *catalog.Store {
	return &catalog.Store{
		ID:     m.ID,
		Branch: m.Branch,
		City:   m.City,
	}
}
