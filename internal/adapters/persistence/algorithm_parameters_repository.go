package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/assortlab/noos-go/internal/domain/noos"
)

// GormParameterRepository implements noos.ParameterRepository using GORM
type GormParameterRepository struct {
	db *gorm.DB
}

// NewGormParameterRepository creates a new GORM algorithm parameter repository
func NewGormParameterRepository(db *gorm.DB) *GormParameterRepository {
	return &GormParameterRepository{db: db}
}

// FindByName retrieves a set by name. Returns nil, nil when unknown.
func (r *GormParameterRepository) FindByName(ctx context.Context, name string) (*noos.Parameters, error) {
	var model AlgorithmParametersModel
	result := r.db.WithContext(ctx).Where("parameter_set = ?", name).First(&model)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find parameter set %s: %w", name, result.Error)
	}

	return r.modelToParameters(&model), nil
}

// FindActive retrieves the single active set. Returns nil, nil when no
// set is active.
func (r *GormParameterRepository) FindActive(ctx context.Context) (*noos.Parameters, error) {
	var model AlgorithmParametersModel
	result := r.db.WithContext(ctx).Where("is_active = ?", true).First(&model)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active parameter set: %w", result.Error)
	}

	return r.modelToParameters(&model), nil
}

// FindAll retrieves every parameter set, ordered by name
func (r *GormParameterRepository) FindAll(ctx context.Context) ([]*noos.Parameters, error) {
	var models []AlgorithmParametersModel
	result := r.db.WithContext(ctx).Order("parameter_set ASC").Find(&models)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list parameter sets: %w", result.Error)
	}

	sets := make([]*noos.Parameters, len(models))
	for i := range models {
		sets[i] = r.modelToParameters(&models[i])
	}

	return sets, nil
}

// Create inserts a new set
func (r *GormParameterRepository) Create(ctx context.Context, p *noos.Parameters) error {
	model := r.parametersToModel(p)

	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		return fmt.Errorf("failed to create parameter set %s: %w", p.ParameterSet, result.Error)
	}

	p.ID = model.ID
	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

// Update saves changes to an existing set
func (r *GormParameterRepository) Update(ctx context.Context, p *noos.Parameters) error {
	model := r.parametersToModel(p)

	result := r.db.WithContext(ctx).Save(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update parameter set %s: %w", p.ParameterSet, result.Error)
	}

	return nil
}

// Delete removes a set by name. The default set cannot be deleted.
func (r *GormParameterRepository) Delete(ctx context.Context, name string) error {
	if name == noos.DefaultParameterSet {
		return fmt.Errorf("parameter set %q cannot be deleted", noos.DefaultParameterSet)
	}

	result := r.db.WithContext(ctx).
		Where("parameter_set = ?", name).
		Delete(&AlgorithmParametersModel{})

	if result.Error != nil {
		return fmt.Errorf("failed to delete parameter set %s: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("parameter set %s not found", name)
	}

	return nil
}

// ActivateExclusive marks the named set active and every other set
// inactive within a single transaction, keeping the at-most-one-active
// invariant under concurrent activations.
func (r *GormParameterRepository) ActivateExclusive(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		target := tx.Model(&AlgorithmParametersModel{}).
			Where("parameter_set = ?", name).
			Update("is_active", true)
		if target.Error != nil {
			return fmt.Errorf("failed to activate parameter set %s: %w", name, target.Error)
		}
		if target.RowsAffected == 0 {
			return fmt.Errorf("parameter set %s not found", name)
		}

		if err := tx.Model(&AlgorithmParametersModel{}).
			Where("parameter_set <> ?", name).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate other parameter sets: %w", err)
		}

		return nil
	})
}

// SeedDefault creates the "default" set when absent. Runs once at
// startup; read paths never create rows.
func (r *GormParameterRepository) SeedDefault(ctx context.Context) error {
	existing, err := r.FindByName(ctx, noos.DefaultParameterSet)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	active, err := r.FindActive(ctx)
	if err != nil {
		return err
	}

	seed := noos.DefaultParameters()
	// Seeding must not steal the active slot from a user-defined set
	seed.IsActive = active == nil

	return r.Create(ctx, seed)
}

// parametersToModel converts domain entity to database model
func (r *GormParameterRepository) parametersToModel(p *noos.Parameters) *AlgorithmParametersModel {
	return &AlgorithmParametersModel{
		ID:                     p.ID,
		ParameterSet:           p.ParameterSet,
		LiquidationThreshold:   p.LiquidationThreshold,
		BestsellerMultiplier:   p.BestsellerMultiplier,
		MinVolumeThreshold:     p.MinVolumeThreshold,
		ConsistencyThreshold:   p.ConsistencyThreshold,
		AnalysisStartDate:      p.AnalysisStartDate,
		AnalysisEndDate:        p.AnalysisEndDate,
		CoreDurationMonths:     p.CoreDurationMonths,
		BestsellerDurationDays: p.BestsellerDurationDays,
		AvailabilityPolicy:     p.AvailabilityPolicy,
		IsActive:               p.IsActive,
		CreatedAt:              p.CreatedAt,
		UpdatedAt:              p.UpdatedAt,
	}
}

// modelToParameters converts database model to domain entity
func (r *GormParameterRepository) modelToParameters(m *AlgorithmParametersModel) *noos.Parameters {
	return &noos.Parameters{
		ID:                     m.ID,
		ParameterSet:           m.ParameterSet,
		LiquidationThreshold:   m.LiquidationThreshold,
		BestsellerMultiplier:   m.BestsellerMultiplier,
		MinVolumeThreshold:     m.MinVolumeThreshold,
		ConsistencyThreshold:   m.ConsistencyThreshold,
		AnalysisStartDate:      m.AnalysisStartDate,
		AnalysisEndDate:        m.AnalysisEndDate,
		CoreDurationMonths:     m.CoreDurationMonths,
		BestsellerDurationDays: m.BestsellerDurationDays,
		AvailabilityPolicy:     m.AvailabilityPolicy,
		IsActive:               m.IsActive,
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
}
