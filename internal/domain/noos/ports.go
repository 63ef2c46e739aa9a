package noos

import "context"

// ResultRepository handles persistence of classification results
type ResultRepository interface {
	// ReplaceAll deletes every previous result and batch-inserts the new
	// rows in one transaction, so concurrent readers see either the old
	// run or the new run, never a mix.
	ReplaceAll(ctx context.Context, results []*Result) error

	// FindAll retrieves results, newest run first, ordered by category and style
	FindAll(ctx context.Context, limit int) ([]*Result, error)

	// FindByType retrieves results of one classification bucket
	FindByType(ctx context.Context, t Type, limit int) ([]*Result, error)

	// FindByRun retrieves results produced by a specific algorithm run
	FindByRun(ctx context.Context, runID int64) ([]*Result, error)

	// LatestRunID returns the most recent algorithmRunId, or 0 when no
	// results exist.
	LatestRunID(ctx context.Context) (int64, error)

	// Summarize aggregates the stored results per type and category
	Summarize(ctx context.Context) (*Summary, error)

	// Count returns the number of stored results
	Count(ctx context.Context) (int64, error)
}

// ParameterRepository handles persistence of algorithm parameter sets
type ParameterRepository interface {
	// FindByName retrieves a set by name. Returns nil, nil when unknown.
	FindByName(ctx context.Context, name string) (*Parameters, error)

	// FindActive retrieves the single active set. Returns nil, nil when
	// no set is active.
	FindActive(ctx context.Context) (*Parameters, error)

	// FindAll retrieves every parameter set, ordered by name
	FindAll(ctx context.Context) ([]*Parameters, error)

	// Create inserts a new set
	Create(ctx context.Context, p *Parameters) error

	// Update saves changes to an existing set
	Update(ctx context.Context, p *Parameters) error

	// Delete removes a set by name. The default set cannot be deleted.
	Delete(ctx context.Context, name string) error

	// ActivateExclusive marks the named set active and every other set
	// inactive within a single transaction.
	ActivateExclusive(ctx context.Context, name string) error

	// SeedDefault creates the "default" set when absent. Reads never
	// create it; this runs once at startup.
	SeedDefault(ctx context.Context) error
}
