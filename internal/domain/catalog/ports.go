package catalog

import "context"

// StyleRepository handles persistence of styles
type StyleRepository interface {
	// FindByCode retrieves a style by its natural key. Returns nil, nil when unknown.
	FindByCode(ctx context.Context, styleCode string) (*Style, error)

	// FindAll retrieves every style, ordered by id
	FindAll(ctx context.Context) ([]*Style, error)

	// CodeToID returns the styleCode -> id lookup map for FK resolution
	CodeToID(ctx context.Context) (map[string]int64, error)

	// ApplyBatch inserts and updates styles in a single transaction
	ApplyBatch(ctx context.Context, inserts []*Style, updates []*Style) error

	// Count returns the number of styles
	Count(ctx context.Context) (int64, error)
}

// SkuRepository handles persistence of SKUs
type SkuRepository interface {
	// FindByCode retrieves a SKU by its natural key. Returns nil, nil when unknown.
	FindByCode(ctx context.Context, code string) (*SKU, error)

	// FindAll retrieves every SKU, ordered by id
	FindAll(ctx context.Context) ([]*SKU, error)

	// CodeToID returns the sku -> id lookup map for FK resolution
	CodeToID(ctx context.Context) (map[string]int64, error)

	// StyleIDBySkuID returns the skuId -> styleId projection used by the
	// classification engine to join sales to styles without per-row queries.
	StyleIDBySkuID(ctx context.Context) (map[int64]int64, error)

	// ApplyBatch inserts and updates SKUs in a single transaction
	ApplyBatch(ctx context.Context, inserts []*SKU, updates []*SKU) error

	// Count returns the number of SKUs
	Count(ctx context.Context) (int64, error)
}

// StoreRepository handles persistence of stores
type StoreRepository interface {
	// FindByBranch retrieves a store by its natural key. Returns nil, nil when unknown.
	FindByBranch(ctx context.Context, branch string) (*Store, error)

	// FindAll retrieves every store, ordered by id
	FindAll(ctx context.Context) ([]*Store, error)

	// BranchToID returns the branch -> id lookup map for FK resolution
	BranchToID(ctx context.Context) (map[string]int64, error)

	// ApplyBatch inserts and updates stores in a single transaction
	ApplyBatch(ctx context.Context, inserts []*Store, updates []*Store) error

	// Count returns the number of stores
	Count(ctx context.Context) (int64, error)
}
