package sales

import (
	"context"
	"time"
)

// Repository handles persistence of sales rows
type Repository interface {
	// FindBetween retrieves sales within [start, end] inclusive, ordered
	// by date. Nil bounds are open: FindBetween(ctx, nil, nil) loads all.
	FindBetween(ctx context.Context, start, end *time.Time) ([]*Sale, error)

	// FindAll retrieves every sale, ordered by date
	FindAll(ctx context.Context) ([]*Sale, error)

	// ReplaceAll deletes every existing sale and batch-inserts the given
	// rows inside a single transaction.
	ReplaceAll(ctx context.Context, rows []*Sale) error

	// Count returns the number of sales rows
	Count(ctx context.Context) (int64, error)
}
