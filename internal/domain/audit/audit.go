// Package audit provides the append-only change log written alongside
// master-data mutations, bulk operations and parameter changes.
package audit

import (
	"context"
	"time"
)

// Actions recorded by the ingestion pipelines and admin operations
const (
	ActionInsert     = "INSERT"
	ActionUpdate     = "UPDATE"
	ActionDelete     = "DELETE"
	ActionActivate   = "ACTIVATE"
	ActionBulkDelete = "BULK_DELETE"
	ActionBulkInsert = "BULK_INSERT"
	ActionClearAll   = "CLEAR_ALL"
)

// Entry is one append-only audit row
type Entry struct {
	ID         int64
	Timestamp  time.Time
	EntityType string
	EntityID   int64
	Action     string
	Details    string
	ModifiedBy string
}

// Repository handles persistence of audit entries
type Repository interface {
	// Record appends a single entry
	Record(ctx context.Context, e *Entry) error

	// RecordBatch appends entries in one transaction
	RecordBatch(ctx context.Context, entries []*Entry) error

	// ListRecent retrieves the newest entries
	ListRecent(ctx context.Context, limit int) ([]*Entry, error)

	// ListByEntityType retrieves the newest entries for one entity type
	ListByEntityType(ctx context.Context, entityType string, limit int) ([]*Entry, error)
}
