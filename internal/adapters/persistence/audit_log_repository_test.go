package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assortlab/noos-go/internal/adapters/persistence"
	"github.com/assortlab/noos-go/internal/domain/audit"
	"github.com/assortlab/noos-go/test/helpers"
)

func auditEntry(ts time.Time, entityType, details string) *audit.Entry {
	return &audit.Entry{
		Timestamp:  ts,
		EntityType: entityType,
		Action:     audit.ActionUpdate,
		Details:    details,
		ModifiedBy: "system",
	}
}

func TestAuditLogRepository_RecordBindsID(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormAuditLogRepository(db)
	entry := auditEntry(time.Now().UTC(), "style", "brand: Levis -> Wrangler")

	// Act
	err := repo.Record(context.Background(), entry)

	// Assert
	require.NoError(t, err)
	assert.Positive(t, entry.ID)
}

func TestAuditLogRepository_ListRecentNewestFirst(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormAuditLogRepository(db)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordBatch(context.Background(), []*audit.Entry{
		auditEntry(base, "style", "oldest"),
		auditEntry(base.Add(time.Hour), "style", "middle"),
		auditEntry(base.Add(2*time.Hour), "sku", "newest"),
	}))

	// Act
	entries, err := repo.ListRecent(context.Background(), 2)

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newest", entries[0].Details)
	assert.Equal(t, "middle", entries[1].Details)
}

func TestAuditLogRepository_ListByEntityType(t *testing.T) {
	// Arrange
	db := helpers.NewTestDB(t)
	repo := persistence.NewGormAuditLogRepository(db)
	now := time.Now().UTC()
	require.NoError(t, repo.RecordBatch(context.Background(), []*audit.Entry{
		auditEntry(now, "style", "style change"),
		auditEntry(now, "sale", "bulk replace"),
	}))

	// Act
	entries, err := repo.ListByEntityType(context.Background(), "sale", 10)

	// Assert
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bulk replace", entries[0].Details)
}
