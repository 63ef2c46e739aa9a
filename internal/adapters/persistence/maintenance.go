package persistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Maintenance bundles the destructive admin operations that span tables
type Maintenance struct {
	db *gorm.DB
}

// NewMaintenance creates a new maintenance helper
func NewMaintenance(db *gorm.DB) *Maintenance {
	return &Maintenance{db: db}
}

// clearOrder lists the tables in FK-safe deletion order: referencing
// tables first, referenced masters after.
var clearOrder = []string{
	"sales",
	"skus",
	"styles",
	"stores",
	"tasks",
	"noos_results",
}

// ClearAll purges every data table in FK-safe order within a single
// transaction, then resets the identity counters so a fresh start
// numbers rows from 1 again. Parameter sets and audit history survive.
func (m *Maintenance) ClearAll(ctx context.Context) error {
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range clearOrder {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return m.resetIdentities(tx)
	})
	if err != nil {
		return fmt.Errorf("failed to clear all data: %w", err)
	}
	return nil
}

// resetIdentities rewinds auto-increment counters, dialect-aware:
// sqlite keeps them in sqlite_sequence, postgres in per-table sequences.
func (m *Maintenance) resetIdentities(tx *gorm.DB) error {
	switch tx.Dialector.Name() {
	case "sqlite":
		for _, table := range clearOrder {
			if err := tx.Exec("DELETE FROM sqlite_sequence WHERE name = ?", table).Error; err != nil {
				// sqlite_sequence only exists once an AUTOINCREMENT table
				// has been written to
				continue
			}
		}
	case "postgres":
		for _, table := range clearOrder {
			stmt := fmt.Sprintf("ALTER SEQUENCE IF EXISTS %s_id_seq RESTART WITH 1", table)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("failed to reset sequence for %s: %w", table, err)
			}
		}
	}
	return nil
}
