package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for appointment storage
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	tables := []string{
		createAppointmentsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []string{
		createAppointmentsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

const createAppointmentsTable = `
CREATE TABLE IF NOT EXISTS appointments (
	id VARCHAR(64) PRIMARY KEY,
	requester_identity VARCHAR(255) NOT NULL,
	target_identity VARCHAR(255) NOT NULL,
	scheduled_date VARCHAR(10) NOT NULL,
	scheduled_time VARCHAR(5) NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	status VARCHAR(16) NOT NULL DEFAULT 'pending',
	rejection_reason TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT appointments_status_check CHECK (status IN ('pending', 'confirmed', 'rejected'))
);`

const createAppointmentsIndexes = `
CREATE INDEX IF NOT EXISTS idx_appointments_requester ON appointments (requester_identity, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_appointments_target ON appointments (target_identity, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments (status);`
