package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/healthspace/dlt-portal/pkg/config"
	"github.com/healthspace/dlt-portal/pkg/logger"
	_ "github.com/lib/pq"
)

const pingTimeout = 5 * time.Second

// DB wraps the appointment store's connection pool
type DB struct {
	*sql.DB
	logger *logger.Logger
}

// NewConnection opens and verifies the Postgres connection for appointment
// storage. The pool is sized from configuration and the initial ping runs
// under a bounded deadline.
func NewConnection(cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"host": cfg.Host,
		"name": cfg.Name,
	}).Info("Database connection established")

	return &DB{DB: sqlDB, logger: log}, nil
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

// Health pings the database within a bounded deadline
func (db *DB) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	return db.PingContext(ctx)
}
