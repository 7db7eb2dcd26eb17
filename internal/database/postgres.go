// Package database provides PostgreSQL persistence for publish jobs.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 5 * time.Second
)

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Connect opens a pooled PostgreSQL connection and verifies it with a
// ping.
func Connect(cfg Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Schema is the publish_jobs table definition. Result and error are JSONB
// because their shape follows the domain types, not relational queries.
const Schema = `
CREATE TABLE IF NOT EXISTS publish_jobs (
	id                 TEXT PRIMARY KEY,
	bundle_id          TEXT NOT NULL,
	platform           TEXT NOT NULL,
	mode               TEXT NOT NULL DEFAULT '',
	requested_datetime TEXT NOT NULL DEFAULT '',
	state              TEXT NOT NULL,
	result             JSONB,
	error_info         JSONB,
	attempt_count      INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_publish_jobs_state ON publish_jobs (state);
CREATE INDEX IF NOT EXISTS idx_publish_jobs_created_at ON publish_jobs (created_at DESC);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
