package config

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog"
)

// SetupDatabase opens the connection pool and creates the schema. The first
// connection is retried with exponential backoff so the server can start
// alongside its database.
func SetupDatabase(cfg *Config, logger zerolog.Logger) (*sqlx.DB, error) {
	db, err := Connect(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := CreateTables(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// Connect opens and pings the database without touching the schema
func Connect(cfg *Config, logger zerolog.Logger) (*sqlx.DB, error) {
	var db *sqlx.DB

	connect := func() error {
		conn, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
		if err != nil {
			return err
		}
		db = conn
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 0

	var retries uint64
	if cfg.Database.ConnectRetries > 0 {
		retries = uint64(cfg.Database.ConnectRetries)
	}

	err := backoff.RetryNotify(connect, backoff.WithMaxRetries(policy, retries), func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("database not ready")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		odoo_id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255),
		password VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'agent',
		avatar VARCHAR(8) NOT NULL DEFAULT '',
		color VARCHAR(16) NOT NULL DEFAULT '',
		is_default_password BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS claims (
		id VARCHAR(36) PRIMARY KEY,
		claim_no VARCHAR(64) UNIQUE NOT NULL,
		patient VARCHAR(255) NOT NULL,
		balance NUMERIC(14,2) NOT NULL DEFAULT 0,
		dos TIMESTAMPTZ,
		visit_type VARCHAR(64),
		acct_no VARCHAR(64),
		primary_payer VARCHAR(255),
		billed_charges NUMERIC(14,2) NOT NULL DEFAULT 0,
		priority VARCHAR(16),
		age INTEGER,
		age_bucket VARCHAR(32),
		assigned_to VARCHAR(64),
		shared_with TEXT[] NOT NULL DEFAULT '{}',
		status VARCHAR(64),
		action_taken TEXT,
		date_worked TIMESTAMPTZ,
		next_follow_up TIMESTAMPTZ,
		last_worked_by VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	// History is append-only; rows are never updated
	`CREATE TABLE IF NOT EXISTS claim_history (
		id VARCHAR(36) PRIMARY KEY,
		claim_id VARCHAR(36) NOT NULL REFERENCES claims(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		remarks TEXT NOT NULL,
		status VARCHAR(64) NOT NULL,
		action_taken TEXT NOT NULL,
		date_worked TIMESTAMPTZ NOT NULL,
		next_follow_up TIMESTAMPTZ,
		worked_by VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS activity_logs (
		id VARCHAR(36) PRIMARY KEY,
		actor VARCHAR(64) NOT NULL,
		action VARCHAR(64) NOT NULL,
		target_type VARCHAR(32) NOT NULL,
		target_id VARCHAR(64) NOT NULL,
		details TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS deleted_claims (
		id VARCHAR(36) PRIMARY KEY,
		claim_id VARCHAR(36) NOT NULL,
		claim_no VARCHAR(64) NOT NULL,
		snapshot JSONB NOT NULL,
		deleted_by VARCHAR(64) NOT NULL,
		deleted_at TIMESTAMPTZ NOT NULL
	)`,
}

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_claims_assigned_to ON claims(assigned_to)",
	"CREATE INDEX IF NOT EXISTS idx_claims_date_worked ON claims(date_worked)",
	"CREATE INDEX IF NOT EXISTS idx_claims_next_follow_up ON claims(next_follow_up)",
	"CREATE INDEX IF NOT EXISTS idx_claim_history_claim_seq ON claim_history(claim_id, seq)",
	"CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at)",
}

// CreateTables creates the necessary tables in the database
func CreateTables(db *sqlx.DB, logger zerolog.Logger) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			// indexes are not critical
			logger.Warn().Err(err).Str("statement", idx).Msg("failed to create index")
		}
	}

	return nil
}
