// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cosmossdk.io/math"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens and pings a connection pool.
func NewPostgresStore(ctx context.Context, cfg DBConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("dbname", cfg.DBName).Msg("Successfully connected to the PostgreSQL database!")
	return &PostgresStore{db: db}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	log.Info().Msg("Closing database connection...")
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("error closing database connection: %w", err)
	}
	return nil
}

// Ping tests if the database connection is healthy
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS fee_parameters (
			params_id SERIAL PRIMARY KEY,
			vault VARCHAR(42) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			compounder_fee_num NUMERIC(78, 0) NOT NULL, compounder_fee_den NUMERIC(78, 0) NOT NULL,
			reserve_fee_num NUMERIC(78, 0) NOT NULL, reserve_fee_den NUMERIC(78, 0) NOT NULL,
			withdrawal_fee_num NUMERIC(78, 0) NOT NULL, withdrawal_fee_den NUMERIC(78, 0) NOT NULL,
			use_dynamic_withdrawal_fee BOOLEAN NOT NULL DEFAULT FALSE,
			max_withdrawal_fee_num NUMERIC(78, 0) NOT NULL DEFAULT 0,
			max_withdrawal_fee_den NUMERIC(78, 0) NOT NULL DEFAULT 1,
			fee_only_bounty BOOLEAN NOT NULL DEFAULT FALSE
		);
		ALTER TABLE fee_parameters ADD COLUMN IF NOT EXISTS fee_only_bounty BOOLEAN NOT NULL DEFAULT FALSE;
		CREATE INDEX IF NOT EXISTS idx_fee_parameters_vault_active ON fee_parameters(vault, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS cycle_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			cycle_id UUID NOT NULL,
			cycle_number INTEGER NOT NULL,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			vault VARCHAR(42) NOT NULL,
			compounder VARCHAR(42) NOT NULL,

			-- Pre-Action State
			initial_total_staked NUMERIC(78, 0) NOT NULL,
			initial_total_shares NUMERIC(78, 0) NOT NULL,
			initial_share_price DOUBLE PRECISION NOT NULL,

			-- The Outcome
			final_total_staked NUMERIC(78, 0) NOT NULL,
			final_total_shares NUMERIC(78, 0) NOT NULL,
			final_share_price DOUBLE PRECISION NOT NULL,
			harvested_tokens TEXT[],
			result JSONB,
			attempts INTEGER NOT NULL DEFAULT 1,
			success BOOLEAN NOT NULL,
			message TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_timestamp ON cycle_snapshots(snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_cycle_snapshots_cycle ON cycle_snapshots(cycle_number DESC);

		-- Cycle counter table for persistent global cycle tracking
		CREATE TABLE IF NOT EXISTS cycle_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_cycle INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO cycle_counter (id, current_cycle)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// ResetSchema drops every table the store owns and recreates them.
func (s *PostgresStore) ResetSchema(ctx context.Context) error {
	dropTablesQuery := `
		DROP TABLE IF EXISTS cycle_snapshots CASCADE;
		DROP TABLE IF EXISTS fee_parameters CASCADE;
		DROP TABLE IF EXISTS cycle_counter CASCADE;
	`
	if _, err := s.db.ExecContext(ctx, dropTablesQuery); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	log.Warn().Msg("Dropped all tables")
	return s.EnsureSchema(ctx)
}

// parseAmount reads a NUMERIC column scanned as text.
func parseAmount(column, s string) (math.Int, error) {
	amt, ok := math.NewIntFromString(s)
	if !ok {
		return math.Int{}, fmt.Errorf("column %s holds %q, not an integer", column, s)
	}
	return amt, nil
}

var _ Store = (*PostgresStore)(nil)
