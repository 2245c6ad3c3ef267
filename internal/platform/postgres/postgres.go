package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"neuramark/internal/platform/config"
)

// Open connects to PostgreSQL with the lib/pq driver.
// Returns nil if the URL is empty (Postgres not configured).
func Open(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	return db, nil
}

// Migrate creates the tables used by the record, proof and credential stores.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS did_records (
		account_id   TEXT PRIMARY KEY,
		did_id       TEXT NOT NULL UNIQUE,
		document     JSONB NOT NULL,
		current_cid  TEXT NOT NULL,
		proof_count  INTEGER NOT NULL,
		version      BIGINT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS proofs (
		proof_id     TEXT PRIMARY KEY,
		prompt_hash  TEXT NOT NULL,
		output_hash  TEXT NOT NULL,
		prompt_cid   TEXT NOT NULL,
		output_cid   TEXT NOT NULL,
		model_info   TEXT NOT NULL,
		output_type  TEXT NOT NULL,
		tx_hash      TEXT NOT NULL,
		wallet       TEXT NOT NULL,
		user_id      TEXT,
		created_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS proofs_wallet_idx ON proofs (wallet)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		id           TEXT PRIMARY KEY,
		proof_id     TEXT NOT NULL,
		subject_did  TEXT NOT NULL,
		body         JSONB NOT NULL,
		issued_at    TIMESTAMPTZ NOT NULL
	)`,
}
