// Package postgres opens the shared database handle and owns the schema.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables the stores expect. Statements are
// idempotent so startup can run them unconditionally.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS list_versions (
			id UUID PRIMARY KEY,
			source TEXT NOT NULL,
			format TEXT NOT NULL,
			source_uri TEXT NOT NULL,
			retrieved_at TIMESTAMPTZ NOT NULL,
			content_hash TEXT NOT NULL,
			parser_version TEXT NOT NULL,
			record_count INTEGER NOT NULL DEFAULT 0,
			address_count INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			failure_reason TEXT NOT NULL DEFAULT '',
			promoted_at TIMESTAMPTZ,
			promoted_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS list_versions_one_active
			ON list_versions (source) WHERE status = 'active'`,
		`CREATE INDEX IF NOT EXISTS list_versions_source_created
			ON list_versions (source, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS sanction_entries (
			version_id UUID NOT NULL REFERENCES list_versions(id),
			chain TEXT NOT NULL,
			raw_address TEXT NOT NULL,
			canonical_address TEXT NOT NULL,
			entity_uid TEXT NOT NULL,
			entity_name TEXT NOT NULL,
			program TEXT NOT NULL,
			PRIMARY KEY (version_id, chain, canonical_address)
		)`,

		`CREATE TABLE IF NOT EXISTS screening_decisions (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			chain TEXT NOT NULL,
			raw_address TEXT NOT NULL,
			canonical_address TEXT NOT NULL,
			match_type TEXT NOT NULL,
			risk_score INTEGER NOT NULL,
			action TEXT NOT NULL,
			annotation TEXT NOT NULL DEFAULT '',
			vendor TEXT NOT NULL DEFAULT '',
			list_version_ids UUID[] NOT NULL DEFAULT '{}',
			case_id UUID,
			request_id TEXT NOT NULL DEFAULT '',
			screened_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS screening_decisions_address
			ON screening_decisions (chain, canonical_address, seq DESC)`,

		`CREATE TABLE IF NOT EXISTS cases (
			id UUID PRIMARY KEY,
			chain TEXT NOT NULL,
			canonical_address TEXT NOT NULL,
			entity_uid TEXT NOT NULL DEFAULT '',
			entity_name TEXT NOT NULL DEFAULT '',
			program TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			risk_score INTEGER NOT NULL,
			opened_at TIMESTAMPTZ NOT NULL,
			sla_deadline TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			closed_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS cases_open_by_address
			ON cases (chain, canonical_address) WHERE closed_at IS NULL`,
		`CREATE INDEX IF NOT EXISTS cases_status ON cases (status)`,

		`CREATE TABLE IF NOT EXISTS case_actions (
			seq BIGSERIAL PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES cases(id),
			actor TEXT NOT NULL,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS case_notes (
			seq BIGSERIAL PRIMARY KEY,
			case_id UUID NOT NULL REFERENCES cases(id),
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS audit_outbox (
			seq BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			published_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS audit_outbox_unpublished
			ON audit_outbox (seq) WHERE published_at IS NULL`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
