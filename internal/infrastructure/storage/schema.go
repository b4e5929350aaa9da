package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema statements are idempotent; Init runs them at startup. Refresh runs
// never drop or truncate these tables. The corpus only grows or updates in
// place, and the audit log is append-only.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS statute_reference (
		id BIGSERIAL PRIMARY KEY,
		state TEXT NOT NULL,
		legacy_code TEXT NOT NULL,
		legacy_section TEXT NOT NULL,
		new_code TEXT NOT NULL,
		new_section TEXT NOT NULL,
		title TEXT NOT NULL,
		keywords TEXT[] NOT NULL DEFAULT '{}',
		source_url TEXT,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (state, legacy_code, legacy_section, new_code, new_section)
	)`,
	`CREATE TABLE IF NOT EXISTS precedent_corpus (
		id BIGSERIAL PRIMARY KEY,
		state TEXT NOT NULL,
		title TEXT NOT NULL,
		citation TEXT NOT NULL,
		court TEXT NOT NULL,
		year INT,
		topics TEXT[] NOT NULL DEFAULT '{}',
		snippet TEXT NOT NULL,
		source_url TEXT,
		inserted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (state, citation)
	)`,
	`CREATE TABLE IF NOT EXISTS scheduler_run_audit (
		id BIGSERIAL PRIMARY KEY,
		trigger TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		ended_at TIMESTAMPTZ,
		urls_attempted INT NOT NULL DEFAULT 0,
		inserted_count INT NOT NULL DEFAULT 0,
		updated_count INT NOT NULL DEFAULT 0,
		rejected_count INT NOT NULL DEFAULT 0,
		failed_urls JSONB NOT NULL DEFAULT '[]',
		error_message TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS data_quality_history (
		id BIGSERIAL PRIMARY KEY,
		captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		source TEXT NOT NULL,
		run_id BIGINT,
		total_records INT NOT NULL DEFAULT 0,
		trusted_records INT NOT NULL DEFAULT 0,
		high_quality_records INT NOT NULL DEFAULT 0,
		trusted_source_pct NUMERIC(6, 2) NOT NULL DEFAULT 0,
		high_quality_pct NUMERIC(6, 2) NOT NULL DEFAULT 0,
		runs_in_window INT NOT NULL DEFAULT 0,
		urls_attempted INT NOT NULL DEFAULT 0,
		records_inserted INT NOT NULL DEFAULT 0,
		url_failures INT NOT NULL DEFAULT 0
	)`,
}

// Init creates the corpus and audit tables if they do not exist.
func Init(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
