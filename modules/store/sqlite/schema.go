package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS models (
		name              TEXT    NOT NULL,
		tier              TEXT    NOT NULL,
		model             TEXT    NOT NULL,
		provider          TEXT    NOT NULL,
		context_window    INTEGER NOT NULL,
		max_output_tokens INTEGER NOT NULL,
		updated_at        TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		PRIMARY KEY (name, tier)
	)`,

	`CREATE TABLE IF NOT EXISTS prompts (
		scope      TEXT    NOT NULL,
		name       TEXT    NOT NULL,
		version    INTEGER NOT NULL,
		text       TEXT    NOT NULL,
		created_at TEXT    NOT NULL,
		PRIMARY KEY (scope, name, version)
	)`,

	`CREATE TABLE IF NOT EXISTS secrets (
		provider   TEXT PRIMARY KEY,
		secret     TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`,
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
