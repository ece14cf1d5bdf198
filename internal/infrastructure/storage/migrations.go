package storage

import (
	"database/sql"
	"fmt"
	"log"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_matches_table",
		Up:      migration002AddMatchesTable,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		log.Printf("Running migration %d: %s", migration.Version, migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		_, err = tx.Exec(`
			INSERT INTO schema_migrations (version, name) VALUES (?, ?)
		`, migration.Version, migration.Name)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

// migration001InitialSchema creates the batch and record tables.
// Amounts are stored as decimal strings, never as REAL: a float column
// would silently corrupt the exact amounts the parsers worked to preserve.
func migration001InitialSchema(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS statement_batches (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			institution TEXT NOT NULL,
			format_type TEXT NOT NULL,
			uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_batches (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS external_records (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL REFERENCES statement_batches(id),
			occurred_on TEXT NOT NULL,
			amount TEXT NOT NULL,
			description TEXT,
			external_ref TEXT,
			raw_source TEXT,
			source_format TEXT NOT NULL,
			confidence REAL NOT NULL,
			seq INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS internal_records (
			id TEXT PRIMARY KEY,
			batch_id TEXT NOT NULL REFERENCES ledger_batches(id),
			occurred_on TEXT NOT NULL,
			amount TEXT NOT NULL,
			description TEXT,
			external_ref TEXT,
			raw_source TEXT,
			source_format TEXT NOT NULL,
			confidence REAL NOT NULL,
			seq INTEGER NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_external_records_batch
		 ON external_records(batch_id)`,

		`CREATE INDEX IF NOT EXISTS idx_internal_records_batch
		 ON internal_records(batch_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// migration002AddMatchesTable creates the matches table. The unique indexes
// are the database-level guarantee behind claim exclusivity: an external
// record gets at most one match ever, an internal record is referenced by at
// most one match.
func migration002AddMatchesTable(db *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			external_id TEXT NOT NULL REFERENCES external_records(id),
			internal_id TEXT REFERENCES internal_records(id),
			kind TEXT NOT NULL,
			confidence REAL NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_external
		 ON matches(external_id)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_matches_internal
		 ON matches(internal_id) WHERE internal_id IS NOT NULL`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}
