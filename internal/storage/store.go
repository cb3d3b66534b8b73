// Package storage implements A6: persistence of run-report and
// diagnostic-dump history, repurposed from the teacher's SQLite schema
// for check/version-cache history. Policy and config in cuengine are
// file-based (INI plus the credentials JSON), not database-backed, so
// the teacher's config/policy/queue tables have no cuengine analogue
// and are not carried forward; the connection-setup idiom (WAL mode,
// single-writer pool) is.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store persists run reports and diagnostic dumps in a single SQLite
// database file.
type Store struct {
	db *sql.DB
}

// Open creates (or attaches to) the database at dbPath, enables WAL
// mode, and ensures the schema exists.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database at %s: %w", dbPath, err)
	}

	// SQLite serializes writers; a single connection avoids
	// SQLITE_BUSY churn under WAL.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database at %s: %w", dbPath, err)
	}

	s := &Store{db: db}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	log.Printf("storage: database ready at %s", dbPath)
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// ClearAll deletes every stored run report and diagnostic dump,
// backing the CLI's --clear-logs flag. The schema itself is left in
// place; only row data is removed.
func (s *Store) ClearAll() error {
	for _, table := range []string{"run_reports", "diagnostic_dumps"} {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS run_reports (
			run_id             TEXT PRIMARY KEY,
			engine_version     TEXT NOT NULL,
			started_at         TIMESTAMP NOT NULL,
			ended_at           TIMESTAMP NOT NULL,
			containers_checked INTEGER NOT NULL,
			containers_updated INTEGER NOT NULL,
			containers_failed  INTEGER NOT NULL,
			containers_skipped INTEGER NOT NULL,
			updates_json       TEXT NOT NULL,
			errors_json        TEXT NOT NULL,
			warnings_json      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_reports_started_at ON run_reports(started_at)`,
		`CREATE TABLE IF NOT EXISTS diagnostic_dumps (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			container_name TEXT NOT NULL,
			captured_at    TIMESTAMP NOT NULL,
			payload_json   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_diagnostic_dumps_container ON diagnostic_dumps(container_name, captured_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}
