package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS days (
    date TEXT PRIMARY KEY,
    inflow REAL,
    storage REAL
);

CREATE TABLE IF NOT EXISTS demand (
    water_day INTEGER PRIMARY KEY,
    demand REAL NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "Import audit and source files",
		SQL: `
CREATE TABLE IF NOT EXISTS import_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    kind TEXT NOT NULL,
    source TEXT NOT NULL,
    records_parsed INTEGER,
    records_stored INTEGER,
    quality_flags INTEGER,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_import_runs_started ON import_runs(started_at);

CREATE TABLE IF NOT EXISTS source_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    import_run_id INTEGER REFERENCES import_runs(id),
    fetched_at DATETIME NOT NULL,
    kind TEXT NOT NULL,
    source TEXT NOT NULL,
    content_compressed BLOB NOT NULL,
    content_hash TEXT NOT NULL UNIQUE
);
`,
	},
	{
		Version:     3,
		Description: "Evaluation runs and traces",
		SQL: `
CREATE TABLE IF NOT EXISTS evaluation_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    policy_name TEXT NOT NULL,
    mode TEXT NOT NULL,
    fit_historical BOOLEAN NOT NULL DEFAULT FALSE,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    days INTEGER NOT NULL,
    score REAL,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE TABLE IF NOT EXISTS trace_rows (
    run_id INTEGER NOT NULL REFERENCES evaluation_runs(id),
    date TEXT NOT NULL,
    inflow REAL,
    storage REAL,
    simulated_storage REAL,
    simulated_release REAL,
    spill REAL,
    demand REAL,
    target REAL,
    policy TEXT,
    PRIMARY KEY (run_id, date)
);
`,
	},
	{
		Version:     4,
		Description: "Per-day flood flag on traces",
		SQL: `
ALTER TABLE trace_rows ADD COLUMN flood BOOLEAN NOT NULL DEFAULT FALSE;
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
