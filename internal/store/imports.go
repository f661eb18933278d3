package store

import (
	"database/sql"
	"time"
)

// ImportRun audits one load of an input table.
type ImportRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	Kind          string // "days" or "demand"
	Source        string // file path or ftp://host/path
	RecordsParsed sql.NullInt64
	RecordsStored sql.NullInt64
	QualityFlags  sql.NullInt64 // rows carrying at least one quality flag
	Success       bool
	ErrorMessage  sql.NullString
}

// StartImportRun creates a new import run record and returns it.
func (s *Store) StartImportRun(kind, source string) (*ImportRun, error) {
	run := &ImportRun{
		StartedAt: time.Now().UTC(),
		Kind:      kind,
		Source:    source,
	}

	result, err := s.db.Exec(`
		INSERT INTO import_runs (started_at, kind, source, success)
		VALUES (?, ?, ?, FALSE)
	`, run.StartedAt, run.Kind, run.Source)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteImportRun updates the import run with results.
func (s *Store) CompleteImportRun(run *ImportRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE import_runs SET
			finished_at = ?,
			records_parsed = ?,
			records_stored = ?,
			quality_flags = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RecordsParsed, run.RecordsStored, run.QualityFlags,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

// GetRecentImports returns the most recent import runs, newest first.
func (s *Store) GetRecentImports(limit int) ([]ImportRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, kind, source, records_parsed,
		       records_stored, quality_flags, success, error_message
		FROM import_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ImportRun
	for rows.Next() {
		var r ImportRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Kind, &r.Source,
			&r.RecordsParsed, &r.RecordsStored, &r.QualityFlags, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
