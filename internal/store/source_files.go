package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// SourceFile is a retrieved input file kept for provenance.
type SourceFile struct {
	ID          int64
	ImportRunID sql.NullInt64
	FetchedAt   time.Time
	Kind        string
	Source      string
	ContentHash string
}

// StoreSourceFile stores a compressed copy of a retrieved input file.
// Returns the file ID, or 0 if identical content was already stored.
func (s *Store) StoreSourceFile(runID *int64, kind, source string, content []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(content); err != nil {
		return 0, fmt.Errorf("compress source file: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(content)

	var importRunID sql.NullInt64
	if runID != nil {
		importRunID = sql.NullInt64{Int64: *runID, Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO source_files (import_run_id, fetched_at, kind, source, content_compressed, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING
	`, importRunID, time.Now().UTC(), kind, source, buf.Bytes(), hex.EncodeToString(hash[:]))
	if err != nil {
		return 0, fmt.Errorf("insert source file: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return result.LastInsertId()
}

// GetSourceFile retrieves and decompresses a stored file by ID.
func (s *Store) GetSourceFile(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT content_compressed FROM source_files WHERE id = ?`, id).
		Scan(&compressed)
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// ListSourceFiles returns stored file metadata, newest first.
func (s *Store) ListSourceFiles(limit int) ([]SourceFile, error) {
	rows, err := s.db.Query(`
		SELECT id, import_run_id, fetched_at, kind, source, content_hash
		FROM source_files
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []SourceFile
	for rows.Next() {
		var f SourceFile
		if err := rows.Scan(&f.ID, &f.ImportRunID, &f.FetchedAt, &f.Kind, &f.Source, &f.ContentHash); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
