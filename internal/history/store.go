// Package history keeps a local record of finished jobs so the dialog
// and CLI can answer "what happened to that job" after the controller has
// released it.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dreamtools/dream-background-remover/internal/model"
)

type Store struct {
	db *sql.DB
}

// Open creates the database and schema if needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			mode TEXT NOT NULL,
			state TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_finished ON jobs(finished_at);
		`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one terminal job. Message is already localized by the
// caller; the raw key/params are not persisted.
func (s *Store) Record(entry *model.HistoryEntry) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO jobs (id, target, mode, state, error_kind, message, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.JobID, entry.Target, string(entry.Mode), string(entry.State),
		entry.ErrorKind, entry.Message,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// Get returns one entry by job id.
func (s *Store) Get(jobID string) (*model.HistoryEntry, error) {
	row := s.db.QueryRow(`
		SELECT id, target, mode, state, error_kind, message, created_at, finished_at
		FROM jobs WHERE id = ?`, jobID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return entry, err
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, target, mode, state, error_kind, message, created_at, finished_at
		FROM jobs ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Prune deletes entries finished before the retention window.
func (s *Store) Prune(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	res, err := s.db.Exec(`DELETE FROM jobs WHERE finished_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.HistoryEntry, error) {
	var entry model.HistoryEntry
	var mode, state, createdAt, finishedAt string
	if err := row.Scan(&entry.JobID, &entry.Target, &mode, &state,
		&entry.ErrorKind, &entry.Message, &createdAt, &finishedAt); err != nil {
		return nil, err
	}
	entry.Mode = model.Mode(mode)
	entry.State = model.JobState(state)
	entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	entry.FinishedAt, _ = time.Parse(time.RFC3339Nano, finishedAt)
	return &entry, nil
}
