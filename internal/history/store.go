// Package history records every run in a local SQLite ledger so `list`
// and batch summaries can report past outcomes.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"noterang/internal/workflow"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	notebook_id      TEXT,
	pdf_path         TEXT,
	slide_count      INTEGER NOT NULL DEFAULT 0,
	sources_count    INTEGER NOT NULL DEFAULT 0,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	success          INTEGER NOT NULL,
	error            TEXT,
	method           TEXT,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at DESC);
`

// Run is one ledger row.
type Run struct {
	ID              string
	Title           string
	NotebookID      string
	PDFPath         string
	SlideCount      int
	SourcesCount    int
	DurationSeconds int
	Success         bool
	Error           string
	Method          string
	CreatedAt       time.Time
}

// Store is the ledger handle.
type Store struct {
	db *sql.DB
}

// Open creates or opens the ledger at path, applying the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts one run outcome and returns its id.
func (s *Store) Record(ctx context.Context, title, method string, res workflow.Result) (string, error) {
	now := time.Now()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, title, notebook_id, pdf_path, slide_count, sources_count,
			duration_seconds, success, error, method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, title, res.NotebookID, res.PDFPath, res.SlideCount, res.SourcesCount,
		res.DurationSeconds, boolInt(res.OK), res.Error, method, now.UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, notebook_id, pdf_path, slide_count, sources_count,
			duration_seconds, success, error, method, created_at
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			success int
			created string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.NotebookID, &r.PDFPath, &r.SlideCount,
			&r.SourcesCount, &r.DurationSeconds, &success, &r.Error, &r.Method, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Success = success != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Published returns successful runs, newest first, for the gallery.
func (s *Store) Published(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, notebook_id, pdf_path, slide_count, sources_count,
			duration_seconds, success, error, method, created_at
		FROM runs WHERE success = 1 ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query published runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			success int
			created string
		)
		if err := rows.Scan(&r.ID, &r.Title, &r.NotebookID, &r.PDFPath, &r.SlideCount,
			&r.SourcesCount, &r.DurationSeconds, &success, &r.Error, &r.Method, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Success = success != 0
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
