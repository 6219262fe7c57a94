// Package history keeps a log of pipeline runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"
)

// ErrNotFound is returned by Get for unknown run ids
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL,
	mode         TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	preview_url  TEXT NOT NULL DEFAULT '',
	sandbox_id   TEXT NOT NULL DEFAULT '',
	file_count   INTEGER NOT NULL DEFAULT 0,
	error_count  INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL,
	result       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);
CREATE INDEX IF NOT EXISTS idx_runs_session_id ON runs(session_id);
`

// Run is one recorded pipeline run
type Run struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"sessionId"`
	Mode        string          `json:"mode"`
	Description string          `json:"description"`
	PreviewURL  string          `json:"previewUrl,omitempty"`
	SandboxID   string          `json:"sandboxId,omitempty"`
	FileCount   int             `json:"fileCount"`
	ErrorCount  int             `json:"errorCount"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	FinishedAt  time.Time       `json:"finishedAt"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// Validate checks that the run can be stored
func (r Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if r.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		return fmt.Errorf("finished_at must not be before started_at")
	}
	if len(r.Result) > 0 && !json.Valid(r.Result) {
		return fmt.Errorf("result must be valid JSON")
	}
	return nil
}

// Store is the SQLite-backed run log
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (and if needed creates) the run log at dsn.
// In-memory databases are pinned to a single connection so every caller sees the same data.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	inMemory := isMemoryDSN(dsn)
	if !inMemory && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("history store opened", zap.String("dsn", dsn), zap.Bool("in_memory", inMemory))
	return &Store{db: db, logger: logger}, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a run, replacing any earlier record with the same id
func (s *Store) Record(ctx context.Context, run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	result := string(run.Result)
	if result == "" {
		result = "{}"
	}

	query := `
		INSERT INTO runs (
			id, session_id, mode, description, preview_url, sandbox_id,
			file_count, error_count, error, started_at, finished_at, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			preview_url = excluded.preview_url,
			sandbox_id = excluded.sandbox_id,
			file_count = excluded.file_count,
			error_count = excluded.error_count,
			error = excluded.error,
			finished_at = excluded.finished_at,
			result = excluded.result
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.SessionID,
		run.Mode,
		run.Description,
		run.PreviewURL,
		run.SandboxID,
		run.FileCount,
		run.ErrorCount,
		run.Error,
		run.StartedAt.UnixMilli(),
		run.FinishedAt.UnixMilli(),
		result,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

const summaryColumns = `id, session_id, mode, description, preview_url, sandbox_id,
	file_count, error_count, error, started_at, finished_at`

// List returns the most recent runs, newest first, without their result payloads.
// A non-empty sessionID restricts the list to that session.
func (s *Store) List(ctx context.Context, sessionID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + summaryColumns + ` FROM runs`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY finished_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// Get returns a single run including its result payload
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+summaryColumns+`, result FROM runs WHERE id = ?`, id)

	var result string
	run, err := scanRun(func(dest ...any) error {
		return row.Scan(append(dest, &result)...)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	run.Result = json.RawMessage(result)
	return &run, nil
}

// Prune deletes runs that finished before cutoff, always keeping the newest keep runs.
// Returns the number of deleted runs.
func (s *Store) Prune(ctx context.Context, cutoff time.Time, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs
		WHERE finished_at < ?
		  AND id NOT IN (SELECT id FROM runs ORDER BY finished_at DESC, id DESC LIMIT ?)
	`, cutoff.UnixMilli(), keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned run history", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	}
	return n, nil
}

func scanRun(scan func(dest ...any) error) (Run, error) {
	var run Run
	var started, finished int64
	err := scan(
		&run.ID,
		&run.SessionID,
		&run.Mode,
		&run.Description,
		&run.PreviewURL,
		&run.SandboxID,
		&run.FileCount,
		&run.ErrorCount,
		&run.Error,
		&started,
		&finished,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	run.FinishedAt = time.UnixMilli(finished).UTC()
	return run, nil
}
