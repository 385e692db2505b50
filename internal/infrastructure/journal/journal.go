package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bomos/shell/internal/shared/id"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run ID has no row.
var ErrNotFound = errors.New("journal: run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	program    TEXT NOT NULL,
	path       TEXT NOT NULL DEFAULT '',
	pid        INTEGER NOT NULL DEFAULT 0,
	phase      TEXT NOT NULL,
	started_at INTEGER NOT NULL,
	ended_at   INTEGER,
	exit_code  INTEGER,
	error      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
`

// Run is one supervisor run as recorded in the journal.
type Run struct {
	ID        id.RunID   `json:"id"`
	Mode      string     `json:"mode"`
	Program   string     `json:"program"`
	Path      string     `json:"path,omitempty"`
	PID       int        `json:"pid,omitempty"`
	Phase     string     `json:"phase"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Store persists runs in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the journal at path. Use ":memory:" in tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("journal")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		logger.Debug("WAL mode unavailable", zap.Error(err))
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin inserts a new run.
func (s *Store) Begin(ctx context.Context, r Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, mode, program, path, pid, phase, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), r.Mode, r.Program, r.Path, r.PID, r.Phase, r.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("journal: begin %s: %w", r.ID, err)
	}
	return nil
}

// Update records the phase, resolved path and pid of a run in progress.
func (s *Store) Update(ctx context.Context, runID id.RunID, phase, path string, pid int) error {
	return s.exec(ctx, runID,
		`UPDATE runs SET phase = ?, path = ?, pid = ? WHERE id = ?`,
		phase, path, pid, string(runID))
}

// Finish marks a run as ended. exitCode is nil when the process never started
// or was still running when the shell exited.
func (s *Store) Finish(ctx context.Context, runID id.RunID, phase string, exitCode *int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	var code sql.NullInt64
	if exitCode != nil {
		code = sql.NullInt64{Int64: int64(*exitCode), Valid: true}
	}
	return s.exec(ctx, runID,
		`UPDATE runs SET phase = ?, ended_at = ?, exit_code = ?, error = ? WHERE id = ?`,
		phase, time.Now().UnixMilli(), code, msg, string(runID))
}

func (s *Store) exec(ctx context.Context, runID id.RunID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("journal: update %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: update %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// Get returns one run.
func (s *Store) Get(ctx context.Context, runID id.RunID) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, mode, program, path, pid, phase, started_at, ended_at, exit_code, error FROM runs WHERE id = ?`,
		string(runID))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return r, err
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, program, path, pid, phase, started_at, ended_at, exit_code, error
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Prune deletes runs older than maxAge and returns the number removed.
func (s *Store) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("Pruned journal", zap.Int64("runs", n))
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r       Run
		rawID   string
		started int64
		ended   sql.NullInt64
		code    sql.NullInt64
	)
	if err := sc.Scan(&rawID, &r.Mode, &r.Program, &r.Path, &r.PID, &r.Phase, &started, &ended, &code, &r.Error); err != nil {
		return Run{}, err
	}
	r.ID = id.RunID(rawID)
	r.StartedAt = time.UnixMilli(started)
	if ended.Valid {
		t := time.UnixMilli(ended.Int64)
		r.EndedAt = &t
	}
	if code.Valid {
		c := int(code.Int64)
		r.ExitCode = &c
	}
	return r, nil
}
