// Package store records evaluation runs in a SQLite database kept beside
// the index, so accuracy can be compared across re-ingestions and
// configuration changes.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// FileName is the history database file inside an index directory.
const FileName = "eval-history.db"

// ModeAccuracy is the score of one search mode in a run.
type ModeAccuracy struct {
	Mode     string
	Correct  int
	Accuracy float64
}

// Run is one recorded evaluation run.
type Run struct {
	// ID is assigned by Record.
	ID int64
	// RanAt is when the run finished.
	RanAt time.Time
	// EvalsPath is the evals file the run used.
	EvalsPath    string
	TotalQueries int
	MaxResults   int
	Modes        []ModeAccuracy
}

// RunStore persists and lists evaluation runs. Implementations must be safe
// for concurrent use.
type RunStore interface {
	// Record persists run and returns its ID.
	Record(ctx context.Context, run Run) (int64, error)
	// Recent returns the n most recent runs, newest first.
	Recent(ctx context.Context, n int) ([]Run, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a RunStore backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// PathFor returns the history database path of an index.
func PathFor(indexPath string) string {
	return filepath.Join(indexPath, FileName)
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS eval_runs (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ran_at        INTEGER NOT NULL,  -- Unix timestamp (seconds)
    evals_path    TEXT    NOT NULL,
    total_queries INTEGER NOT NULL,
    max_results   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS eval_run_modes (
    run_id   INTEGER NOT NULL REFERENCES eval_runs(id) ON DELETE CASCADE,
    mode     TEXT    NOT NULL,
    correct  INTEGER NOT NULL,
    accuracy REAL    NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (run_id, mode)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists run and its per-mode scores in one transaction.
// A zero RanAt is set to the current time.
func (s *SQLiteStore) Record(ctx context.Context, run Run) (id int64, err error) {
	if run.RanAt.IsZero() {
		run.RanAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: record begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertRun = `INSERT INTO eval_runs (ran_at, evals_path, total_queries, max_results) VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insertRun, run.RanAt.Unix(), run.EvalsPath, run.TotalQueries, run.MaxResults)
	if err != nil {
		return 0, fmt.Errorf("store: record run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: record run id: %w", err)
	}

	const insertMode = `INSERT INTO eval_run_modes (run_id, mode, correct, accuracy, position) VALUES (?, ?, ?, ?, ?)`
	for i, m := range run.Modes {
		if _, err = tx.ExecContext(ctx, insertMode, id, m.Mode, m.Correct, m.Accuracy, i); err != nil {
			return 0, fmt.Errorf("store: record mode %s: %w", m.Mode, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: record commit: %w", err)
	}
	return id, nil
}

// Recent returns the n most recent runs, newest first, with their modes in
// the order they were recorded.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Run, error) {
	const q = `
SELECT id, ran_at, evals_path, total_queries, max_results
FROM   eval_runs
ORDER  BY ran_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}

	var runs []Run
	for rows.Next() {
		var r Run
		var ts int64
		if err := rows.Scan(&r.ID, &ts, &r.EvalsPath, &r.TotalQueries, &r.MaxResults); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		r.RanAt = time.Unix(ts, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	rows.Close()

	for i := range runs {
		modes, err := s.modes(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Modes = modes
	}
	return runs, nil
}

func (s *SQLiteStore) modes(ctx context.Context, runID int64) ([]ModeAccuracy, error) {
	const q = `SELECT mode, correct, accuracy FROM eval_run_modes WHERE run_id = ? ORDER BY position`
	rows, err := s.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, fmt.Errorf("store: modes: %w", err)
	}
	defer rows.Close()

	var out []ModeAccuracy
	for rows.Next() {
		var m ModeAccuracy
		if err := rows.Scan(&m.Mode, &m.Correct, &m.Accuracy); err != nil {
			return nil, fmt.Errorf("store: modes scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: modes rows: %w", err)
	}
	return out, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
