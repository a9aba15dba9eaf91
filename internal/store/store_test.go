package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(at time.Time, bm25Correct int) Run {
	return Run{
		RanAt:        at,
		EvalsPath:    "/idx/evals.json",
		TotalQueries: 4,
		MaxResults:   5,
		Modes: []ModeAccuracy{
			{Mode: "bm25", Correct: bm25Correct, Accuracy: float64(bm25Correct) / 4},
			{Mode: "vector", Correct: 1, Accuracy: 0.25},
			{Mode: "hybrid", Correct: 4, Accuracy: 1},
		},
	}
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if _, err := s.Record(ctx, sampleRun(base, 2)); err != nil {
		t.Fatalf("record first: %v", err)
	}
	id, err := s.Record(ctx, sampleRun(base.Add(time.Hour), 3))
	if err != nil {
		t.Fatalf("record second: %v", err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("want 2 runs, got %d", len(runs))
	}
	if runs[0].ID != id {
		t.Errorf("newest run first: got id %d, want %d", runs[0].ID, id)
	}
	if !runs[0].RanAt.Equal(base.Add(time.Hour)) {
		t.Errorf("RanAt = %v", runs[0].RanAt)
	}
	if len(runs[0].Modes) != 3 || runs[0].Modes[0].Mode != "bm25" || runs[0].Modes[2].Mode != "hybrid" {
		t.Fatalf("modes out of recorded order: %+v", runs[0].Modes)
	}
	if runs[0].Modes[0].Correct != 3 || runs[0].Modes[0].Accuracy != 0.75 {
		t.Errorf("bm25 = %+v, want 3 correct / 0.75", runs[0].Modes[0])
	}
}

func Test_Store_RecentLimitRespected(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 5 {
		if _, err := s.Record(ctx, sampleRun(time.Unix(int64(1000+i), 0), i%4)); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("want 2 runs, got %d", len(runs))
	}
}

func Test_Store_PersistsAcrossOpen(t *testing.T) {
	t.Parallel()
	path := PathFor(t.TempDir())
	if filepath.Base(path) != FileName {
		t.Fatalf("PathFor = %q", path)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Record(context.Background(), sampleRun(time.Time{}, 1)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })
	runs, err := s2.Recent(context.Background(), 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 || runs[0].RanAt.IsZero() {
		t.Fatalf("runs = %+v, want one run with a timestamp", runs)
	}
}

func Test_Store_RecordRollsBackOnModeFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	s := &SQLiteStore{db: db}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO eval_runs").
		WithArgs(sqlmock.AnyArg(), "/idx/evals.json", 4, 5).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec("INSERT INTO eval_run_modes").
		WithArgs(int64(7), "bm25", 2, 0.5, 0).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	_, err = s.Record(context.Background(), sampleRun(time.Now(), 2))
	if err == nil || !strings.Contains(err.Error(), "record mode bm25") {
		t.Fatalf("error = %v, want record mode failure", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func Test_Store_RecentQueryFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	s := &SQLiteStore{db: db}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT id, ran_at").WithArgs(3).WillReturnError(errors.New("database is locked"))

	if _, err := s.Recent(context.Background(), 3); err == nil || !strings.Contains(err.Error(), "store: recent") {
		t.Fatalf("error = %v, want wrapped recent failure", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func Test_Store_BeginFailure(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	s := &SQLiteStore{db: db}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin().WillReturnError(errors.New("no connection"))
	if _, err := s.Record(context.Background(), sampleRun(time.Now(), 1)); err == nil {
		t.Fatal("expected begin failure")
	}
}
