package vector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/ragkit/internal/rag"
)

// FileName is the database file created inside the index directory.
const FileName = "vectors.db"

// SQLiteOpener opens a SQLiteStore at {indexPath}/vectors.db.
type SQLiteOpener struct{}

// Open implements Opener.
func (SQLiteOpener) Open(ctx context.Context, indexPath string, create bool) (Store, error) {
	path := filepath.Join(indexPath, FileName)
	if !create {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, rag.NotFoundf("vector store not found in %s", indexPath)
		}
	} else if err := os.MkdirAll(indexPath, 0o755); err != nil {
		return nil, fmt.Errorf("vector: create index directory: %w", err)
	}
	return OpenSQLite(ctx, path)
}

// SQLiteStore keeps records in a single SQLite table and computes cosine
// distance in process.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLiteStore at path and runs the schema
// migration.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("vector: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS ` + Collection + ` (
    key          TEXT    PRIMARY KEY,
    content      TEXT    NOT NULL,
    source_file  TEXT    NOT NULL,
    source_path  TEXT    NOT NULL,
    source_id    TEXT    NOT NULL,
    chunk_number INTEGER NOT NULL,
    document_id  TEXT    NOT NULL,
    embedding    BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_source_id   ON ` + Collection + ` (source_id);
CREATE INDEX IF NOT EXISTS idx_chunks_source_path ON ` + Collection + ` (source_path);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("vector: migrate: %w", err)
	}
	return nil
}

// Replace implements Store.
func (s *SQLiteStore) Replace(ctx context.Context, sourcePath string, records []Record) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vector: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM `+Collection+` WHERE source_path = ?`, sourcePath); err != nil {
		return fmt.Errorf("vector: replace %s: %w", sourcePath, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO `+Collection+` (key, content, source_file, source_path, source_id, chunk_number, document_id, embedding)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    content      = excluded.content,
    source_file  = excluded.source_file,
    source_path  = excluded.source_path,
    source_id    = excluded.source_id,
    chunk_number = excluded.chunk_number,
    document_id  = excluded.document_id,
    embedding    = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("vector: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err = stmt.ExecContext(ctx, r.Key, r.Content, r.SourceFile, r.SourcePath, r.SourceID,
			r.ChunkNumber, r.DocumentID, EncodeVector(r.Embedding)); err != nil {
			return fmt.Errorf("vector: upsert %s: %w", r.Key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("vector: commit: %w", err)
	}
	return nil
}

// Search implements Store with an exhaustive scan.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int, sourceIDs []string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	q := `SELECT key, content, source_file, source_path, source_id, chunk_number, document_id, embedding FROM ` + Collection
	var args []any
	if len(sourceIDs) > 0 {
		q += ` WHERE source_id IN (?` + strings.Repeat(", ?", len(sourceIDs)-1) + `)`
		for _, id := range sourceIDs {
			args = append(args, id)
		}
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vector: search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h    Hit
			blob []byte
		)
		if err := rows.Scan(&h.Key, &h.Content, &h.SourceFile, &h.SourcePath, &h.SourceID,
			&h.ChunkNumber, &h.DocumentID, &blob); err != nil {
			return nil, fmt.Errorf("vector: search scan: %w", err)
		}
		if h.Embedding, err = DecodeVector(blob); err != nil {
			return nil, fmt.Errorf("vector: record %s: %w", h.Key, err)
		}
		h.Distance = CosineDistance(query, h.Embedding)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vector: search rows: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("vector: close: %w", err)
	}
	return nil
}
