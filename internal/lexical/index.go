// Package lexical implements the BM25 full-text index over SQLite FTS5.
// Each index directory holds one database file; the scoring configuration
// written at creation time is verified on every read and write.
package lexical

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/ragkit/internal/rag"
)

// FileName is the database file created inside the index directory.
const FileName = "lexical.db"

// Scoring configuration persisted in index_meta. FTS5's bm25() uses
// k1=1.2 and b=0.75.
const (
	similarity = "bm25(k1=1.2,b=0.75)"
	tokenizer  = "unicode61"
)

const ddl = `
CREATE VIRTUAL TABLE IF NOT EXISTS chunks USING fts5(
    content,
    source_file  UNINDEXED,
    source_path  UNINDEXED,
    source_id    UNINDEXED,
    chunk_number UNINDEXED,
    document_id  UNINDEXED,
    tokenize = 'unicode61'
);
CREATE TABLE IF NOT EXISTS index_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Config tunes query parsing.
type Config struct {
	// DefaultOperator joins adjacent clauses without an explicit operator.
	// Default: OperatorAnd.
	DefaultOperator Operator

	// Logger is used for debug output. Default: slog.Default().
	Logger *slog.Logger
}

// Index is the BM25 adapter. It implements rag.Index.
type Index struct {
	operator Operator
	log      *slog.Logger
}

// New returns a lexical Index.
func New(cfg Config) *Index {
	if cfg.DefaultOperator == "" {
		cfg.DefaultOperator = OperatorAnd
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Index{operator: cfg.DefaultOperator, log: cfg.Logger}
}

// Name implements rag.Index.
func (*Index) Name() string { return string(rag.ModeBM25) }

// Path returns the database path for indexPath.
func Path(indexPath string) string {
	return filepath.Join(indexPath, FileName)
}

// Exists reports whether a lexical index has been written under indexPath.
func Exists(indexPath string) bool {
	_, err := os.Stat(Path(indexPath))
	return err == nil
}

func open(ctx context.Context, path string) (*sql.DB, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("lexical: open %s: %w", path, err)
	}
	// Single writer connection avoids SQLITE_BUSY under concurrent ingest.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("lexical: open %s: %w", path, err)
	}
	return db, nil
}

// checkScoring refuses indexes written with a different scoring setup.
func checkScoring(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return fmt.Errorf("lexical: read index metadata: %w", err)
	}
	defer rows.Close()

	want := map[string]string{"similarity": similarity, "tokenizer": tokenizer}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("lexical: read index metadata: %w", err)
		}
		if w, ok := want[k]; ok && w != v {
			return rag.WrapError(rag.ErrInvalidOperation, "lexical",
				fmt.Errorf("index %s is %q, adapter uses %q", k, v, w))
		}
	}
	return rows.Err()
}

// Add implements rag.Index. Chunks previously indexed from the same
// source path are replaced, as is any row sharing a document id.
func (x *Index) Add(ctx context.Context, indexPath, sourcePath string, chunks []rag.Chunk) (err error) {
	if err := os.MkdirAll(indexPath, 0o755); err != nil {
		return fmt.Errorf("lexical: create index directory: %w", err)
	}
	db, err := open(ctx, Path(indexPath))
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("lexical: migrate: %w", err)
	}
	const seed = `INSERT OR IGNORE INTO index_meta (key, value) VALUES (?, ?), (?, ?)`
	if _, err := db.ExecContext(ctx, seed, "similarity", similarity, "tokenizer", tokenizer); err != nil {
		return fmt.Errorf("lexical: write index metadata: %w", err)
	}
	if err := checkScoring(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("lexical: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM chunks WHERE source_path = ?`, sourcePath); err != nil {
		return fmt.Errorf("lexical: replace %s: %w", sourcePath, err)
	}

	del, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE document_id = ?`)
	if err != nil {
		return fmt.Errorf("lexical: prepare delete: %w", err)
	}
	defer del.Close()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks (content, source_file, source_path, source_id, chunk_number, document_id)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("lexical: prepare insert: %w", err)
	}
	defer stmt.Close()

	id := rag.NewIdentity(sourcePath)
	for _, c := range chunks {
		if _, err = del.ExecContext(ctx, id.DocumentID(c.Number)); err != nil {
			return fmt.Errorf("lexical: replace chunk %d: %w", c.Number, err)
		}
		if _, err = stmt.ExecContext(ctx, c.Content, id.SourceFile, id.SourcePath, id.SourceID,
			c.Number, id.DocumentID(c.Number)); err != nil {
			return fmt.Errorf("lexical: insert chunk %d: %w", c.Number, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("lexical: commit: %w", err)
	}
	x.log.Debug("lexical: indexed chunks",
		slog.String("index_path", indexPath),
		slog.String("source", sourcePath),
		slog.Int("chunks", len(chunks)),
	)
	return nil
}

// Query implements rag.Index. Scores are the negated FTS5 bm25() rank so
// higher is better.
func (x *Index) Query(ctx context.Context, indexPath, query string, maxResults int, sourceIDs []string) ([]rag.SearchResult, error) {
	if _, err := os.Stat(indexPath); errors.Is(err, os.ErrNotExist) {
		return nil, rag.NotFoundf("index directory not found: %s", indexPath)
	}
	if !Exists(indexPath) {
		return nil, rag.NotFoundf("lexical index not found in %s", indexPath)
	}
	if maxResults <= 0 {
		return nil, nil
	}

	match := Translate(query, x.operator)
	if match == "" {
		x.log.Debug("lexical: query has no searchable terms", slog.String("query", query))
		return nil, nil
	}

	db, err := open(ctx, Path(indexPath))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := checkScoring(ctx, db); err != nil {
		return nil, err
	}

	q, args := buildQuery(match, maxResults, sourceIDs)
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical: query %q: %w", match, err)
	}
	defer rows.Close()

	var results []rag.SearchResult
	for rows.Next() {
		var (
			r    rag.SearchResult
			rank float64
		)
		if err := rows.Scan(&r.Content, &r.SourceFile, &r.SourcePath, &r.SourceID, &r.ChunkNumber, &r.DocumentID, &rank); err != nil {
			return nil, fmt.Errorf("lexical: scan: %w", err)
		}
		r.Score = -rank
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical: rows: %w", err)
	}
	return results, nil
}

func buildQuery(match string, limit int, sourceIDs []string) (string, []any) {
	var b strings.Builder
	b.WriteString(`
SELECT content, source_file, source_path, source_id, chunk_number, document_id, bm25(chunks) AS score
FROM   chunks
WHERE  chunks MATCH ?`)
	args := []any{match}
	if len(sourceIDs) > 0 {
		b.WriteString(" AND source_id IN (")
		for i, id := range sourceIDs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteByte('?')
			args = append(args, id)
		}
		b.WriteByte(')')
	}
	b.WriteString(`
ORDER  BY score
LIMIT  ?`)
	args = append(args, limit)
	return b.String(), args
}
