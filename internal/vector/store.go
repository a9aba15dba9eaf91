// Package vector implements the embedding-similarity index. Records live in
// a Store (SQLite file per index directory, or a Qdrant collection); Index
// embeds chunks and queries through the configured rag.Embedder.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
)

// Collection is the record collection name used by every store.
const Collection = "chunks"

// Record is one stored chunk and its embedding.
type Record struct {
	// Key is "{source_id}_{chunk_number}".
	Key string

	Content     string
	SourceFile  string
	SourcePath  string
	SourceID    string
	ChunkNumber int
	DocumentID  string

	Embedding []float32
}

// Hit is a Record returned by a search with its cosine distance to the
// query (0 = identical direction, 2 = opposite).
type Hit struct {
	Record
	Distance float64
}

// Store persists records for a single index and answers nearest-neighbour
// queries. Implementations must be safe to call from multiple goroutines.
type Store interface {
	// Replace removes every record previously stored for sourcePath and
	// upserts records.
	Replace(ctx context.Context, sourcePath string, records []Record) error

	// Search returns up to k records closest to query, optionally limited
	// to the given source ids, ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int, sourceIDs []string) ([]Hit, error)

	// Close releases any resources held by the store.
	Close() error
}

// Opener opens the Store backing indexPath. When create is false and no
// store exists for indexPath, Open returns an error wrapping
// rag.ErrNotFound.
type Opener interface {
	Open(ctx context.Context, indexPath string, create bool) (Store, error)
}

// EncodeVector serialises v as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid encoded length %d (not a multiple of 4)", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v, nil
}

// CosineDistance returns 1 - cos(a, b). Mismatched lengths and zero vectors
// have distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
