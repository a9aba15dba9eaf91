package vector

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragkit/internal/rag"
)

// Payload field names stored with every Qdrant point.
const (
	fieldIndexPath   = "index_path"
	fieldContent     = "content"
	fieldSourceFile  = "source_file"
	fieldSourcePath  = "source_path"
	fieldSourceID    = "source_id"
	fieldChunkNumber = "chunk_number"
	fieldDocumentID  = "document_id"
	fieldKey         = "key"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection shared by all index paths
	// (default: ragkit_chunks). Points are scoped by an index_path payload.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantOpener hands out QdrantStores scoped to an index path. The gRPC
// client is created on first use and shared.
type QdrantOpener struct {
	cfg *QdrantConfig

	mu     sync.Mutex
	client *qdrant.Client
}

// NewQdrantOpener returns an Opener backed by the Qdrant server in cfg.
func NewQdrantOpener(cfg *QdrantConfig) *QdrantOpener {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "ragkit_" + Collection
	}
	return &QdrantOpener{cfg: cfg}
}

// Client returns the shared gRPC client, connecting on first call.
func (o *QdrantOpener) Client() (*qdrant.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		return o.client, nil
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   o.cfg.Host,
		Port:   o.cfg.Port,
		APIKey: o.cfg.APIKey,
		UseTLS: o.cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	o.client = client
	return client, nil
}

// Close closes the shared gRPC connection, if one was opened.
func (o *QdrantOpener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client == nil {
		return nil
	}
	err := o.client.Close()
	o.client = nil
	return err
}

// Open implements Opener. Without create, a missing collection or an index
// path with no points is reported as rag.ErrNotFound.
func (o *QdrantOpener) Open(ctx context.Context, indexPath string, create bool) (Store, error) {
	client, err := o.Client()
	if err != nil {
		return nil, err
	}
	s := &QdrantStore{client: client, cfg: o.cfg, indexPath: indexPath}

	if create {
		if err := s.ensureCollection(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}

	exists, err := client.CollectionExists(ctx, o.cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, rag.NotFoundf("qdrant collection %q not found", o.cfg.Collection)
	}
	n, err := client.Count(ctx, &qdrant.CountPoints{
		CollectionName: o.cfg.Collection,
		Filter:         s.scope(),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: count points: %w", err)
	}
	if n == 0 {
		return nil, rag.NotFoundf("no vectors stored for index %s", indexPath)
	}
	return s, nil
}

// QdrantStore implements Store for one index path inside a shared
// Qdrant collection.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client, owned by the opener.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig

	// indexPath scopes every read and write.
	indexPath string
}

// ensureCollection creates the Qdrant collection and its keyword payload
// indexes if they do not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	for _, field := range []string{fieldIndexPath, fieldSourceID, fieldSourcePath} {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.cfg.Collection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("qdrant: failed to index payload field %q: %w", field, err)
		}
	}
	return nil
}

// scope restricts a query to this store's index path.
func (s *QdrantStore) scope(extra ...*qdrant.Condition) *qdrant.Filter {
	return &qdrant.Filter{
		Must: append([]*qdrant.Condition{qdrant.NewMatch(fieldIndexPath, s.indexPath)}, extra...),
	}
}

// pointID derives a stable UUID for a record key within this index.
func (s *QdrantStore) pointID(key string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.indexPath+"|"+key)).String())
}

// Replace implements Store.
func (s *QdrantStore) Replace(ctx context.Context, sourcePath string, records []Record) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(s.scope(qdrant.NewMatch(fieldSourcePath, sourcePath))),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete %s: %w", sourcePath, err)
	}
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      s.pointID(r.Key),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				fieldIndexPath:   s.indexPath,
				fieldKey:         r.Key,
				fieldContent:     r.Content,
				fieldSourceFile:  r.SourceFile,
				fieldSourcePath:  r.SourcePath,
				fieldSourceID:    r.SourceID,
				fieldChunkNumber: r.ChunkNumber,
				fieldDocumentID:  r.DocumentID,
			}),
		})
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Search implements Store. Qdrant's cosine score is a similarity, so it is
// converted back to a distance here.
func (s *QdrantStore) Search(ctx context.Context, query []float32, k int, sourceIDs []string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	var extra []*qdrant.Condition
	if len(sourceIDs) > 0 {
		extra = append(extra, qdrant.NewMatchKeywords(fieldSourceID, sourceIDs...))
	}

	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         s.scope(extra...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		p := r.GetPayload()
		hits = append(hits, Hit{
			Record: Record{
				Key:         p[fieldKey].GetStringValue(),
				Content:     p[fieldContent].GetStringValue(),
				SourceFile:  p[fieldSourceFile].GetStringValue(),
				SourcePath:  p[fieldSourcePath].GetStringValue(),
				SourceID:    p[fieldSourceID].GetStringValue(),
				ChunkNumber: int(p[fieldChunkNumber].GetIntegerValue()),
				DocumentID:  p[fieldDocumentID].GetStringValue(),
			},
			Distance: 1 - float64(r.GetScore()),
		})
	}
	return hits, nil
}

// Close is a no-op; the opener owns the connection.
func (s *QdrantStore) Close() error { return nil }
