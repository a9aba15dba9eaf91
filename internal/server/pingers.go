package server

import (
	"context"
	"fmt"
	"os"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/ragkit/internal/lexical"
	"github.com/54b3r/ragkit/internal/vector"
)

// IndexPinger reports whether the index directory exists and holds a
// lexical index. It satisfies the Pinger interface.
type IndexPinger struct {
	// indexPath is the directory searched by the API.
	indexPath string
}

// NewIndexPinger constructs an IndexPinger for indexPath.
func NewIndexPinger(indexPath string) *IndexPinger {
	return &IndexPinger{indexPath: indexPath}
}

// Name returns the dependency label used in readiness responses.
func (p *IndexPinger) Name() string { return "index" }

// Ping checks the index directory and its lexical database.
func (p *IndexPinger) Ping(context.Context) error {
	info, err := os.Stat(p.indexPath)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("index directory %q not found", p.indexPath)
	}
	if !lexical.Exists(p.indexPath) {
		return fmt.Errorf("no lexical index in %q", p.indexPath)
	}
	return nil
}

// VectorStorePinger opens the vector store of an index without creating it.
type VectorStorePinger struct {
	// opener resolves the store for indexPath.
	opener vector.Opener
	// indexPath is the directory searched by the API.
	indexPath string
}

// NewVectorStorePinger constructs a VectorStorePinger.
func NewVectorStorePinger(opener vector.Opener, indexPath string) *VectorStorePinger {
	return &VectorStorePinger{opener: opener, indexPath: indexPath}
}

// Name returns the dependency label used in readiness responses.
func (p *VectorStorePinger) Name() string { return "vector_store" }

// Ping opens and closes the store.
func (p *VectorStorePinger) Ping(ctx context.Context) error {
	store, err := p.opener.Open(ctx, p.indexPath, false)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	return store.Close()
}

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
// Returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	_, err := p.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
