// Package events publishes ingestion notifications to a message broker.
//
// Environment variables:
//
//	NATS_URL     = nats://host:4222            (unset disables publishing)
//	NATS_SUBJECT = ragkit.documents.ingested   (default)
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/54b3r/ragkit/internal/rag"
)

// DefaultSubject is the subject document events are published on.
const DefaultSubject = "ragkit.documents.ingested"

// DocumentIngested announces that one source document was written to both
// indexes.
type DocumentIngested struct {
	SourceID   string    `json:"source_id"`
	SourceFile string    `json:"source_file"`
	SourcePath string    `json:"source_path"`
	IndexPath  string    `json:"index_path"`
	Chunks     int       `json:"chunks"`
	IngestedAt time.Time `json:"ingested_at"`
}

// NewDocumentIngested builds the event for a document at sourcePath.
func NewDocumentIngested(indexPath, sourcePath string, chunks int, at time.Time) DocumentIngested {
	id := rag.NewIdentity(sourcePath)
	return DocumentIngested{
		SourceID:   id.SourceID,
		SourceFile: id.SourceFile,
		SourcePath: id.SourcePath,
		IndexPath:  indexPath,
		Chunks:     chunks,
		IngestedAt: at.UTC(),
	}
}

// Publisher delivers ingestion events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishDocumentIngested(ctx context.Context, event DocumentIngested) error
	Close()
}

// Noop discards every event.
type Noop struct{}

// PublishDocumentIngested implements Publisher.
func (Noop) PublishDocumentIngested(context.Context, DocumentIngested) error { return nil }

// Close implements Publisher.
func (Noop) Close() {}

func encode(event DocumentIngested) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("events: encode document event: %w", err)
	}
	return data, nil
}
