package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragkit/internal/logging"
	"github.com/54b3r/ragkit/internal/rag"
)

// NewIngestCmd constructs the `ragkit ingest` command, which chunks a file
// or every supported file of a folder into the index.
func NewIngestCmd() *cobra.Command {
	var indexPath string
	var contentPath string
	var strategy string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a file or folder into the BM25 and vector indexes",
		Long: `Read a file or every supported file under a folder, split it into chunks
and write the chunks to the BM25 index and the vector index under
--index-path. Re-ingesting a file replaces its previous chunks.

Chunking strategies: semantic, markdown, paragraph. When omitted, .md and
.markdown files use markdown chunking and everything else paragraph
chunking.

Supported folder file types: .txt, .md, .markdown, .pdf, .xlsx. A single
file with another extension is read as plain text.

Environment variables:
  EMBEDDING_PROVIDER   Embedding backend: ollama, openai, azure
  VECTOR_BACKEND       Vector store: sqlite (default) or qdrant
  INGEST_CONCURRENCY   Files ingested at once from a folder (default: 1)
  NATS_URL             Publish a document-ingested event per file

Examples:
  ragkit ingest --index-path ./index --content-path ./docs
  ragkit ingest --index-path ./index --content-path notes.md --chunking-strategy semantic`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)
			out := cmd.OutOrStdout()

			info, err := os.Stat(contentPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("ingest: %w", rag.NotFoundf("content path '%s' not found", contentPath))
				}
				return fmt.Errorf("ingest: %w", err)
			}

			s, err := buildStack(log, stackOptions{requireEmbedder: true})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer s.Close()

			pipeline, closePublisher, err := s.buildPipeline()
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer closePublisher()

			if info.IsDir() {
				report, err := pipeline.IngestFolder(ctx, indexPath, contentPath, strategy, func(msg string) {
					fmt.Fprintln(out, msg)
				})
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("ingestion complete",
					slog.Int("files", report.Files),
					slog.Int("ingested", report.Ingested),
					slog.Int("skipped", report.Skipped),
					slog.Int("failed", report.Failed),
					slog.Int("chunks", report.Chunks),
				)
			} else {
				chunks, err := pipeline.IngestFile(ctx, indexPath, contentPath, strategy)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				log.Info("ingestion complete", slog.String("file", contentPath), slog.Int("chunks", chunks))
			}

			fmt.Fprintln(out, successLine(contentPath, indexPath, strategy))
			return nil
		},
	}

	cmd.Flags().StringVar(&indexPath, "index-path", "", "Index directory to write to")
	cmd.Flags().StringVar(&contentPath, "content-path", "", "File or folder to ingest")
	cmd.Flags().StringVar(&strategy, "chunking-strategy", "", "Chunking strategy: semantic, markdown, paragraph (default: by extension)")
	_ = cmd.MarkFlagRequired("index-path")
	_ = cmd.MarkFlagRequired("content-path")

	return cmd
}

// successLine is printed once ingestion finishes.
func successLine(contentPath, indexPath, strategy string) string {
	if strategy == "" {
		strategy = "auto-detected"
	}
	return fmt.Sprintf("Successfully ingested content from '%s' into index at '%s' using %s chunking with vector embeddings",
		contentPath, indexPath, strategy)
}
