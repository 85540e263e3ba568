package driving

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// IngestService loads documents into the corpus and indexes them.
type IngestService interface {
	// Ingest runs one ingestion: fetch from the target, chunk, index, and
	// embed when an embedding provider is configured. Returns a report of
	// what was stored.
	Ingest(ctx context.Context, source domain.SourceType, target string) (*domain.IngestReport, error)

	// Documents lists all ingested documents, newest first.
	Documents(ctx context.Context) ([]domain.Document, error)

	// Document retrieves one ingested document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Document(ctx context.Context, documentID string) (*domain.Document, error)

	// Remove deletes a document and everything indexed from it.
	Remove(ctx context.Context, documentID string) error

	// Stats returns corpus counts for display.
	Stats(ctx context.Context) (*CorpusStats, error)
}

// CorpusStats summarises the indexed corpus.
type CorpusStats struct {
	// Documents is the number of stored documents.
	Documents int

	// Chunks is the number of indexed chunks.
	Chunks int
}
