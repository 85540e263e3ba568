package driven

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// DocumentStore persists documents, chunks and chunk embeddings.
// Backed by SQLite.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// SaveChunks stores chunks for a document, replacing any previous set.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// SaveEmbedding stores the vector for a chunk.
	SaveEmbedding(ctx context.Context, chunkID string, embedding []float32) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByURI retrieves a document by its canonical URI.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocumentByURI(ctx context.Context, uri string) (*domain.Document, error)

	// GetChunk retrieves a specific chunk by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// GetChunks retrieves all chunks for a document, ordered by ordinal.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document, its chunks and their embeddings.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all documents, newest first.
	ListDocuments(ctx context.Context) ([]domain.Document, error)

	// ForEachEmbedding streams every stored embedding to fn. Used to warm
	// the vector index at startup. Iteration stops on the first error.
	ForEachEmbedding(ctx context.Context, fn func(chunkID string, embedding []float32) error) error

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}
