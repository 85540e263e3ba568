package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
	"github.com/quarry-labs/quarry/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs the offline ingestion pipeline: load documents from a
// source, chunk them, store them, and index them for keyword and (when an
// embedding provider is configured) vector retrieval.
type IngestService struct {
	docStore  driven.DocumentStore
	search    driven.SearchEngine
	vector    driven.VectorIndex
	embedding driven.EmbeddingService
	pipeline  driven.PostProcessorPipeline
	loaders   map[domain.SourceType]driven.Loader
}

// NewIngestService creates a new ingest service.
// The vector and embedding parameters are optional (can be nil); without them
// chunks are stored and keyword-indexed but receive no vectors.
func NewIngestService(
	docStore driven.DocumentStore,
	search driven.SearchEngine,
	vector driven.VectorIndex,
	embedding driven.EmbeddingService,
	pipeline driven.PostProcessorPipeline,
	loaders ...driven.Loader,
) *IngestService {
	byType := make(map[domain.SourceType]driven.Loader, len(loaders))
	for _, l := range loaders {
		byType[l.Type()] = l
	}
	return &IngestService{
		docStore:  docStore,
		search:    search,
		vector:    vector,
		embedding: embedding,
		pipeline:  pipeline,
		loaders:   byType,
	}
}

// Ingest loads documents from the target, processes each through the chunking
// pipeline, and indexes the results. Per-document failures are counted and
// skipped; the run aborts only on context cancellation or a storage failure.
func (s *IngestService) Ingest(ctx context.Context, source domain.SourceType, target string) (*domain.IngestReport, error) {
	loader, ok := s.loaders[source]
	if !ok {
		return nil, fmt.Errorf("%w: no loader for source type %q", domain.ErrInvalidInput, source)
	}
	if err := loader.Validate(target); err != nil {
		return nil, fmt.Errorf("validate target: %w", err)
	}

	logger.Section("Ingest")
	logger.Info("Starting ingestion of %s (%s)", target, source)

	start := time.Now()
	report := &domain.IngestReport{
		Source: source,
		Target: target,
	}

	docsCh, errsCh := loader.Load(ctx, target)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case err, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			// Per-document failures do not stop the run.
			report.Skipped++
			logger.Debug("Skipping input: %v", err)

		case doc, ok := <-docsCh:
			if !ok {
				report.Duration = time.Since(start)
				logger.Info("Ingested %d chunks from %s", report.Chunks, target)
				return report, nil
			}

			logger.Debug("Processing: %s", doc.URI)
			if err := s.processDocument(ctx, source, doc, report); err != nil {
				return nil, err
			}
		}
	}
}

// processDocument stores and indexes one loaded document.
func (s *IngestService) processDocument(
	ctx context.Context,
	source domain.SourceType,
	doc domain.Document,
	report *domain.IngestReport,
) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.SourceType == "" {
		doc.SourceType = source
	}
	if doc.FetchedAt.IsZero() {
		doc.FetchedAt = time.Now()
	}

	// Re-ingesting a URI replaces the previous version wholesale.
	existing, err := s.docStore.GetDocumentByURI(ctx, doc.URI)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("look up document %s: %w", doc.URI, err)
	}
	if existing != nil {
		logger.Debug("Replacing existing document %s", existing.ID)
		if err := s.Remove(ctx, existing.ID); err != nil {
			return fmt.Errorf("replace document %s: %w", doc.URI, err)
		}
	}

	chunks, err := s.pipeline.Process(ctx, &doc)
	if err != nil {
		return fmt.Errorf("process document %s: %w", doc.URI, err)
	}

	if err := s.docStore.SaveDocument(ctx, &doc); err != nil {
		return fmt.Errorf("save document %s: %w", doc.URI, err)
	}
	if err := s.docStore.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks for %s: %w", doc.URI, err)
	}

	for _, chunk := range chunks {
		if err := s.search.Index(ctx, chunk); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
	}

	embedded, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return err
	}

	report.Documents++
	report.Chunks += len(chunks)
	report.Embedded += embedded
	return nil
}

// embedChunks generates and stores vectors for the given chunks. Returns the
// number of chunks embedded; zero when no embedding provider is configured.
func (s *IngestService) embedChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if s.embedding == nil || len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedding.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, chunk := range chunks {
		if err := s.docStore.SaveEmbedding(ctx, chunk.ID, vectors[i]); err != nil {
			return 0, fmt.Errorf("save embedding for chunk %s: %w", chunk.ID, err)
		}
		if s.vector != nil {
			if err := s.vector.Add(ctx, chunk.ID, vectors[i]); err != nil {
				return 0, fmt.Errorf("add vector for chunk %s: %w", chunk.ID, err)
			}
		}
	}
	return len(vectors), nil
}

// Documents lists all ingested documents, newest first.
func (s *IngestService) Documents(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.docStore.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].FetchedAt.Equal(docs[j].FetchedAt) {
			return docs[i].FetchedAt.After(docs[j].FetchedAt)
		}
		return docs[i].URI < docs[j].URI
	})
	return docs, nil
}

// Document returns one stored document by ID.
func (s *IngestService) Document(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", documentID, err)
	}
	return doc, nil
}

// Remove deletes a document together with its chunks, index entries and
// vectors. Index deletions are best-effort: a failed index delete is logged
// and the store deletion still proceeds.
func (s *IngestService) Remove(ctx context.Context, documentID string) error {
	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get chunks: %w", err)
	}

	if s.vector != nil {
		for _, chunk := range chunks {
			if err := s.vector.Delete(ctx, chunk.ID); err != nil {
				logger.Debug("Failed to delete vector %s: %v", chunk.ID, err)
			}
		}
	}

	for _, chunk := range chunks {
		if err := s.search.Delete(ctx, chunk.ID); err != nil {
			logger.Debug("Failed to delete search index %s: %v", chunk.ID, err)
		}
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Stats returns corpus counts for display.
func (s *IngestService) Stats(ctx context.Context) (*driving.CorpusStats, error) {
	docs, err := s.docStore.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := s.docStore.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	return &driving.CorpusStats{Documents: docs, Chunks: chunks}, nil
}
