package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
	"github.com/quarry-labs/quarry/internal/logger"
)

// Ensure RetrievalService implements the interfaces.
var (
	_ driven.RetrievalIndex = (*RetrievalService)(nil)
	_ driving.SearchService = (*RetrievalService)(nil)
)

// rrfK is the Reciprocal Rank Fusion constant. 60 keeps single top ranks
// from dominating the fused ordering.
const rrfK = 60

// scoredChunk holds intermediate results before hydration.
type scoredChunk struct {
	chunkID string
	score   float64
}

// RetrievalService fetches passages with hybrid search: a keyword (FTS5)
// leg and a vector leg run in parallel, their rankings are fused with RRF,
// an optional cross-encoder reranks the fused list, and the survivors are
// hydrated from the document store.
//
// The vector leg needs both a vector index and an embedding service; the
// reranker is optional too. Missing pieces degrade to keyword-only search
// in fused order.
type RetrievalService struct {
	docStore  driven.DocumentStore
	search    driven.SearchEngine
	vector    driven.VectorIndex
	embedding driven.EmbeddingService
	reranker  driven.Reranker
}

// NewRetrievalService creates a new retrieval service.
// The vector, embedding and reranker parameters are optional (can be nil).
func NewRetrievalService(
	docStore driven.DocumentStore,
	search driven.SearchEngine,
	vector driven.VectorIndex,
	embedding driven.EmbeddingService,
	reranker driven.Reranker,
) *RetrievalService {
	return &RetrievalService{
		docStore:  docStore,
		search:    search,
		vector:    vector,
		embedding: embedding,
		reranker:  reranker,
	}
}

// Search returns up to k passages ranked by relevance, best first.
func (s *RetrievalService) Search(ctx context.Context, query string, k int) ([]domain.Passage, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q, k=%d", query, k)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no passages")
		return []domain.Passage{}, nil
	}
	if k <= 0 {
		k = domain.DefaultTopK
	}

	// Fetch more per leg than we return so fusion has something to fuse.
	internalLimit := k * 2

	var chunks []scoredChunk
	var err error
	if s.vector != nil && s.embedding != nil {
		logger.Debug("Executing hybrid retrieval (keyword + vector)")
		chunks, err = s.hybridSearch(ctx, query, internalLimit)
	} else {
		logger.Debug("Executing keyword-only retrieval")
		chunks, err = s.keywordSearch(ctx, query, internalLimit)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieval: %w", err)
	}
	logger.Debug("Raw results: %d chunks", len(chunks))

	passages, err := s.hydrate(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("hydrate passages: %w", err)
	}

	passages = s.rerank(ctx, query, passages, k)
	if len(passages) > k {
		passages = passages[:k]
	}
	logger.Debug("Final passages: %d", len(passages))

	return passages, nil
}

// keywordSearch performs full-text search.
func (s *RetrievalService) keywordSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	if s.search == nil {
		return nil, domain.ErrSearchUnavailable
	}

	hits, err := s.search.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Score}
	}
	return results, nil
}

// vectorSearch performs semantic similarity search.
func (s *RetrievalService) vectorSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	embedding, err := s.embedding.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.vector.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector search: %d hits", len(hits))

	results := make([]scoredChunk, len(hits))
	for i, hit := range hits {
		results[i] = scoredChunk{chunkID: hit.ChunkID, score: hit.Similarity}
	}
	return results, nil
}

// hybridSearch runs both legs in parallel and fuses their rankings.
// If one leg fails the other's results are used alone; only a double
// failure is an error.
func (s *RetrievalService) hybridSearch(ctx context.Context, query string, limit int) ([]scoredChunk, error) {
	var keywordResults, vectorResults []scoredChunk
	var keywordErr, vectorErr error

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		keywordResults, keywordErr = s.keywordSearch(ctx, query, limit)
	}()
	go func() {
		defer wg.Done()
		vectorResults, vectorErr = s.vectorSearch(ctx, query, limit)
	}()
	wg.Wait()

	if keywordErr != nil && vectorErr != nil {
		return nil, fmt.Errorf("hybrid retrieval: keyword=%w, vector=%w", keywordErr, vectorErr)
	}
	if keywordErr != nil {
		logger.Warn("Keyword leg failed (%v), using vector results only", keywordErr)
		return vectorResults, nil
	}
	if vectorErr != nil {
		logger.Warn("Vector leg failed (%v), using keyword results only", vectorErr)
		return keywordResults, nil
	}

	merged := reciprocalRankFusion(keywordResults, vectorResults, rrfK)
	logger.Debug("Fused %d keyword + %d vector hits into %d", len(keywordResults), len(vectorResults), len(merged))
	return merged, nil
}

// reciprocalRankFusion merges two ranked lists. Each item scores the sum of
// 1/(k+rank+1) across the lists it appears in, so agreement between legs
// outranks a high position in either one.
func reciprocalRankFusion(list1, list2 []scoredChunk, k int) []scoredChunk {
	scores := make(map[string]float64)
	for rank, chunk := range list1 {
		scores[chunk.chunkID] += 1.0 / float64(k+rank+1)
	}
	for rank, chunk := range list2 {
		scores[chunk.chunkID] += 1.0 / float64(k+rank+1)
	}

	results := make([]scoredChunk, 0, len(scores))
	for id, score := range scores {
		results = append(results, scoredChunk{chunkID: id, score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunkID < results[j].chunkID
	})
	return results
}

// hydrate converts scored chunk IDs into passages with content and source.
// Chunks or documents deleted since indexing are skipped.
func (s *RetrievalService) hydrate(ctx context.Context, chunks []scoredChunk) ([]domain.Passage, error) {
	if s.docStore == nil {
		return nil, errors.New("document store unavailable")
	}

	passages := make([]domain.Passage, 0, len(chunks))
	for _, sc := range chunks {
		chunk, err := s.docStore.GetChunk(ctx, sc.chunkID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get chunk %s: %w", sc.chunkID, err)
		}

		doc, err := s.docStore.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", chunk.DocumentID, err)
		}

		passages = append(passages, domain.Passage{
			ID:      chunk.ID,
			Source:  doc.URI,
			Content: chunk.Content,
			Score:   sc.score,
		})
	}
	return passages, nil
}

// rerank reorders passages with the cross-encoder when one is configured.
// Reranking is an enhancement: on failure the fused order is kept.
func (s *RetrievalService) rerank(ctx context.Context, query string, passages []domain.Passage, k int) []domain.Passage {
	if s.reranker == nil || len(passages) == 0 {
		return passages
	}

	reranked, err := s.reranker.Rerank(ctx, query, passages, k)
	if err != nil {
		logger.Warn("Reranking failed (%v), keeping fused order", err)
		return passages
	}
	logger.Debug("Reranked %d passages to %d", len(passages), len(reranked))
	return reranked
}
