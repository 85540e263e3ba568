// Package memory provides an in-memory vector index using brute-force cosine
// similarity. The index is warmed from the corpus store at startup and kept in
// sync by ingestion; it is never persisted on its own.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Index provides vector similarity search over normalised float32 vectors.
// Brute-force scan keeps the implementation simple; corpora in the tens of
// thousands of chunks stay well under a millisecond per query.
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float32
}

// New creates an empty index. Dimension 0 adopts the dimension of the first
// vector added.
func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		vectors:   make(map[string][]float32),
	}
}

// Add inserts or replaces a vector for the given chunk ID. The vector is
// normalised on insert so searches reduce to a dot product.
func (idx *Index) Add(_ context.Context, chunkID string, embedding []float32) error {
	if chunkID == "" {
		return fmt.Errorf("%w: empty chunk ID", domain.ErrInvalidInput)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("%w: empty embedding", domain.ErrInvalidInput)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dimension == 0 {
		idx.dimension = len(embedding)
	}
	if len(embedding) != idx.dimension {
		return fmt.Errorf("%w: embedding has %d dimensions, index expects %d",
			domain.ErrInvalidInput, len(embedding), idx.dimension)
	}

	idx.vectors[chunkID] = normalise(embedding)
	return nil
}

// Delete removes a vector from the index. Deleting an absent ID is a no-op.
func (idx *Index) Delete(_ context.Context, chunkID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.vectors, chunkID)
	return nil
}

// Search finds the k nearest neighbours to the query vector, most similar
// first. Equal similarities order by chunk ID for deterministic results.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.vectors) == 0 {
		return nil, nil
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrInvalidInput, len(query), idx.dimension)
	}

	q := normalise(query)

	hits := make([]driven.VectorHit, 0, len(idx.vectors))
	for chunkID, vec := range idx.vectors {
		hits = append(hits, driven.VectorHit{
			ChunkID:    chunkID,
			Similarity: dot(q, vec),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.vectors)
}

// Close releases resources.
func (idx *Index) Close() error {
	return nil
}

// LoadFromStore warms the index with every embedding the store holds.
// Returns the number of vectors loaded.
func LoadFromStore(ctx context.Context, store driven.DocumentStore, dimension int) (*Index, error) {
	idx := New(dimension)

	err := store.ForEachEmbedding(ctx, func(chunkID string, embedding []float32) error {
		return idx.Add(ctx, chunkID, embedding)
	})
	if err != nil {
		return nil, fmt.Errorf("load vector index: %w", err)
	}

	return idx, nil
}

// normalise returns a unit-length copy of v. The zero vector stays zero so it
// never matches anything.
func normalise(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(v))
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// dot computes the dot product of two equal-length vectors. For normalised
// inputs this is the cosine similarity.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
