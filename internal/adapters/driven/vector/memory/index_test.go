package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storagemem "github.com/quarry-labs/quarry/internal/adapters/driven/storage/memory"
	"github.com/quarry-labs/quarry/internal/core/domain"
)

func TestIndex_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := New(3)

	require.NoError(t, idx.Add(ctx, "x-axis", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "y-axis", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "diagonal", []float32{1, 1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0.1, 0}, 3)

	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "x-axis", hits[0].ChunkID)
	assert.Equal(t, "diagonal", hits[1].ChunkID)
	assert.Equal(t, "y-axis", hits[2].ChunkID)
	assert.Greater(t, hits[0].Similarity, hits[1].Similarity)
}

func TestIndex_SearchNormalisesMagnitude(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	// Same direction, wildly different magnitudes.
	require.NoError(t, idx.Add(ctx, "small", []float32{0.001, 0}))
	require.NoError(t, idx.Add(ctx, "large", []float32{1000, 0}))

	hits, err := idx.Search(ctx, []float32{5, 0}, 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
	assert.InDelta(t, 1.0, hits[1].Similarity, 1e-6)
}

func TestIndex_AdoptsDimensionFromFirstAdd(t *testing.T) {
	ctx := context.Background()
	idx := New(0)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 2, 3, 4}))

	err := idx.Add(ctx, "b", []float32{1, 2})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_RejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := New(3)

	err := idx.Add(ctx, "a", []float32{1, 2})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 2, 3}))

	_, err = idx.Search(ctx, []float32{1, 2}, 1)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_AddReplacesExisting(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "a", []float32{0, 1}))

	assert.Equal(t, 1, idx.Len())

	hits, err := idx.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-6)
}

func TestIndex_Delete(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Delete(ctx, "a"))
	require.NoError(t, idx.Delete(ctx, "missing"))

	hits, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_SearchTruncatesToK(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0.9, 0.1}))
	require.NoError(t, idx.Add(ctx, "c", []float32{0.8, 0.2}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)

	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestIndex_SearchTiesOrderByChunkID(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	// Identical vectors produce identical similarities.
	require.NoError(t, idx.Add(ctx, "zebra", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "apple", []float32{1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "apple", hits[0].ChunkID)
	assert.Equal(t, "zebra", hits[1].ChunkID)
}

func TestIndex_ZeroVectorNeverMatches(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	require.NoError(t, idx.Add(ctx, "zero", []float32{0, 0}))
	require.NoError(t, idx.Add(ctx, "real", []float32{1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)

	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "real", hits[0].ChunkID)
	assert.InDelta(t, 0.0, hits[1].Similarity, 1e-9)
}

func TestIndex_EmptySearches(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Nil(t, hits)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))

	hits, err = idx.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestIndex_RejectsInvalidAdds(t *testing.T) {
	ctx := context.Background()
	idx := New(2)

	require.ErrorIs(t, idx.Add(ctx, "", []float32{1, 0}), domain.ErrInvalidInput)
	require.ErrorIs(t, idx.Add(ctx, "a", nil), domain.ErrInvalidInput)
}

func TestLoadFromStore(t *testing.T) {
	ctx := context.Background()
	store := storagemem.NewDocumentStore()

	doc := &domain.Document{ID: "doc1", URI: "https://example.com/a"}
	require.NoError(t, store.SaveDocument(ctx, doc))
	require.NoError(t, store.SaveChunks(ctx, []domain.Chunk{
		{ID: "doc1-c0", DocumentID: "doc1", Content: "alpha"},
		{ID: "doc1-c1", DocumentID: "doc1", Content: "beta"},
	}))
	require.NoError(t, store.SaveEmbedding(ctx, "doc1-c0", []float32{1, 0}))
	require.NoError(t, store.SaveEmbedding(ctx, "doc1-c1", []float32{0, 1}))

	idx, err := LoadFromStore(ctx, store, 2)

	require.NoError(t, err)
	assert.Equal(t, 2, idx.Len())

	hits, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "doc1-c0", hits[0].ChunkID)
}
