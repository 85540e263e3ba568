package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

func indexTestChunks(t *testing.T, engine driven.SearchEngine, chunks []domain.Chunk) {
	t.Helper()
	ctx := context.Background()
	for _, chunk := range chunks {
		require.NoError(t, engine.Index(ctx, chunk))
	}
}

func TestSearchEngine_IndexAndSearch(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	indexTestChunks(t, engine, []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Content: "the quick brown fox jumps over the lazy dog"},
		{ID: "c1", DocumentID: "doc-1", Content: "a slow green turtle crawls along the beach"},
		{ID: "c2", DocumentID: "doc-2", Content: "quick quick quick foxes everywhere in the forest"},
	})

	results, err := engine.Search(ctx, "quick fox", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Every returned chunk mentions at least one query term
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ChunkID)
		assert.Greater(t, r.Score, float64(0))
	}
	assert.Contains(t, ids, "c0")
	assert.Contains(t, ids, "c2")
	assert.NotContains(t, ids, "c1")

	// Results come back best first
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchEngine_Search_OrSemantics(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	indexTestChunks(t, engine, []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Content: "sqlite stores rows on disk"},
	})

	// One term matches, one doesn't; the chunk is still found
	results, err := engine.Search(ctx, "sqlite zeppelin", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c0", results[0].ChunkID)
}

func TestSearchEngine_Search_NoMatches(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	indexTestChunks(t, engine, []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Content: "completely unrelated text"},
	})

	results, err := engine.Search(ctx, "zeppelin", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchEngine_Search_EmptyQuery(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	results, err := engine.Search(ctx, "", 10)
	require.NoError(t, err)
	assert.Nil(t, results)

	// Punctuation-only queries tokenize to nothing
	results, err = engine.Search(ctx, "?! ...", 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestSearchEngine_Search_SpecialCharacters(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	indexTestChunks(t, engine, []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Content: "error handling in go uses explicit returns"},
	})

	// FTS5 operators and quotes in the query must not break the MATCH expression
	for _, query := range []string{
		`"error* AND (handling)`,
		`error's "handling"`,
		`error-handling: NOT NEAR`,
	} {
		results, err := engine.Search(ctx, query, 10)
		require.NoError(t, err, "query %q", query)
		assert.NotEmpty(t, results, "query %q", query)
	}
}

func TestSearchEngine_Search_Limit(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	indexTestChunks(t, engine, []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Content: "shared term alpha"},
		{ID: "c1", DocumentID: "doc-1", Content: "shared term beta"},
		{ID: "c2", DocumentID: "doc-1", Content: "shared term gamma"},
	})

	results, err := engine.Search(ctx, "shared", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// Zero means no limit
	results, err = engine.Search(ctx, "shared", 0)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearchEngine_Delete(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	indexTestChunks(t, engine, []domain.Chunk{
		{ID: "c0", DocumentID: "doc-1", Content: "keep this one"},
		{ID: "c1", DocumentID: "doc-1", Content: "remove this one"},
	})

	require.NoError(t, engine.Delete(ctx, "c1"))

	results, err := engine.Search(ctx, "remove", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = engine.Search(ctx, "keep", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Deleting an unknown chunk is a no-op
	assert.NoError(t, engine.Delete(ctx, "missing"))
}

func TestSearchEngine_Index_ReplacesPrevious(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	engine := store.SearchEngine()

	chunk := domain.Chunk{ID: "c0", DocumentID: "doc-1", Content: "original wording"}
	require.NoError(t, engine.Index(ctx, chunk))

	chunk.Content = "replacement wording"
	require.NoError(t, engine.Index(ctx, chunk))

	results, err := engine.Search(ctx, "original", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = engine.Search(ctx, "replacement", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c0", results[0].ChunkID)
}
