package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// Ensure SearchEngine implements the interface.
var _ driven.SearchEngine = (*SearchEngine)(nil)

// SearchEngine is an in-memory keyword index implementing driven.SearchEngine.
// Scoring is plain term frequency: each occurrence of a query term in a chunk
// scores one point. It stands in for the SQLite FTS5 engine in tests.
type SearchEngine struct {
	mu     sync.RWMutex
	chunks map[string][]string
}

// NewSearchEngine creates a new in-memory search engine.
func NewSearchEngine() *SearchEngine {
	return &SearchEngine{
		chunks: make(map[string][]string),
	}
}

// Index adds a chunk to the keyword index.
func (s *SearchEngine) Index(_ context.Context, chunk domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.ID] = tokenize(chunk.Content)
	return nil
}

// Delete removes a chunk from the index.
func (s *SearchEngine) Delete(_ context.Context, chunkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, chunkID)
	return nil
}

// Search returns chunk IDs whose content matches the query terms, best first.
func (s *SearchEngine) Search(_ context.Context, query string, limit int) ([]driven.SearchHit, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	wanted := make(map[string]bool, len(terms))
	for _, term := range terms {
		wanted[term] = true
	}

	s.mu.RLock()
	var hits []driven.SearchHit
	for chunkID, tokens := range s.chunks {
		score := 0.0
		for _, token := range tokens {
			if wanted[token] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, driven.SearchHit{ChunkID: chunkID, Score: score})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Close releases resources (no-op for memory engine).
func (s *SearchEngine) Close() error {
	return nil
}

// tokenize lowercases text and splits it on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
