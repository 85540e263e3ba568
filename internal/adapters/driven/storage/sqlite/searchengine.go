package sqlite

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/quarry-labs/quarry/internal/core/domain"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
)

// searchEngine implements driven.SearchEngine over an FTS5 index.
type searchEngine struct {
	store *Store
}

var _ driven.SearchEngine = (*searchEngine)(nil)

// Index adds or updates a chunk in the search index.
func (s *searchEngine) Index(ctx context.Context, chunk domain.Chunk) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks_fts WHERE chunk_id = ?", chunk.ID); err != nil {
		return fmt.Errorf("clearing indexed chunk: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chunks_fts (chunk_id, content) VALUES (?, ?)",
		chunk.ID, chunk.Content); err != nil {
		return fmt.Errorf("indexing chunk: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Delete removes a chunk from the search index.
func (s *searchEngine) Delete(ctx context.Context, chunkID string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM chunks_fts WHERE chunk_id = ?", chunkID)
	if err != nil {
		return fmt.Errorf("deleting indexed chunk: %w", err)
	}
	return nil
}

// Search performs a BM25-ranked keyword search. Scores are negated bm25()
// values so that higher means more relevant, matching the port contract.
func (s *searchEngine) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	match := buildMatchExpression(query)
	if match == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unlimited
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT chunk_id, bm25(chunks_fts) AS rank
		FROM chunks_fts
		WHERE chunks_fts MATCH ?
		ORDER BY rank, chunk_id
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var hit driven.SearchHit
		var rank float64
		if err := rows.Scan(&hit.ChunkID, &rank); err != nil {
			return nil, fmt.Errorf("scanning search hit: %w", err)
		}
		hit.Score = -rank
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search hits: %w", err)
	}

	return hits, nil
}

// Close releases resources. The underlying connection belongs to the Store.
func (s *searchEngine) Close() error {
	return nil
}

// buildMatchExpression turns free text into a safe FTS5 MATCH expression.
// Terms are quoted so user input can never inject FTS5 operators, and joined
// with OR for recall; BM25 ranking rewards documents matching more terms.
func buildMatchExpression(query string) string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(terms) == 0 {
		return ""
	}

	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " OR ")
}
