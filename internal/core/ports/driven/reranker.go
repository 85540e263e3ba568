package driven

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// Reranker reorders retrieved passages by cross-encoder relevance.
// This is an optional service - when nil, retrieval keeps the fused
// keyword/vector ranking.
type Reranker interface {
	// Rerank scores the passages against the query and returns the top k,
	// best first. Callers keep the input order when this fails; the scored
	// order is an enhancement, not a requirement.
	Rerank(ctx context.Context, query string, passages []domain.Passage, k int) ([]domain.Passage, error)

	// ModelName returns the cross-encoder model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}
