package driving

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// SearchService exposes corpus retrieval to external actors (MCP search
// tool, diagnostics). It returns the same ranked passages the answer
// workflow consumes, without running the workflow around them.
type SearchService interface {
	// Search returns up to k passages ranked by relevance, best first.
	// k <= 0 selects the configured default. An empty corpus or an
	// unmatched query returns an empty slice, not an error.
	Search(ctx context.Context, query string, k int) ([]domain.Passage, error)
}
