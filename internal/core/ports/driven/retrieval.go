package driven

import (
	"context"

	"github.com/quarry-labs/quarry/internal/core/domain"
)

// RetrievalIndex fetches passages relevant to a query. This is the answer
// workflow's view of the corpus: the workflow asks for the top k passages
// and does not care whether they came from keyword search, vector search
// or a fusion of both.
//
// Implementations must be safe for concurrent use; the workflow issues one
// retrieval per in-flight request.
type RetrievalIndex interface {
	// Search returns up to k passages ranked by relevance, best first.
	// An empty corpus or an unmatched query returns an empty slice, not
	// an error.
	Search(ctx context.Context, query string, k int) ([]domain.Passage, error)
}
