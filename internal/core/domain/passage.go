package domain

// Passage is a retrieved unit of source text used as grounding context.
// Passages are produced by the retrieval index and the reranker and are
// read-only downstream: synthesis consumes them, never mutates them.
type Passage struct {
	// ID is the chunk identifier the passage came from.
	ID string

	// Source is the provenance reference (document title or URI).
	Source string

	// Content is the passage text.
	Content string

	// Score is the relevance score assigned by retrieval or reranking.
	// Higher is more relevant. Zero when no score was assigned.
	Score float64
}
