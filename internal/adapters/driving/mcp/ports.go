package mcp

import (
	"github.com/quarry-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Answer runs the staged answer workflow behind the ask tool.
	Answer driving.AnswerService

	// Search backs the search tool with ranked passages.
	Search driving.SearchService

	// Ingest backs the corpus resources. Optional; without it the document
	// resources report an empty corpus.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Answer == nil {
		return ErrMissingAnswerService
	}
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
