// Package mcp provides an MCP (Model Context Protocol) server adapter for
// quarry. It lets AI assistants ask questions against the ingested corpus,
// search it directly, and browse the stored documents as resources.
package mcp

import "errors"

// ErrMissingAnswerService is returned when the answer service is not provided.
var ErrMissingAnswerService = errors.New("mcp: answer service is required")

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")
