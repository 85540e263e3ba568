// Package domain defines the core business entities for Quarry.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RequestState: The immutable state threaded through the answer workflow
//   - WorkflowEvent: Progress notifications emitted by the orchestrator
//   - Passage: A retrieved unit of source text with provenance
//   - StructuredAnswer: A synthesized answer with citations
//   - Document / Chunk: The ingested corpus representation
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
