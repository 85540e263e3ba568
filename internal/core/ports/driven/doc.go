// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - RetrievalIndex: Fetches relevant passages for a query
//   - SearchEngine: Full-text search (SQLite FTS5). BM25 keyword search is always required.
//   - DocumentStore: Document, chunk and embedding persistence
//   - ConfigStore: Application configuration
//   - PromptStore: LLM prompt templates
//   - Loader: Fetches documents from a data source
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LanguageModel: Text and structured completions. Without it, the answer
//     workflow skips rewriting and produces deterministic fallback answers.
//   - EmbeddingService: Generates vector embeddings. Without it, VectorIndex
//     is also disabled and retrieval is keyword-only.
//   - VectorIndex: Vector similarity search. Only enabled when
//     EmbeddingService is configured.
//   - Reranker: Cross-encoder result reordering. Without it, retrieval keeps
//     the fused ranking.
//   - AIConfigValidator: Provider connectivity checks for the settings
//     wizard. Without it, validation is skipped.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or postprocessor package
package driven
