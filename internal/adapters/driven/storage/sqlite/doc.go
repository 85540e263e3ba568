// Package sqlite provides the SQLite-backed corpus store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. It implements two store
// interfaces through a single database connection:
//
//   - DocumentStore: document, chunk and embedding persistence
//   - SearchEngine: BM25 keyword search over an FTS5 index
//
// # Schema
//
// The database schema is managed through versioned migrations embedded from
// the migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.quarry/data/corpus.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking
// provided by SQLite in WAL mode.
package sqlite
