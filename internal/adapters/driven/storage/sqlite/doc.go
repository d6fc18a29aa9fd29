// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple interfaces
// through a single database connection pool:
//
//   - TranscriptStore: Transcript persistence
//   - MessageStore: Per-transcript conversation history
//   - FullTextIndex: FTS5 keyword search kept in sync by triggers
//   - VectorIndex: Chunk and embedding storage ranked by cosine distance
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Vector Search
//
// Cosine distance is provided by a Go scalar function, vec_distance_cosine,
// registered with the driver. Embeddings are stored as little-endian float32
// blobs.
//
// # Data Location
//
// By default, the database is stored at ~/.recall/data/recall.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
