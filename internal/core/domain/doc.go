// Package domain defines the core business entities for Recall.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Transcript: A text-bearing document with optional cleaned text
//   - Chunk: A position-tagged retrieval unit within a transcript
//   - Message: A conversation turn owned by a transcript
//   - ProviderConfig: One entry of a provider failover chain
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
