package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidRole indicates a message role other than user or assistant.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrNoText indicates a transcript has no text to index.
	ErrNoText = errors.New("no text to index")

	// ErrInvalidConfig indicates settings that can never work at runtime.
	ErrInvalidConfig = errors.New("invalid configuration")

	// Retrieval Errors.

	// ErrEmbeddingUnavailable indicates the embedding service cannot be reached
	// or does not serve the configured model.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index could not be initialised.
	// Semantic retrieval is disabled and chat falls back to document context.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// configured embedding dimension. This is a configuration error.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrChunkEmbeddingMismatch indicates a replace call with a different
	// number of chunks and embeddings.
	ErrChunkEmbeddingMismatch = errors.New("chunks and embeddings length mismatch")

	// Provider Errors.

	// ErrNoProviderAvailable indicates every provider in a failover chain failed.
	ErrNoProviderAvailable = errors.New("no LLM provider available")
)
