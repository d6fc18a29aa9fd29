package driven

import "context"

// EmbeddingService generates vector embeddings from text.
//
// Note: This is separate from VectorIndex which stores and searches vectors.
// EmbeddingService generates vectors; VectorIndex stores them.
type EmbeddingService interface {
	// Available probes the endpoint and reports whether the configured
	// model is served. Failures return false and are logged, never raised.
	Available(ctx context.Context) bool

	// Embed generates a vector embedding for the given text.
	// Non-success responses and wrong-length vectors are errors.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result has the same order and length as texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 768).
	// This must match VectorIndex configuration.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// BaseURL returns the endpoint root, for status reporting.
	BaseURL() string

	// Close releases resources.
	Close() error
}
