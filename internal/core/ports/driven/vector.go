package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// VectorIndex stores chunks with their embeddings and ranks them by
// cosine distance, always scoped to one document.
type VectorIndex interface {
	// Available reports the readiness flag set by the last probe.
	// When false, Search returns no results without querying.
	Available() bool

	// Probe re-checks readiness and updates Available.
	Probe(ctx context.Context) bool

	// Replace atomically drops every chunk and embedding of documentID and
	// stores the new set in ChunkIndex order. len(chunks) must equal
	// len(embeddings). Returns the stored chunks with IDs assigned.
	Replace(ctx context.Context, documentID string, chunks []domain.Chunk, embeddings [][]float32) ([]domain.Chunk, error)

	// Search returns up to topK chunks of documentID by ascending cosine
	// distance to query, ties broken by ascending ChunkIndex.
	Search(ctx context.Context, documentID string, query []float32, topK int) ([]domain.Chunk, error)

	// Chunks lists a document's stored chunks in ChunkIndex order.
	Chunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document's chunks and embeddings together.
	DeleteDocument(ctx context.Context, documentID string) error

	// Dimensions returns the vector size the index accepts.
	Dimensions() int
}
