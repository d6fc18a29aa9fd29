package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// IndexService exposes chunk indexing to users.
type IndexService interface {
	// Reindex chunks and embeds a transcript synchronously.
	Reindex(ctx context.Context, id string) (*domain.IndexResult, error)

	// Chunks lists a transcript's stored chunks.
	Chunks(ctx context.Context, id string) ([]ChunkPreview, error)

	// Status reports the readiness of the retrieval stack.
	Status(ctx context.Context) domain.IndexStatus
}

// ChunkPreview is a display view of a stored chunk.
type ChunkPreview struct {
	// ID is the store-assigned chunk ID.
	ID int64

	// ChunkIndex is the 0-based position within the transcript.
	ChunkIndex int

	// StartChar and EndChar bound the window in the index text.
	StartChar int
	EndChar   int

	// Preview is the first characters of the chunk content.
	Preview string
}
