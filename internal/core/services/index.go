package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// chunkPreviewChars is the preview length shown for stored chunks.
const chunkPreviewChars = 200

// IndexService exposes the indexer and vector index to users.
type IndexService struct {
	transcripts driven.TranscriptStore
	indexer     *Indexer
	embedder    driven.EmbeddingService
	vectors     driven.VectorIndex
}

// NewIndexService creates an index service. embedder and vectors may be nil.
func NewIndexService(
	transcripts driven.TranscriptStore,
	indexer *Indexer,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
) *IndexService {
	return &IndexService{
		transcripts: transcripts,
		indexer:     indexer,
		embedder:    embedder,
		vectors:     vectors,
	}
}

// Reindex rebuilds a transcript's chunks and waits for the result.
func (s *IndexService) Reindex(ctx context.Context, id string) (*domain.IndexResult, error) {
	t, err := s.transcripts.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}
	text := t.IndexText()
	if strings.TrimSpace(text) == "" {
		if err := s.indexer.Clear(ctx, id); err != nil {
			return nil, fmt.Errorf("%w: transcript %s: %w", domain.ErrNoText, id, err)
		}
		return nil, fmt.Errorf("%w: transcript %s", domain.ErrNoText, id)
	}

	res := s.indexer.Index(ctx, id, text)
	if !res.Success {
		return &res, fmt.Errorf("reindex %s: %s", id, res.Reason)
	}
	return &res, nil
}

// Chunks lists a transcript's stored chunks as previews.
func (s *IndexService) Chunks(ctx context.Context, id string) ([]driving.ChunkPreview, error) {
	if _, err := s.transcripts.GetTranscript(ctx, id); err != nil {
		return nil, err
	}
	if s.vectors == nil {
		return []driving.ChunkPreview{}, nil
	}

	chunks, err := s.vectors.Chunks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	previews := make([]driving.ChunkPreview, len(chunks))
	for i, c := range chunks {
		previews[i] = driving.ChunkPreview{
			ID:         c.ID,
			ChunkIndex: c.ChunkIndex,
			StartChar:  c.StartChar,
			EndChar:    c.EndChar,
			Preview:    c.Preview(chunkPreviewChars),
		}
	}
	return previews, nil
}

// Status probes the embedding endpoint and reports retrieval readiness.
func (s *IndexService) Status(ctx context.Context) domain.IndexStatus {
	status := domain.IndexStatus{Enabled: s.indexer != nil && s.indexer.Enabled()}
	if s.embedder != nil {
		status.EmbeddingModel = s.embedder.ModelName()
		status.EmbeddingBaseURL = s.embedder.BaseURL()
		status.EmbeddingAvailable = s.embedder.Available(ctx)
	}
	if s.vectors != nil {
		status.VectorAvailable = s.vectors.Probe(ctx)
		status.Dimensions = s.vectors.Dimensions()
	}
	status.Available = status.Enabled && status.EmbeddingAvailable && status.VectorAvailable
	return status
}
