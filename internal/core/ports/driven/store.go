package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// TranscriptStore persists transcripts.
type TranscriptStore interface {
	// SaveTranscript inserts or updates a transcript.
	SaveTranscript(ctx context.Context, t *domain.Transcript) error

	// GetTranscript retrieves a transcript by ID.
	// Returns domain.ErrNotFound if absent.
	GetTranscript(ctx context.Context, id string) (*domain.Transcript, error)

	// DeleteTranscript removes a transcript with its messages, chunks and embeddings.
	// Returns domain.ErrNotFound if absent.
	DeleteTranscript(ctx context.Context, id string) error

	// ListTranscripts returns transcripts newest first.
	ListTranscripts(ctx context.Context, limit int) ([]domain.Transcript, error)
}

// MessageStore persists conversation turns.
type MessageStore interface {
	// AddMessage appends a turn and assigns its ID and CreatedAt.
	AddMessage(ctx context.Context, m *domain.Message) error

	// ListMessages returns a transcript's turns in chronological order.
	ListMessages(ctx context.Context, transcriptID string) ([]domain.Message, error)
}
