package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// TranscriptService manages transcripts and their conversations.
type TranscriptService interface {
	// Create stores a new transcript and schedules indexing.
	// An empty title becomes domain.DefaultTitle.
	Create(ctx context.Context, title, rawText, cleanedText string) (*domain.Transcript, error)

	// Get retrieves a transcript by ID.
	Get(ctx context.Context, id string) (*domain.Transcript, error)

	// List returns transcripts newest first.
	List(ctx context.Context, limit int) ([]domain.Transcript, error)

	// Update applies a partial update. Text changes schedule re-indexing.
	Update(ctx context.Context, id string, patch domain.TranscriptPatch) (*domain.Transcript, error)

	// Delete removes a transcript with its messages, chunks and embeddings.
	Delete(ctx context.Context, id string) error

	// Search runs a keyword search over titles and text.
	Search(ctx context.Context, query string, limit int) ([]domain.Transcript, error)

	// AddMessage appends a conversation turn to a transcript.
	AddMessage(ctx context.Context, id string, role domain.Role, content string) (*domain.Message, error)

	// Messages returns a transcript's conversation, oldest first.
	Messages(ctx context.Context, id string) ([]domain.Message, error)
}
