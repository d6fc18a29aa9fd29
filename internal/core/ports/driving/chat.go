package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// ChatService answers questions about transcripts.
type ChatService interface {
	// Chat returns a complete grounded answer.
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)

	// Stream opens a grounded answer as a token stream.
	// Errors before the first token are returned here; later ones arrive
	// as an EventError on the stream.
	Stream(ctx context.Context, req domain.ChatRequest) (*domain.ChatStream, error)

	// Clean rewrites raw speech-to-text output. An empty systemPrompt uses
	// the configured clean prompt.
	Clean(ctx context.Context, text, systemPrompt string) (*domain.CleanResult, error)

	// GenerateTitle proposes a short title. It never fails; it falls back
	// to the opening words of the text.
	GenerateTitle(ctx context.Context, text string) string
}
