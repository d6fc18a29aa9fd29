package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// ChatProvider is one chat-completion endpoint in a failover chain.
// Every entry of the chain implements the same interface, so tiers can be
// added without new branching in the dispatcher.
//
// Implementations may include:
//   - Ollama's OpenAI-compatible endpoint
//   - OpenAI
//   - LM Studio and other compatible servers
type ChatProvider interface {
	// Name labels the provider in logs and metrics. Never a URL or key.
	Name() string

	// Chat returns the complete assistant reply.
	Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error)

	// ChatStream opens a streamed completion. An error here means the
	// stream never started and another provider may be tried.
	ChatStream(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (TokenStream, error)

	// Close releases resources.
	Close() error
}

// TokenStream is a blocking iterator over streamed content fragments.
type TokenStream interface {
	// Recv blocks for the next content fragment. It returns io.EOF after
	// the provider's end marker.
	Recv() (string, error)

	// Close releases the underlying connection. Safe to call more than once.
	Close() error
}
