package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
)

// chunkSeparator joins retrieved chunks in the context block.
const chunkSeparator = "\n\n---\n\n"

// noContextNotice fills the context block when nothing grounds the turn.
const noContextNotice = "(No transcript context is available for this question.)"

// Retrieval defaults.
const (
	DefaultTopK         = 5
	DefaultHistoryLimit = 10
)

// AssemblerConfig tunes retrieval.
type AssemblerConfig struct {
	// TopK is the number of chunks retrieved per turn.
	TopK int

	// HistoryLimit is the default number of prior turns when a request sets none.
	HistoryLimit int
}

// ContextAssembler builds the message list for one chat turn, choosing
// exactly one grounding source: retrieved chunks, explicit context, the
// whole document, or an explicit no-context notice.
type ContextAssembler struct {
	transcripts driven.TranscriptStore
	messages    driven.MessageStore
	vectors     driven.VectorIndex
	embedder    driven.EmbeddingService
	prompts     driven.PromptStore
	metrics     *metrics.Metrics
	cfg         AssemblerConfig
}

// NewContextAssembler creates an assembler. vectors and embedder may be
// nil, which disables retrieval; m may be nil.
func NewContextAssembler(
	transcripts driven.TranscriptStore,
	messages driven.MessageStore,
	vectors driven.VectorIndex,
	embedder driven.EmbeddingService,
	prompts driven.PromptStore,
	m *metrics.Metrics,
	cfg AssemblerConfig,
) *ContextAssembler {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	return &ContextAssembler{
		transcripts: transcripts,
		messages:    messages,
		vectors:     vectors,
		embedder:    embedder,
		prompts:     prompts,
		metrics:     m,
		cfg:         cfg,
	}
}

// Assemble returns system prompt, optional history, then the user turn.
func (a *ContextAssembler) Assemble(ctx context.Context, req domain.ChatRequest) (*domain.AssembledPrompt, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}

	var doc *domain.Transcript
	if req.DocumentID != "" {
		var err error
		doc, err = a.transcripts.GetTranscript(ctx, req.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}
	}

	prompt := &domain.AssembledPrompt{}
	contextText := a.selectContext(ctx, doc, req, prompt)
	a.metrics.ObserveContextSource(prompt.Source.String())
	logger.Debug("chat context source: %s", prompt.Source)

	template, err := a.prompts.Load(driven.PromptChatSystem)
	if err != nil {
		return nil, fmt.Errorf("load chat prompt: %w", err)
	}

	messages := []domain.ChatMessage{{
		Role:    domain.RoleSystem,
		Content: fillTemplate(template, contextText),
	}}

	if req.IncludeHistory && doc != nil {
		history, err := a.history(ctx, doc.ID, req.HistoryLimit)
		if err != nil {
			return nil, err
		}
		messages = append(messages, history...)
	}

	prompt.Messages = append(messages, domain.ChatMessage{Role: domain.RoleUser, Content: req.Message})
	return prompt, nil
}

// selectContext walks the fallback chain and records the chosen source.
func (a *ContextAssembler) selectContext(ctx context.Context, doc *domain.Transcript, req domain.ChatRequest, prompt *domain.AssembledPrompt) string {
	if doc != nil {
		if chunks := a.retrieve(ctx, doc.ID, req.Message); len(chunks) > 0 {
			parts := make([]string, len(chunks))
			for i, c := range chunks {
				parts[i] = c.Content
			}
			prompt.Source = domain.ContextSourceChunks
			prompt.Chunks = chunks
			return strings.Join(parts, chunkSeparator)
		}
	}

	if strings.TrimSpace(req.ExplicitContext) != "" {
		prompt.Source = domain.ContextSourceExplicit
		return req.ExplicitContext
	}

	if doc != nil {
		if text := doc.IndexText(); strings.TrimSpace(text) != "" {
			prompt.Source = domain.ContextSourceDocument
			return text
		}
	}

	prompt.Source = domain.ContextSourceNone
	return noContextNotice
}

// retrieve returns the closest chunks, or nil when retrieval is not
// possible. Failures degrade silently to the next grounding source.
func (a *ContextAssembler) retrieve(ctx context.Context, documentID, message string) []domain.Chunk {
	if a.vectors == nil || a.embedder == nil || !a.vectors.Available() {
		return nil
	}
	if !a.embedder.Available(ctx) {
		logger.Debug("embedding service unavailable, skipping retrieval")
		return nil
	}

	query, err := a.embedder.Embed(ctx, message)
	if err != nil {
		logger.Warn("embedding chat query failed, using fallback context: %v", err)
		return nil
	}

	chunks, err := a.vectors.Search(ctx, documentID, query, a.cfg.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrDimensionMismatch) {
			logger.Error("vector search misconfigured: %v", err)
		} else {
			logger.Warn("vector search failed, using fallback context: %v", err)
		}
		return nil
	}
	logger.Debug("retrieved %d chunks for %s", len(chunks), documentID)
	return chunks
}

// history returns the last limit turns, oldest first.
func (a *ContextAssembler) history(ctx context.Context, documentID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = a.cfg.HistoryLimit
	}
	stored, err := a.messages.ListMessages(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(stored) > limit {
		stored = stored[len(stored)-limit:]
	}
	out := make([]domain.ChatMessage, len(stored))
	for i, m := range stored {
		out[i] = domain.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out, nil
}

// fillTemplate substitutes the first %s of a prompt template, or appends
// value when the template has no placeholder.
func fillTemplate(template, value string) string {
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", value, 1)
	}
	return template + "\n\n" + value
}
