package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// Title generation limits.
const (
	titleSnippetChars  = 500
	titleMaxWords      = 5
	titleFallbackWords = 3
)

// ChatService answers questions, cleans transcripts and proposes titles
// through the provider chain.
type ChatService struct {
	assembler  *ContextAssembler
	dispatcher *Dispatcher
	prompts    driven.PromptStore
	policy     domain.CleanFailurePolicy
}

// NewChatService creates a chat service.
func NewChatService(
	assembler *ContextAssembler,
	dispatcher *Dispatcher,
	prompts driven.PromptStore,
	policy domain.CleanFailurePolicy,
) *ChatService {
	if !policy.IsValid() {
		policy = domain.CleanFailureRaw
	}
	return &ChatService{
		assembler:  assembler,
		dispatcher: dispatcher,
		prompts:    prompts,
		policy:     policy,
	}
}

// Chat returns a complete grounded answer.
func (s *ChatService) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	logger.Section("Chat")
	prompt, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	reply, err := s.dispatcher.Chat(ctx, prompt.Messages, domain.ChatCompletionOptions)
	if err != nil {
		return nil, err
	}
	reply.Source = prompt.Source
	reply.UsedRAG = prompt.Source == domain.ContextSourceChunks
	return &reply, nil
}

// Stream opens a grounded answer and relays its tokens on a channel.
func (s *ChatService) Stream(ctx context.Context, req domain.ChatRequest) (*domain.ChatStream, error) {
	logger.Section("Chat stream")
	prompt, err := s.assembler.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	stream, provider, err := s.dispatcher.Stream(ctx, prompt.Messages, domain.ChatCompletionOptions)
	if err != nil {
		return nil, err
	}

	events := make(chan domain.StreamEvent)
	go relay(ctx, stream, provider, events)

	return &domain.ChatStream{
		Events:   events,
		Provider: provider,
		Source:   prompt.Source,
		UsedRAG:  prompt.Source == domain.ContextSourceChunks,
	}, nil
}

// relay pulls tokens from stream until it ends, fails, or ctx is done.
// It sends exactly one terminal event unless cancelled, then closes events.
func relay(ctx context.Context, stream driven.TokenStream, provider string, events chan<- domain.StreamEvent) {
	defer close(events)

	// Closing the stream unblocks a Recv in progress when ctx ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = stream.Close()
		case <-stop:
		}
	}()
	defer stream.Close()

	send := func(ev domain.StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		token, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			send(domain.StreamEvent{Kind: domain.EventDone})
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("stream from %s broke: %v", provider, err)
			send(domain.StreamEvent{Kind: domain.EventError, Err: fmt.Errorf("stream from %s: %w", provider, err)})
			return
		}
		if !send(domain.StreamEvent{Kind: domain.EventToken, Token: token}) {
			return
		}
	}
}

// Clean rewrites raw transcript text. What a total provider failure
// returns depends on the configured policy.
func (s *ChatService) Clean(ctx context.Context, text, systemPrompt string) (*domain.CleanResult, error) {
	if strings.TrimSpace(text) == "" {
		return &domain.CleanResult{}, nil
	}

	if systemPrompt == "" {
		var err error
		systemPrompt, err = s.prompts.Load(driven.PromptCleanSystem)
		if err != nil {
			return nil, fmt.Errorf("load clean prompt: %w", err)
		}
	}

	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: text},
	}
	reply, err := s.dispatcher.Chat(ctx, messages, domain.CleanCompletionOptions)
	if err != nil {
		if ctx.Err() != nil || s.policy == domain.CleanFailureStrict {
			return nil, err
		}
		logger.Error("cleaning failed, returning raw text: %v", err)
		return &domain.CleanResult{Text: text, Degraded: true}, nil
	}

	cleaned := strings.TrimSpace(reply.Content)
	logger.Info("cleaned %d chars via %s", len(cleaned), reply.Provider)
	return &domain.CleanResult{Text: cleaned, Provider: reply.Provider}, nil
}

// GenerateTitle proposes a title of at most five words.
func (s *ChatService) GenerateTitle(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return domain.DefaultTitle
	}

	template, err := s.prompts.Load(driven.PromptTitle)
	if err != nil {
		logger.Warn("load title prompt: %v", err)
		return fallbackTitle(text)
	}

	messages := []domain.ChatMessage{
		{Role: domain.RoleUser, Content: fillTemplate(template, truncateRunes(text, titleSnippetChars))},
	}
	reply, err := s.dispatcher.Chat(ctx, messages, domain.TitleCompletionOptions)
	if err != nil {
		logger.Warn("title generation failed: %v", err)
		return fallbackTitle(text)
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(reply.Content), `"'`))
	words := strings.Fields(title)
	if len(words) > titleMaxWords {
		words = words[:titleMaxWords]
	}
	if len(words) == 0 {
		return domain.DefaultTitle
	}
	return strings.Join(words, " ")
}

// fallbackTitle is the opening words of text.
func fallbackTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return domain.DefaultTitle
	}
	if len(words) > titleFallbackWords {
		words = words[:titleFallbackWords]
	}
	return strings.Join(words, " ")
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
