// Package openai provides a chat provider for OpenAI-compatible endpoints
// (Ollama /v1, OpenAI, LM Studio) built on go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.ChatProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434/v1"
	DefaultModel   = "llama2"
	DefaultTimeout = 120 * time.Second
)

// ErrEmptyResponse indicates a completion without choices.
var ErrEmptyResponse = errors.New("empty completion response")

// Config holds configuration for one provider.
type Config struct {
	domain.ProviderConfig

	// Timeout bounds a non-streamed completion (default: 120s).
	// Streams are bounded only by their context.
	Timeout time.Duration

	// HTTPClient overrides the transport. Optional.
	HTTPClient *http.Client
}

// Provider sends chat completions to one OpenAI-compatible endpoint.
type Provider struct {
	client  *openai.Client
	name    string
	model   string
	timeout time.Duration
	secrets []string
}

// NewProvider creates a provider from its configuration.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	secrets := []string{clientCfg.BaseURL}
	if cfg.APIKey != "" {
		secrets = append(secrets, cfg.APIKey)
	}

	return &Provider{
		client:  openai.NewClientWithConfig(clientCfg),
		name:    cfg.Name,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		secrets: secrets,
	}, nil
}

// Name returns the chain label.
func (p *Provider) Name() string {
	return p.name
}

// Model returns the configured model.
func (p *Provider) Model() string {
	return p.model
}

// Chat returns the assistant reply for messages.
func (p *Provider) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, p.request(messages, opts, false))
	if err != nil {
		return "", p.redact(fmt.Errorf("chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// ChatStream opens a streamed completion.
func (p *Provider) ChatStream(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (driven.TokenStream, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.request(messages, opts, true))
	if err != nil {
		return nil, p.redact(fmt.Errorf("open stream: %w", err))
	}
	return &tokenStream{stream: stream, provider: p}, nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) request(messages []domain.ChatMessage, opts domain.ChatOptions, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msgs[i] = openai.ChatCompletionMessage{
			Role:    m.Role.String(),
			Content: m.Content,
		}
	}
	return openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		Stream:      stream,
	}
}

// redact strips the endpoint and key from provider error text while
// keeping the original error in the chain.
func (p *Provider) redact(err error) error {
	msg := err.Error()
	clean := msg
	for _, s := range p.secrets {
		if s != "" {
			clean = strings.ReplaceAll(clean, s, "[redacted]")
		}
	}
	if clean == msg {
		return err
	}
	return &redactedError{msg: clean, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

// tokenStream adapts go-openai's stream to driven.TokenStream.
type tokenStream struct {
	stream    *openai.ChatCompletionStream
	provider  *Provider
	closeOnce sync.Once
}

// Recv returns the next non-empty content fragment, skipping role-only
// and usage chunks.
func (s *tokenStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", s.provider.redact(fmt.Errorf("stream: %w", err))
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}
}

// Close releases the HTTP connection.
func (s *tokenStream) Close() error {
	s.closeOnce.Do(func() {
		s.stream.Close()
	})
	return nil
}
