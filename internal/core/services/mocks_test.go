package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

const testDims = 3

// mockProvider is a scripted ChatProvider.
type mockProvider struct {
	name      string
	reply     string
	err       error
	stream    *mockStream
	streamErr error

	calls    atomic.Int32
	mu       sync.Mutex
	messages []domain.ChatMessage
	opts     domain.ChatOptions
	closeErr error
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Chat(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (string, error) {
	m.calls.Add(1)
	m.record(messages, opts)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.reply, m.err
}

func (m *mockProvider) ChatStream(ctx context.Context, messages []domain.ChatMessage, opts domain.ChatOptions) (driven.TokenStream, error) {
	m.calls.Add(1)
	m.record(messages, opts)
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	if m.stream == nil {
		return nil, errors.New("no stream scripted")
	}
	return m.stream, nil
}

func (m *mockProvider) Close() error { return m.closeErr }

func (m *mockProvider) record(messages []domain.ChatMessage, opts domain.ChatOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = messages
	m.opts = opts
}

func (m *mockProvider) lastMessages() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages
}

func (m *mockProvider) lastOpts() domain.ChatOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opts
}

// mockStream yields tokens, then err (io.EOF when nil). With hang set it
// blocks after the tokens until closed.
type mockStream struct {
	tokens []string
	err    error
	hang   bool

	mu     sync.Mutex
	pos    int
	closed chan struct{}
	once   sync.Once
}

func newMockStream(tokens ...string) *mockStream {
	return &mockStream{tokens: tokens, closed: make(chan struct{})}
}

func (s *mockStream) Recv() (string, error) {
	s.mu.Lock()
	if s.pos < len(s.tokens) {
		tok := s.tokens[s.pos]
		s.pos++
		s.mu.Unlock()
		return tok, nil
	}
	s.mu.Unlock()

	if s.hang {
		<-s.closed
		return "", errors.New("stream closed")
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *mockStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *mockStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// mockEmbedder returns a bag-of-keywords vector per text.
type mockEmbedder struct {
	dims        int
	unavailable bool
	embedErr    error
	batchErr    error

	// beforeBatch runs inside EmbedBatch before vectors are returned.
	beforeBatch func(texts []string)

	batches atomic.Int32
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dims: testDims}
}

func (m *mockEmbedder) Available(_ context.Context) bool { return !m.unavailable }

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batches.Add(1)
	if m.beforeBatch != nil {
		m.beforeBatch(texts)
	}
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

// vector scores budget, roadmap and hiring mentions on separate axes.
func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dims)
	lower := strings.ToLower(text)
	for i, word := range []string{"budget", "roadmap", "hiring"} {
		if i < m.dims {
			v[i] = float32(strings.Count(lower, word)) + 0.01
		}
	}
	return v
}

func (m *mockEmbedder) Dimensions() int   { return m.dims }
func (m *mockEmbedder) ModelName() string { return "mock-embed" }
func (m *mockEmbedder) BaseURL() string   { return "http://embed.test" }
func (m *mockEmbedder) Close() error      { return nil }

// mockPrompts serves fixed templates.
type mockPrompts struct {
	prompts map[string]string
}

func newMockPrompts() *mockPrompts {
	return &mockPrompts{prompts: map[string]string{
		driven.PromptCleanSystem: "Clean this transcript.",
		driven.PromptTitle:       "Title for:\n%s",
		driven.PromptChatSystem:  "Answer using context.\n\nContext:\n%s",
	}}
}

func (m *mockPrompts) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt: %s", name)
	}
	return p, nil
}

func (m *mockPrompts) Reload() {}
