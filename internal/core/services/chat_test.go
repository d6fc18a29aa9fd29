package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

func newChatFixture(policy domain.CleanFailurePolicy, providers ...driven.ChatProvider) (*ChatService, *memory.Store) {
	store := memory.NewStore()
	assembler := NewContextAssembler(store.TranscriptStore(), store.MessageStore(), nil, nil,
		newMockPrompts(), nil, AssemblerConfig{})
	return NewChatService(assembler, NewDispatcher(providers, nil), newMockPrompts(), policy), store
}

// collect drains events until the channel closes or the deadline passes.
func collect(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var out []domain.StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
			return out
		}
	}
}

func TestChatService_Chat(t *testing.T) {
	provider := &mockProvider{name: "primary", reply: "Answer."}
	svc, store := newChatFixture(domain.CleanFailureRaw, provider)
	require.NoError(t, store.TranscriptStore().SaveTranscript(context.Background(),
		&domain.Transcript{ID: "doc", RawText: "meeting text"}))

	reply, err := svc.Chat(context.Background(), domain.ChatRequest{DocumentID: "doc", Message: "What happened?"})

	require.NoError(t, err)
	assert.Equal(t, "Answer.", reply.Content)
	assert.Equal(t, "primary", reply.Provider)
	assert.Equal(t, domain.ContextSourceDocument, reply.Source)
	assert.False(t, reply.UsedRAG)
	assert.Equal(t, domain.ChatCompletionOptions, provider.lastOpts())
	msgs := provider.lastMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "meeting text")
}

func TestChatService_Chat_Errors(t *testing.T) {
	svc, _ := newChatFixture(domain.CleanFailureRaw, &mockProvider{name: "primary", err: errors.New("down")})

	_, err := svc.Chat(context.Background(), domain.ChatRequest{Message: "q"})
	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)

	_, err = svc.Chat(context.Background(), domain.ChatRequest{DocumentID: "missing", Message: "q"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChatService_Stream_RelaysInOrder(t *testing.T) {
	stream := newMockStream("Hel", "lo", " world")
	svc, _ := newChatFixture(domain.CleanFailureRaw, &mockProvider{name: "primary", stream: stream})

	cs, err := svc.Stream(context.Background(), domain.ChatRequest{Message: "q"})
	require.NoError(t, err)
	assert.Equal(t, "primary", cs.Provider)
	assert.Equal(t, domain.ContextSourceNone, cs.Source)

	events := collect(t, cs.Events)

	require.Len(t, events, 4)
	var sb strings.Builder
	for _, ev := range events[:3] {
		assert.Equal(t, domain.EventToken, ev.Kind)
		sb.WriteString(ev.Token)
	}
	assert.Equal(t, "Hello world", sb.String())
	assert.Equal(t, domain.EventDone, events[3].Kind)
	assert.True(t, stream.isClosed())
}

func TestChatService_Stream_MidStreamError(t *testing.T) {
	stream := newMockStream("partial")
	stream.err = errors.New("connection reset")
	svc, _ := newChatFixture(domain.CleanFailureRaw, &mockProvider{name: "primary", stream: stream})

	cs, err := svc.Stream(context.Background(), domain.ChatRequest{Message: "q"})
	require.NoError(t, err)
	events := collect(t, cs.Events)

	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0].Token)
	assert.Equal(t, domain.EventError, events[1].Kind)
	assert.ErrorContains(t, events[1].Err, "connection reset")
}

func TestChatService_Stream_Cancellation(t *testing.T) {
	stream := newMockStream("first")
	stream.hang = true
	svc, _ := newChatFixture(domain.CleanFailureRaw, &mockProvider{name: "primary", stream: stream})

	ctx, cancel := context.WithCancel(context.Background())
	cs, err := svc.Stream(ctx, domain.ChatRequest{Message: "q"})
	require.NoError(t, err)

	first := <-cs.Events
	assert.Equal(t, "first", first.Token)
	cancel()

	for ev := range cs.Events {
		assert.NotEqual(t, domain.EventDone, ev.Kind)
	}
	assert.True(t, stream.isClosed())
}

func TestChatService_Stream_OpenFailure(t *testing.T) {
	svc, _ := newChatFixture(domain.CleanFailureRaw, &mockProvider{name: "primary", streamErr: errors.New("503")})

	_, err := svc.Stream(context.Background(), domain.ChatRequest{Message: "q"})

	assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)
}

func TestChatService_Clean(t *testing.T) {
	provider := &mockProvider{name: "primary", reply: "  Cleaned text.  "}
	svc, _ := newChatFixture(domain.CleanFailureRaw, provider)

	res, err := svc.Clean(context.Background(), "um so cleaned text", "")

	require.NoError(t, err)
	assert.Equal(t, "Cleaned text.", res.Text)
	assert.Equal(t, "primary", res.Provider)
	assert.False(t, res.Degraded)
	assert.Equal(t, domain.CleanCompletionOptions, provider.lastOpts())
	msgs := provider.lastMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Clean this transcript.", msgs[0].Content)
	assert.Equal(t, "um so cleaned text", msgs[1].Content)
}

func TestChatService_Clean_CustomPrompt(t *testing.T) {
	provider := &mockProvider{name: "primary", reply: "ok"}
	svc, _ := newChatFixture(domain.CleanFailureRaw, provider)

	_, err := svc.Clean(context.Background(), "text", "Only fix punctuation.")

	require.NoError(t, err)
	assert.Equal(t, "Only fix punctuation.", provider.lastMessages()[0].Content)
}

func TestChatService_Clean_EmptyText(t *testing.T) {
	provider := &mockProvider{name: "primary", reply: "unused"}
	svc, _ := newChatFixture(domain.CleanFailureRaw, provider)

	res, err := svc.Clean(context.Background(), "  ", "")

	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestChatService_Clean_FailurePolicy(t *testing.T) {
	failing := func() driven.ChatProvider { return &mockProvider{name: "primary", err: errors.New("down")} }

	t.Run("raw returns input", func(t *testing.T) {
		svc, _ := newChatFixture(domain.CleanFailureRaw, failing())
		res, err := svc.Clean(context.Background(), "raw words", "")
		require.NoError(t, err)
		assert.Equal(t, "raw words", res.Text)
		assert.True(t, res.Degraded)
	})

	t.Run("strict returns error", func(t *testing.T) {
		svc, _ := newChatFixture(domain.CleanFailureStrict, failing())
		_, err := svc.Clean(context.Background(), "raw words", "")
		assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)
	})

	t.Run("unknown policy behaves as raw", func(t *testing.T) {
		svc, _ := newChatFixture("sometimes", failing())
		res, err := svc.Clean(context.Background(), "raw words", "")
		require.NoError(t, err)
		assert.True(t, res.Degraded)
	})
}

func TestChatService_GenerateTitle(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		text  string
		want  string
	}{
		{"trims quotes", `"Budget Review"`, nil, "text", "Budget Review"},
		{"caps at five words", "One two three four five six seven", nil, "text", "One two three four five"},
		{"empty reply", "  ", nil, "text", domain.DefaultTitle},
		{"provider failure", "", errors.New("down"), "Weekly sync about hiring plans", "Weekly sync about"},
		{"empty text", "unused", nil, "", domain.DefaultTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{name: "primary", reply: tt.reply, err: tt.err}
			svc, _ := newChatFixture(domain.CleanFailureRaw, provider)

			assert.Equal(t, tt.want, svc.GenerateTitle(context.Background(), tt.text))
		})
	}
}

func TestChatService_GenerateTitle_TruncatesInput(t *testing.T) {
	provider := &mockProvider{name: "primary", reply: "Title"}
	svc, _ := newChatFixture(domain.CleanFailureRaw, provider)

	svc.GenerateTitle(context.Background(), strings.Repeat("é", 800))

	msgs := provider.lastMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Title for:\n"+strings.Repeat("é", 500), msgs[0].Content)
	assert.Equal(t, domain.TitleCompletionOptions, provider.lastOpts())
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abcdef", 3))
	assert.Equal(t, "ab", truncateRunes("ab", 3))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
	assert.Empty(t, truncateRunes("abc", 0))
}
