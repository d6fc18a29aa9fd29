package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		mockTranscripts := &mockTranscriptService{
			transcripts: []domain.Transcript{
				{
					ID:          "tr-1",
					Title:       "Budget Review",
					RawText:     "raw   words",
					CleanedText: "The budget\nwas approved.",
					CreatedAt:   created,
				},
			},
		}

		server, err := NewServer(&Ports{Transcripts: mockTranscripts})
		require.NoError(t, err)

		input := SearchInput{Query: "budget", Limit: 5}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		assert.Equal(t, "tr-1", output.Results[0].ID)
		assert.Equal(t, "Budget Review", output.Results[0].Title)
		assert.Equal(t, created, output.Results[0].CreatedAt)
		assert.Equal(t, "The budget was approved.", output.Results[0].Snippet)
		assert.Equal(t, "budget", mockTranscripts.lastQuery)
		assert.Equal(t, 5, mockTranscripts.lastLimit)
	})

	t.Run("default limit is 10", func(t *testing.T) {
		mockTranscripts := &mockTranscriptService{}
		server, err := NewServer(&Ports{Transcripts: mockTranscripts})
		require.NoError(t, err)

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "x"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, defaultSearchLimit, mockTranscripts.lastLimit)
	})

	t.Run("search error", func(t *testing.T) {
		server, err := NewServer(&Ports{Transcripts: &mockTranscriptService{err: errors.New("db locked")}})
		require.NoError(t, err)

		_, _, err = server.handleSearch(ctx, nil, SearchInput{Query: "x"})

		assert.ErrorContains(t, err, "db locked")
	})
}

func TestServer_handleGetTranscript(t *testing.T) {
	ctx := context.Background()

	t.Run("returns transcript", func(t *testing.T) {
		mockTranscripts := &mockTranscriptService{
			transcript: &domain.Transcript{ID: "tr-1", Title: "Sync", RawText: "raw", CleanedText: "clean"},
		}
		server, err := NewServer(&Ports{Transcripts: mockTranscripts})
		require.NoError(t, err)

		_, output, err := server.handleGetTranscript(ctx, nil, GetTranscriptInput{ID: "tr-1"})

		require.NoError(t, err)
		assert.Equal(t, "tr-1", output.ID)
		assert.Equal(t, "Sync", output.Title)
		assert.Equal(t, "raw", output.RawText)
		assert.Equal(t, "clean", output.CleanedText)
	})

	t.Run("empty id", func(t *testing.T) {
		server, err := NewServer(&Ports{Transcripts: &mockTranscriptService{}})
		require.NoError(t, err)

		_, _, err = server.handleGetTranscript(ctx, nil, GetTranscriptInput{ID: " "})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("not found", func(t *testing.T) {
		server, err := NewServer(&Ports{Transcripts: &mockTranscriptService{err: domain.ErrNotFound}})
		require.NoError(t, err)

		_, _, err = server.handleGetTranscript(ctx, nil, GetTranscriptInput{ID: "missing"})

		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "transcript not found")
	})
}

func TestServer_handleChat(t *testing.T) {
	ctx := context.Background()
	reply := &domain.ChatReply{
		Content:  "The budget was approved.",
		Provider: "primary",
		Source:   domain.ContextSourceChunks,
		UsedRAG:  true,
	}

	t.Run("returns answer", func(t *testing.T) {
		mockChat := &mockChatService{reply: reply}
		mockTranscripts := &mockTranscriptService{}
		server, err := NewServer(&Ports{Transcripts: mockTranscripts, Chat: mockChat})
		require.NoError(t, err)

		_, output, err := server.handleChat(ctx, nil, ChatInput{
			DocumentID: "tr-1", Message: "What about the budget?", IncludeHistory: true,
		})

		require.NoError(t, err)
		assert.Equal(t, "The budget was approved.", output.Answer)
		assert.Equal(t, "primary", output.Provider)
		assert.Equal(t, "chunks", output.ContextSource)
		assert.True(t, output.UsedRAG)
		assert.Equal(t, "tr-1", mockChat.lastReq.DocumentID)
		assert.True(t, mockChat.lastReq.IncludeHistory)
		assert.Empty(t, mockTranscripts.added)
	})

	t.Run("save appends both turns", func(t *testing.T) {
		mockTranscripts := &mockTranscriptService{}
		server, err := NewServer(&Ports{Transcripts: mockTranscripts, Chat: &mockChatService{reply: reply}})
		require.NoError(t, err)

		_, _, err = server.handleChat(ctx, nil, ChatInput{DocumentID: "tr-1", Message: "q", Save: true})

		require.NoError(t, err)
		require.Len(t, mockTranscripts.added, 2)
		assert.Equal(t, domain.RoleUser, mockTranscripts.added[0].Role)
		assert.Equal(t, "q", mockTranscripts.added[0].Content)
		assert.Equal(t, domain.RoleAssistant, mockTranscripts.added[1].Role)
		assert.Equal(t, reply.Content, mockTranscripts.added[1].Content)
	})

	t.Run("save without document is ignored", func(t *testing.T) {
		mockTranscripts := &mockTranscriptService{}
		server, err := NewServer(&Ports{Transcripts: mockTranscripts, Chat: &mockChatService{reply: reply}})
		require.NoError(t, err)

		_, _, err = server.handleChat(ctx, nil, ChatInput{Message: "q", Save: true})

		require.NoError(t, err)
		assert.Empty(t, mockTranscripts.added)
	})

	t.Run("chat not configured", func(t *testing.T) {
		server, err := NewServer(&Ports{Transcripts: &mockTranscriptService{}})
		require.NoError(t, err)

		_, _, err = server.handleChat(ctx, nil, ChatInput{Message: "q"})

		assert.ErrorIs(t, err, ErrChatUnavailable)
	})

	t.Run("no provider available", func(t *testing.T) {
		mockChat := &mockChatService{err: domain.ErrNoProviderAvailable}
		server, err := NewServer(&Ports{Transcripts: &mockTranscriptService{}, Chat: mockChat})
		require.NoError(t, err)

		_, _, err = server.handleChat(ctx, nil, ChatInput{Message: "q"})

		assert.ErrorIs(t, err, domain.ErrNoProviderAvailable)
		assert.Contains(t, err.Error(), "LLM endpoint")
	})
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n\tb   c"))

	long := strings.Repeat("x", snippetChars+10)
	got := snippet(long)
	assert.Equal(t, strings.Repeat("x", snippetChars)+"...", got)
}
