package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/metrics"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
)

type assemblerFixture struct {
	store *memory.Store
	vec   *memory.VectorIndex
	emb   *mockEmbedder
	m     *metrics.Metrics
	a     *ContextAssembler
}

func newAssemblerFixture(t *testing.T) *assemblerFixture {
	t.Helper()
	f := &assemblerFixture{store: memory.NewStore(), emb: newMockEmbedder(), m: metrics.New()}
	f.vec = f.store.VectorIndex(testDims)
	f.a = NewContextAssembler(f.store.TranscriptStore(), f.store.MessageStore(), f.vec, f.emb,
		newMockPrompts(), f.m, AssemblerConfig{TopK: 2, HistoryLimit: 3})
	return f
}

func (f *assemblerFixture) addTranscript(t *testing.T, id, raw, cleaned string) {
	t.Helper()
	require.NoError(t, f.store.TranscriptStore().SaveTranscript(context.Background(), &domain.Transcript{
		ID: id, Title: id, RawText: raw, CleanedText: cleaned, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))
}

func (f *assemblerFixture) index(t *testing.T, id, text string) {
	t.Helper()
	ix := NewIndexer(chunker.New(chunker.WithChunkSize(40), chunker.WithOverlap(0)), f.emb, f.vec, nil)
	defer ix.Close()
	require.True(t, ix.Index(context.Background(), id, text).Success)
}

const meetingText = "We discussed the roadmap for next year. The budget was approved today. Hiring starts in March."

func TestAssemble_UsesRetrievedChunks(t *testing.T) {
	f := newAssemblerFixture(t)
	f.addTranscript(t, "doc", meetingText, "")
	f.index(t, "doc", meetingText)

	prompt, err := f.a.Assemble(context.Background(), domain.ChatRequest{
		DocumentID: "doc", Message: "What about the budget?", ExplicitContext: "ignored",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ContextSourceChunks, prompt.Source)
	require.Len(t, prompt.Chunks, 2)
	assert.Contains(t, prompt.Chunks[0].Content, "budget")

	require.Len(t, prompt.Messages, 2)
	system := prompt.Messages[0]
	assert.Equal(t, domain.RoleSystem, system.Role)
	assert.Contains(t, system.Content, prompt.Chunks[0].Content+chunkSeparator+prompt.Chunks[1].Content)
	assert.NotContains(t, system.Content, "ignored")
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Content: "What about the budget?"}, prompt.Messages[1])
	assert.InDelta(t, 1, testutil.ToFloat64(f.m.ContextSource.WithLabelValues("chunks")), 0)
}

func TestAssemble_FallbackOrder(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, f *assemblerFixture)
		req      domain.ChatRequest
		source   domain.ContextSource
		contains string
	}{
		{
			name:     "explicit context when nothing is indexed",
			setup:    func(t *testing.T, f *assemblerFixture) { f.addTranscript(t, "doc", meetingText, "") },
			req:      domain.ChatRequest{DocumentID: "doc", Message: "q", ExplicitContext: "pasted notes"},
			source:   domain.ContextSourceExplicit,
			contains: "pasted notes",
		},
		{
			name:     "document text when nothing is indexed",
			setup:    func(t *testing.T, f *assemblerFixture) { f.addTranscript(t, "doc", "raw words", "clean words") },
			req:      domain.ChatRequest{DocumentID: "doc", Message: "q"},
			source:   domain.ContextSourceDocument,
			contains: "clean words",
		},
		{
			name: "document text when the vector index is down",
			setup: func(t *testing.T, f *assemblerFixture) {
				f.addTranscript(t, "doc", meetingText, "")
				f.index(t, "doc", meetingText)
				f.vec.SetAvailable(false)
			},
			req:      domain.ChatRequest{DocumentID: "doc", Message: "budget"},
			source:   domain.ContextSourceDocument,
			contains: meetingText,
		},
		{
			name: "document text when embedding is down",
			setup: func(t *testing.T, f *assemblerFixture) {
				f.addTranscript(t, "doc", meetingText, "")
				f.index(t, "doc", meetingText)
				f.emb.unavailable = true
			},
			req:      domain.ChatRequest{DocumentID: "doc", Message: "budget"},
			source:   domain.ContextSourceDocument,
			contains: meetingText,
		},
		{
			name: "document text when the query embedding fails",
			setup: func(t *testing.T, f *assemblerFixture) {
				f.addTranscript(t, "doc", meetingText, "")
				f.index(t, "doc", meetingText)
				f.emb.embedErr = errors.New("timeout")
			},
			req:      domain.ChatRequest{DocumentID: "doc", Message: "budget"},
			source:   domain.ContextSourceDocument,
			contains: meetingText,
		},
		{
			name:     "explicit context without a document",
			setup:    func(*testing.T, *assemblerFixture) {},
			req:      domain.ChatRequest{Message: "q", ExplicitContext: "notes"},
			source:   domain.ContextSourceExplicit,
			contains: "notes",
		},
		{
			name:     "no context at all",
			setup:    func(*testing.T, *assemblerFixture) {},
			req:      domain.ChatRequest{Message: "q"},
			source:   domain.ContextSourceNone,
			contains: noContextNotice,
		},
		{
			name:     "no context for an empty document",
			setup:    func(t *testing.T, f *assemblerFixture) { f.addTranscript(t, "doc", " ", "") },
			req:      domain.ChatRequest{DocumentID: "doc", Message: "q"},
			source:   domain.ContextSourceNone,
			contains: noContextNotice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAssemblerFixture(t)
			tt.setup(t, f)

			prompt, err := f.a.Assemble(context.Background(), tt.req)

			require.NoError(t, err)
			assert.Equal(t, tt.source, prompt.Source)
			assert.Empty(t, prompt.Chunks)
			assert.Contains(t, prompt.Messages[0].Content, tt.contains)
		})
	}
}

func TestAssemble_DimensionMismatchFallsBack(t *testing.T) {
	f := newAssemblerFixture(t)
	f.addTranscript(t, "doc", meetingText, "")
	f.index(t, "doc", meetingText)
	f.emb.dims = testDims + 1

	prompt, err := f.a.Assemble(context.Background(), domain.ChatRequest{DocumentID: "doc", Message: "budget"})

	require.NoError(t, err)
	assert.Equal(t, domain.ContextSourceDocument, prompt.Source)
}

func TestAssemble_SearchIsScopedToDocument(t *testing.T) {
	f := newAssemblerFixture(t)
	f.addTranscript(t, "a", meetingText, "")
	f.addTranscript(t, "b", "Budget budget budget. Budget again.", "")
	f.index(t, "a", meetingText)
	f.index(t, "b", "Budget budget budget. Budget again.")

	prompt, err := f.a.Assemble(context.Background(), domain.ChatRequest{DocumentID: "a", Message: "budget"})

	require.NoError(t, err)
	require.NotEmpty(t, prompt.Chunks)
	for _, c := range prompt.Chunks {
		assert.Equal(t, "a", c.DocumentID)
	}
}

func TestAssemble_History(t *testing.T) {
	f := newAssemblerFixture(t)
	f.addTranscript(t, "doc", meetingText, "")
	for i := 0; i < 5; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, f.store.MessageStore().AddMessage(context.Background(), &domain.Message{
			TranscriptID: "doc", Role: role, Content: fmt.Sprintf("turn %d", i),
		}))
	}

	t.Run("default limit keeps the latest turns in order", func(t *testing.T) {
		prompt, err := f.a.Assemble(context.Background(), domain.ChatRequest{
			DocumentID: "doc", Message: "next", IncludeHistory: true,
		})
		require.NoError(t, err)
		require.Len(t, prompt.Messages, 5)
		assert.Equal(t, "turn 2", prompt.Messages[1].Content)
		assert.Equal(t, domain.RoleAssistant, prompt.Messages[2].Role)
		assert.Equal(t, "turn 4", prompt.Messages[3].Content)
		assert.Equal(t, "next", prompt.Messages[4].Content)
	})

	t.Run("request limit", func(t *testing.T) {
		prompt, err := f.a.Assemble(context.Background(), domain.ChatRequest{
			DocumentID: "doc", Message: "next", IncludeHistory: true, HistoryLimit: 1,
		})
		require.NoError(t, err)
		require.Len(t, prompt.Messages, 3)
		assert.Equal(t, "turn 4", prompt.Messages[1].Content)
	})

	t.Run("history off", func(t *testing.T) {
		prompt, err := f.a.Assemble(context.Background(), domain.ChatRequest{DocumentID: "doc", Message: "next"})
		require.NoError(t, err)
		assert.Len(t, prompt.Messages, 2)
	})
}

func TestAssemble_Errors(t *testing.T) {
	f := newAssemblerFixture(t)

	_, err := f.a.Assemble(context.Background(), domain.ChatRequest{Message: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.a.Assemble(context.Background(), domain.ChatRequest{DocumentID: "missing", Message: "q"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssemble_NilRetrieval(t *testing.T) {
	store := memory.NewStore()
	a := NewContextAssembler(store.TranscriptStore(), store.MessageStore(), nil, nil, newMockPrompts(), nil, AssemblerConfig{})
	require.NoError(t, store.TranscriptStore().SaveTranscript(context.Background(), &domain.Transcript{ID: "doc", RawText: "text"}))

	prompt, err := a.Assemble(context.Background(), domain.ChatRequest{DocumentID: "doc", Message: "q"})

	require.NoError(t, err)
	assert.Equal(t, domain.ContextSourceDocument, prompt.Source)
}

func TestFillTemplate(t *testing.T) {
	assert.Equal(t, "Context:\nabc", fillTemplate("Context:\n%s", "abc"))
	assert.Equal(t, "Plain\n\nvalue", fillTemplate("Plain", "value"))
	assert.Equal(t, "x 1 y %s", fillTemplate("x %s y %s", "1"))
}
