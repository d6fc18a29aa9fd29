package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
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

// 1,200 characters of sentences, 60 per sentence.
var longText = strings.Repeat("The team reviewed the quarterly budget and hiring plan now. ", 20)

func newIndexerFixture(t *testing.T, ids ...string) (*memory.Store, *memory.VectorIndex, *mockEmbedder) {
	t.Helper()
	store := memory.NewStore()
	for _, id := range ids {
		require.NoError(t, store.TranscriptStore().SaveTranscript(context.Background(), &domain.Transcript{
			ID: id, Title: id, CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}))
	}
	return store, store.VectorIndex(testDims), newMockEmbedder()
}

func TestIndexer_Index_Commits(t *testing.T) {
	_, vec, emb := newIndexerFixture(t, "doc")
	m := metrics.New()
	ix := NewIndexer(chunker.New(), emb, vec, m)
	defer ix.Close()

	res := ix.Index(context.Background(), "doc", longText)

	require.True(t, res.Success, res.Reason)
	assert.Equal(t, "doc", res.DocumentID)
	assert.Equal(t, 3, res.ChunksCreated)

	chunks, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.LessOrEqual(t, len(c.Content), 500)
	}
	assert.InDelta(t, 1, testutil.ToFloat64(m.IndexRuns.WithLabelValues(metrics.IndexCommitted)), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ChunksIndexed), 0)
}

func TestIndexer_Index_IsIdempotent(t *testing.T) {
	_, vec, emb := newIndexerFixture(t, "doc")
	ix := NewIndexer(chunker.New(), emb, vec, nil)
	defer ix.Close()

	first := ix.Index(context.Background(), "doc", longText)
	before, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)
	second := ix.Index(context.Background(), "doc", longText)
	after, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)

	require.True(t, first.Success)
	require.True(t, second.Success)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Content, after[i].Content)
		assert.Equal(t, before[i].StartChar, after[i].StartChar)
		assert.Equal(t, before[i].EndChar, after[i].EndChar)
	}
}

func TestIndexer_Index_SkipReasons(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(vec *memory.VectorIndex, emb *mockEmbedder)
		text   string
		reason string
	}{
		{"blank text", func(*memory.VectorIndex, *mockEmbedder) {}, "   \n", domain.ReasonNoText},
		{"vector index down", func(v *memory.VectorIndex, _ *mockEmbedder) { v.SetAvailable(false) }, longText, domain.ReasonVectorUnavailable},
		{"embedding down", func(_ *memory.VectorIndex, e *mockEmbedder) { e.unavailable = true }, longText, domain.ReasonEmbeddingUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, vec, emb := newIndexerFixture(t, "doc")
			tt.setup(vec, emb)
			m := metrics.New()
			ix := NewIndexer(chunker.New(), emb, vec, m)
			defer ix.Close()

			res := ix.Index(context.Background(), "doc", tt.text)

			assert.False(t, res.Success)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, int32(0), emb.batches.Load())
			assert.InDelta(t, 1, testutil.ToFloat64(m.IndexRuns.WithLabelValues(metrics.IndexSkipped)), 0)
		})
	}
}

func TestIndexer_Index_EmbeddingFailureKeepsOldChunks(t *testing.T) {
	_, vec, emb := newIndexerFixture(t, "doc")
	ix := NewIndexer(chunker.New(), emb, vec, nil)
	defer ix.Close()
	require.True(t, ix.Index(context.Background(), "doc", longText).Success)

	emb.batchErr = errors.New("model not loaded")
	res := ix.Index(context.Background(), "doc", "Entirely different text.")

	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "model not loaded")
	chunks, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}

func TestIndexer_Index_NilDependencies(t *testing.T) {
	ix := NewIndexer(nil, nil, nil, nil)
	defer ix.Close()

	assert.False(t, ix.Enabled())
	res := ix.Index(context.Background(), "doc", longText)
	assert.Equal(t, domain.ReasonVectorUnavailable, res.Reason)
}

func TestIndexer_StaleRunIsDiscarded(t *testing.T) {
	_, vec, emb := newIndexerFixture(t, "doc")
	ix := NewIndexer(chunker.New(), emb, vec, nil)
	defer ix.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	emb.beforeBatch = func([]string) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
		}
	}

	firstDone := make(chan domain.IndexResult, 1)
	go func() {
		firstDone <- ix.Index(context.Background(), "doc", "Old notes about the roadmap.")
	}()
	<-started

	second := ix.Index(context.Background(), "doc", "New notes about the budget.")
	require.True(t, second.Success)

	close(release)
	first := <-firstDone

	assert.False(t, first.Success)
	assert.True(t, first.Stale)
	assert.Equal(t, domain.ReasonSuperseded, first.Reason)

	chunks, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "New notes about the budget.", chunks[0].Content)
}

func TestIndexer_ClearRemovesChunksAndDiscardsRun(t *testing.T) {
	_, vec, emb := newIndexerFixture(t, "doc")
	m := metrics.New()
	ix := NewIndexer(chunker.New(), emb, vec, m)
	defer ix.Close()
	require.True(t, ix.Index(context.Background(), "doc", longText).Success)

	started := make(chan struct{})
	release := make(chan struct{})
	emb.beforeBatch = func([]string) {
		close(started)
		<-release
	}

	ix.Schedule("doc", "Replacement notes about hiring.")
	<-started
	require.NoError(t, ix.Clear(context.Background(), "doc"))
	close(release)
	ix.Wait()

	chunks, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.InDelta(t, 1, testutil.ToFloat64(m.IndexRuns.WithLabelValues(metrics.IndexStale)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.IndexRuns.WithLabelValues(metrics.IndexCleared)), 0)
}

func TestIndexer_Clear_NoVectorIndex(t *testing.T) {
	ix := NewIndexer(nil, nil, nil, nil)
	defer ix.Close()

	assert.NoError(t, ix.Clear(context.Background(), "doc"))
}

func TestIndexer_ForgetDropsStateAndDiscardsRun(t *testing.T) {
	_, vec, emb := newIndexerFixture(t, "doc")
	ix := NewIndexer(chunker.New(), emb, vec, nil)
	defer ix.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	emb.beforeBatch = func([]string) {
		close(started)
		<-release
	}

	ix.Schedule("doc", longText)
	<-started
	ix.Forget("doc")
	assert.Zero(t, ix.tracked())
	close(release)
	ix.Wait()

	chunks, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Zero(t, ix.tracked())

	ix.Forget("unknown")
	assert.Zero(t, ix.tracked())
}

func TestIndexer_Schedule_RunsInBackground(t *testing.T) {
	_, vec, emb := newIndexerFixture(t, "doc")
	ix := NewIndexer(chunker.New(), emb, vec, nil)

	ix.Schedule("doc", longText)
	ix.Wait()
	ix.Close()

	chunks, err := vec.Chunks(context.Background(), "doc")
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
}
