package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
)

// Indexer chunks and embeds transcripts into the vector index.
//
// Every run for a document takes a new version. A run commits only while
// its version is still the latest, so an older run finishing after a newer
// one is discarded instead of overwriting fresher chunks.
type Indexer struct {
	chunker  *chunker.Chunker
	embedder driven.EmbeddingService
	vectors  driven.VectorIndex
	metrics  *metrics.Metrics

	mu   sync.Mutex
	docs map[string]*docState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// docState tracks one document's latest version and serialises commits.
type docState struct {
	version uint64
	commit  sync.Mutex
}

// NewIndexer creates an indexer. embedder and vectors may be nil, which
// disables indexing; m may be nil.
func NewIndexer(c *chunker.Chunker, embedder driven.EmbeddingService, vectors driven.VectorIndex, m *metrics.Metrics) *Indexer {
	if c == nil {
		c = chunker.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Indexer{
		chunker:  c,
		embedder: embedder,
		vectors:  vectors,
		metrics:  m,
		docs:     make(map[string]*docState),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Enabled reports whether an embedding service and vector index are wired.
func (ix *Indexer) Enabled() bool {
	return ix.embedder != nil && ix.vectors != nil
}

// Schedule indexes text in the background and returns immediately.
// The job runs on the indexer's own context, not the caller's.
func (ix *Indexer) Schedule(documentID, text string) {
	st, version := ix.next(documentID)
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		res := ix.run(ix.ctx, st, documentID, text, version)
		switch {
		case res.Success:
			logger.Info("indexed %s: %d chunks", documentID, res.ChunksCreated)
		case res.Stale:
			logger.Debug("discarded stale index run for %s", documentID)
		default:
			logger.Warn("indexing %s skipped: %s", documentID, res.Reason)
		}
	}()
}

// Index runs one indexing pass synchronously.
func (ix *Indexer) Index(ctx context.Context, documentID, text string) domain.IndexResult {
	st, version := ix.next(documentID)
	return ix.run(ctx, st, documentID, text, version)
}

// Clear invalidates in-flight runs and removes the document's chunks.
// Use it when a transcript no longer has text to index.
func (ix *Indexer) Clear(ctx context.Context, documentID string) error {
	ix.mu.Lock()
	st := ix.state(documentID)
	st.version++
	ix.mu.Unlock()

	st.commit.Lock()
	defer st.commit.Unlock()
	if ix.vectors == nil {
		return nil
	}
	if err := ix.vectors.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clear chunks for %s: %w", documentID, err)
	}
	ix.metrics.ObserveIndexRun(metrics.IndexCleared, 0)
	return nil
}

// Forget invalidates in-flight runs for a deleted document and drops its
// tracking state. Runs already holding the state see it as stale.
func (ix *Indexer) Forget(documentID string) {
	ix.mu.Lock()
	st, ok := ix.docs[documentID]
	if !ok {
		ix.mu.Unlock()
		return
	}
	st.version++
	delete(ix.docs, documentID)
	ix.mu.Unlock()

	st.commit.Lock()
	st.commit.Unlock() //nolint:staticcheck // barrier only
}

// tracked reports how many documents have version state.
func (ix *Indexer) tracked() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.docs)
}

// Wait blocks until all scheduled jobs have finished.
func (ix *Indexer) Wait() {
	ix.wg.Wait()
}

// Close cancels scheduled jobs and waits for them to return.
func (ix *Indexer) Close() {
	ix.cancel()
	ix.wg.Wait()
}

func (ix *Indexer) state(documentID string) *docState {
	st, ok := ix.docs[documentID]
	if !ok {
		st = &docState{}
		ix.docs[documentID] = st
	}
	return st
}

func (ix *Indexer) next(documentID string) (*docState, uint64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	st := ix.state(documentID)
	st.version++
	return st, st.version
}

func (ix *Indexer) current(st *docState, version uint64) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return st.version == version
}

func (ix *Indexer) run(ctx context.Context, st *docState, documentID, text string, version uint64) domain.IndexResult {
	logger.Section("Indexing " + documentID)
	result := domain.IndexResult{DocumentID: documentID}

	if strings.TrimSpace(text) == "" {
		result.Reason = domain.ReasonNoText
		ix.metrics.ObserveIndexRun(metrics.IndexSkipped, 0)
		return result
	}
	if ix.vectors == nil || !ix.vectors.Available() {
		result.Reason = domain.ReasonVectorUnavailable
		ix.metrics.ObserveIndexRun(metrics.IndexSkipped, 0)
		return result
	}
	if ix.embedder == nil || !ix.embedder.Available(ctx) {
		result.Reason = domain.ReasonEmbeddingUnavailable
		ix.metrics.ObserveIndexRun(metrics.IndexSkipped, 0)
		return result
	}

	chunks := ix.chunker.Chunk(documentID, text)
	if len(chunks) == 0 {
		result.Reason = domain.ReasonNoText
		ix.metrics.ObserveIndexRun(metrics.IndexSkipped, 0)
		return result
	}
	logger.Debug("split %s into %d chunks", documentID, len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embeddings, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		result.Reason = err.Error()
		ix.metrics.ObserveIndexRun(metrics.IndexFailed, 0)
		return result
	}

	st.commit.Lock()
	defer st.commit.Unlock()

	if !ix.current(st, version) {
		result.Reason = domain.ReasonSuperseded
		result.Stale = true
		ix.metrics.ObserveIndexRun(metrics.IndexStale, 0)
		return result
	}

	stored, err := ix.vectors.Replace(ctx, documentID, chunks, embeddings)
	if err != nil {
		result.Reason = err.Error()
		ix.metrics.ObserveIndexRun(metrics.IndexFailed, 0)
		return result
	}

	result.Success = true
	result.ChunksCreated = len(stored)
	ix.metrics.ObserveIndexRun(metrics.IndexCommitted, len(stored))
	return result
}
