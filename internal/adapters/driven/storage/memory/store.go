package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Store is an in-memory counterpart of the SQLite store. Deleting a
// transcript drops its messages and chunks, as the database cascade does.
type Store struct {
	mu          sync.RWMutex
	transcripts map[string]domain.Transcript
	order       map[string]int64
	messages    map[string][]domain.Message
	chunks      map[string][]storedChunk
	seq         int64
	messageID   int64
	chunkID     int64
}

type storedChunk struct {
	chunk     domain.Chunk
	embedding []float32
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		transcripts: make(map[string]domain.Transcript),
		order:       make(map[string]int64),
		messages:    make(map[string][]domain.Message),
		chunks:      make(map[string][]storedChunk),
	}
}

// TranscriptStore returns a TranscriptStore view.
func (s *Store) TranscriptStore() driven.TranscriptStore {
	return &transcriptStore{s}
}

// MessageStore returns a MessageStore view.
func (s *Store) MessageStore() driven.MessageStore {
	return &messageStore{s}
}

// FullTextIndex returns a substring-matching FullTextIndex view.
func (s *Store) FullTextIndex() driven.FullTextIndex {
	return &fullTextIndex{s}
}

// VectorIndex returns a brute-force VectorIndex accepting dims-sized vectors.
func (s *Store) VectorIndex(dims int) *VectorIndex {
	v := &VectorIndex{store: s, dims: dims}
	v.available.Store(true)
	return v
}

// recent returns transcripts newest first, limited to limit.
// Caller must hold s.mu.
func (s *Store) recent(filter func(domain.Transcript) bool, limit int) []domain.Transcript {
	out := make([]domain.Transcript, 0, len(s.transcripts))
	for _, t := range s.transcripts {
		if filter == nil || filter(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ==================== Transcript Store ====================

type transcriptStore struct{ s *Store }

var _ driven.TranscriptStore = (*transcriptStore)(nil)

func (ts *transcriptStore) SaveTranscript(_ context.Context, t *domain.Transcript) error {
	if t == nil || t.ID == "" {
		return domain.ErrInvalidInput
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	s := ts.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.transcripts[t.ID]; ok {
		t.CreatedAt = existing.CreatedAt
	} else {
		s.seq++
		s.order[t.ID] = s.seq
	}
	s.transcripts[t.ID] = *t
	return nil
}

func (ts *transcriptStore) GetTranscript(_ context.Context, id string) (*domain.Transcript, error) {
	s := ts.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transcripts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (ts *transcriptStore) DeleteTranscript(_ context.Context, id string) error {
	s := ts.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcripts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.transcripts, id)
	delete(s.order, id)
	delete(s.messages, id)
	delete(s.chunks, id)
	return nil
}

func (ts *transcriptStore) ListTranscripts(_ context.Context, limit int) ([]domain.Transcript, error) {
	s := ts.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recent(nil, limit), nil
}

// ==================== Message Store ====================

type messageStore struct{ s *Store }

var _ driven.MessageStore = (*messageStore)(nil)

func (ms *messageStore) AddMessage(_ context.Context, m *domain.Message) error {
	if m == nil || m.TranscriptID == "" {
		return domain.ErrInvalidInput
	}
	if !m.Role.IsValid() {
		return domain.ErrInvalidRole
	}

	s := ms.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcripts[m.TranscriptID]; !ok {
		return fmt.Errorf("saving message: %w", domain.ErrNotFound)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	s.messageID++
	m.ID = s.messageID
	s.messages[m.TranscriptID] = append(s.messages[m.TranscriptID], *m)
	return nil
}

func (ms *messageStore) ListMessages(_ context.Context, transcriptID string) ([]domain.Message, error) {
	s := ms.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[transcriptID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// ==================== Full-Text Index ====================

type fullTextIndex struct{ s *Store }

var _ driven.FullTextIndex = (*fullTextIndex)(nil)

// Search matches the query case-insensitively against title and both
// text fields, newest first.
func (f *fullTextIndex) Search(_ context.Context, query string, limit int) ([]domain.Transcript, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	s := f.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q == "" {
		return s.recent(nil, limit), nil
	}
	return s.recent(func(t domain.Transcript) bool {
		return strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.RawText), q) ||
			strings.Contains(strings.ToLower(t.CleanedText), q)
	}, limit), nil
}

// ==================== Vector Index ====================

// VectorIndex is a brute-force implementation of driven.VectorIndex.
type VectorIndex struct {
	store     *Store
	dims      int
	available atomic.Bool
}

var _ driven.VectorIndex = (*VectorIndex)(nil)

// SetAvailable overrides the readiness flag.
func (v *VectorIndex) SetAvailable(ok bool) {
	v.available.Store(ok)
}

// Available reports the readiness flag.
func (v *VectorIndex) Available() bool {
	return v.available.Load()
}

// Probe returns the readiness flag unchanged.
func (v *VectorIndex) Probe(_ context.Context) bool {
	return v.available.Load()
}

// Dimensions returns the accepted vector size.
func (v *VectorIndex) Dimensions() int {
	return v.dims
}

// Replace swaps a document's chunk set.
func (v *VectorIndex) Replace(_ context.Context, documentID string, chunks []domain.Chunk, embeddings [][]float32) ([]domain.Chunk, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("%w: %d chunks, %d embeddings",
			domain.ErrChunkEmbeddingMismatch, len(chunks), len(embeddings))
	}
	for i, e := range embeddings {
		if len(e) != v.dims {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, index expects %d",
				domain.ErrDimensionMismatch, i, len(e), v.dims)
		}
	}
	if !v.Available() {
		return nil, domain.ErrVectorIndexUnavailable
	}

	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transcripts[documentID]; !ok {
		return nil, fmt.Errorf("saving chunks: %w", domain.ErrNotFound)
	}

	entries := make([]storedChunk, len(chunks))
	stored := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		s.chunkID++
		c.ID = s.chunkID
		c.DocumentID = documentID
		emb := make([]float32, len(embeddings[i]))
		copy(emb, embeddings[i])
		entries[i] = storedChunk{chunk: c, embedding: emb}
		stored[i] = c
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].chunk.ChunkIndex < entries[j].chunk.ChunkIndex
	})
	s.chunks[documentID] = entries
	return stored, nil
}

// Search ranks a document's chunks by cosine distance to query.
func (v *VectorIndex) Search(_ context.Context, documentID string, query []float32, topK int) ([]domain.Chunk, error) {
	if !v.Available() || topK <= 0 {
		return nil, nil
	}
	if len(query) != v.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			domain.ErrDimensionMismatch, len(query), v.dims)
	}

	s := v.store
	s.mu.RLock()
	entries := s.chunks[documentID]
	type scored struct {
		chunk    domain.Chunk
		distance float64
	}
	ranked := make([]scored, len(entries))
	for i, e := range entries {
		ranked[i] = scored{chunk: e.chunk, distance: cosineDistance(e.embedding, query)}
	}
	s.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].distance != ranked[j].distance {
			return ranked[i].distance < ranked[j].distance
		}
		return ranked[i].chunk.ChunkIndex < ranked[j].chunk.ChunkIndex
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	out := make([]domain.Chunk, len(ranked))
	for i, r := range ranked {
		out[i] = r.chunk
	}
	return out, nil
}

// Chunks lists a document's chunks in order.
func (v *VectorIndex) Chunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s := v.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.chunks[documentID]
	out := make([]domain.Chunk, len(entries))
	for i, e := range entries {
		out[i] = e.chunk
	}
	return out, nil
}

// DeleteDocument removes a document's chunks and embeddings.
func (v *VectorIndex) DeleteDocument(_ context.Context, documentID string) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
