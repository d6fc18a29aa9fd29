package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure TranscriptService implements the interface.
var _ driving.TranscriptService = (*TranscriptService)(nil)

// List and search bounds.
const (
	DefaultListLimit   = 100
	MaxListLimit       = 500
	DefaultSearchLimit = 50
	MaxSearchLimit     = 200
)

// TranscriptService manages transcripts and keeps the index in step.
type TranscriptService struct {
	transcripts driven.TranscriptStore
	messages    driven.MessageStore
	fulltext    driven.FullTextIndex
	vectors     driven.VectorIndex
	indexer     *Indexer
}

// NewTranscriptService creates a transcript service. vectors and indexer
// may be nil.
func NewTranscriptService(
	transcripts driven.TranscriptStore,
	messages driven.MessageStore,
	fulltext driven.FullTextIndex,
	vectors driven.VectorIndex,
	indexer *Indexer,
) *TranscriptService {
	return &TranscriptService{
		transcripts: transcripts,
		messages:    messages,
		fulltext:    fulltext,
		vectors:     vectors,
		indexer:     indexer,
	}
}

// Create stores a new transcript and schedules indexing.
func (s *TranscriptService) Create(ctx context.Context, title, rawText, cleanedText string) (*domain.Transcript, error) {
	if strings.TrimSpace(title) == "" {
		title = domain.DefaultTitle
	}
	now := time.Now().UTC()
	t := &domain.Transcript{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(title),
		RawText:     rawText,
		CleanedText: cleanedText,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.transcripts.SaveTranscript(ctx, t); err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	logger.Info("created transcript %s (%q)", t.ID, t.Title)

	s.scheduleIndex(t)
	return t, nil
}

// Get retrieves a transcript by ID.
func (s *TranscriptService) Get(ctx context.Context, id string) (*domain.Transcript, error) {
	return s.transcripts.GetTranscript(ctx, id)
}

// List returns transcripts newest first.
func (s *TranscriptService) List(ctx context.Context, limit int) ([]domain.Transcript, error) {
	return s.transcripts.ListTranscripts(ctx, clamp(limit, DefaultListLimit, MaxListLimit))
}

// Update applies patch. Changes to either text field re-index; clearing
// the text removes the transcript's chunks.
func (s *TranscriptService) Update(ctx context.Context, id string, patch domain.TranscriptPatch) (*domain.Transcript, error) {
	t, err := s.transcripts.GetTranscript(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return t, nil
	}

	before := t.IndexText()
	patch.Apply(t)
	if strings.TrimSpace(t.Title) == "" {
		t.Title = domain.DefaultTitle
	}
	t.UpdatedAt = time.Now().UTC()
	if err := s.transcripts.SaveTranscript(ctx, t); err != nil {
		return nil, fmt.Errorf("update transcript: %w", err)
	}

	if patch.ChangesText() && t.IndexText() != before {
		if strings.TrimSpace(t.IndexText()) == "" {
			s.clearIndex(ctx, id)
		} else {
			s.scheduleIndex(t)
		}
	}
	return t, nil
}

// Delete removes a transcript. In-flight index runs for it are discarded.
func (s *TranscriptService) Delete(ctx context.Context, id string) error {
	if s.indexer != nil {
		s.indexer.Forget(id)
	}
	if err := s.transcripts.DeleteTranscript(ctx, id); err != nil {
		return err
	}
	// The store cascade normally covers this; an index kept elsewhere does not.
	if s.vectors != nil {
		if err := s.vectors.DeleteDocument(ctx, id); err != nil {
			logger.Warn("delete chunks for %s: %v", id, err)
		}
	}
	logger.Info("deleted transcript %s", id)
	return nil
}

// Search runs a keyword search.
func (s *TranscriptService) Search(ctx context.Context, query string, limit int) ([]domain.Transcript, error) {
	return s.fulltext.Search(ctx, query, clamp(limit, DefaultSearchLimit, MaxSearchLimit))
}

// AddMessage appends a conversation turn.
func (s *TranscriptService) AddMessage(ctx context.Context, id string, role domain.Role, content string) (*domain.Message, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
	}
	if _, err := s.transcripts.GetTranscript(ctx, id); err != nil {
		return nil, err
	}
	m := &domain.Message{TranscriptID: id, Role: role, Content: content}
	if err := s.messages.AddMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	return m, nil
}

// Messages returns a transcript's conversation.
func (s *TranscriptService) Messages(ctx context.Context, id string) ([]domain.Message, error) {
	if _, err := s.transcripts.GetTranscript(ctx, id); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, id)
}

func (s *TranscriptService) scheduleIndex(t *domain.Transcript) {
	if s.indexer == nil || strings.TrimSpace(t.IndexText()) == "" {
		return
	}
	s.indexer.Schedule(t.ID, t.IndexText())
}

// clearIndex drops chunks left over from text that no longer exists.
func (s *TranscriptService) clearIndex(ctx context.Context, id string) {
	var err error
	switch {
	case s.indexer != nil:
		err = s.indexer.Clear(ctx, id)
	case s.vectors != nil:
		err = s.vectors.DeleteDocument(ctx, id)
	}
	if err != nil {
		logger.Warn("clear chunks for %s: %v", id, err)
	}
}

// clamp applies a default for non-positive n and caps it at upper.
func clamp(n, def, upper int) int {
	if n <= 0 {
		return def
	}
	if n > upper {
		return upper
	}
	return n
}
