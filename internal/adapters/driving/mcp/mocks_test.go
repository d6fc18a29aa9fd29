package mcp

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// mockTranscriptService is a mock implementation of driving.TranscriptService.
type mockTranscriptService struct {
	transcripts []domain.Transcript
	transcript  *domain.Transcript
	err         error
	messageErr  error

	lastQuery string
	lastLimit int
	added     []domain.Message
}

func (m *mockTranscriptService) Create(_ context.Context, title, raw, cleaned string) (*domain.Transcript, error) {
	return &domain.Transcript{ID: "new", Title: title, RawText: raw, CleanedText: cleaned}, m.err
}

func (m *mockTranscriptService) Get(_ context.Context, _ string) (*domain.Transcript, error) {
	return m.transcript, m.err
}

func (m *mockTranscriptService) List(_ context.Context, limit int) ([]domain.Transcript, error) {
	m.lastLimit = limit
	return m.transcripts, m.err
}

func (m *mockTranscriptService) Update(
	_ context.Context,
	_ string,
	_ domain.TranscriptPatch,
) (*domain.Transcript, error) {
	return m.transcript, m.err
}

func (m *mockTranscriptService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockTranscriptService) Search(_ context.Context, query string, limit int) ([]domain.Transcript, error) {
	m.lastQuery = query
	m.lastLimit = limit
	return m.transcripts, m.err
}

func (m *mockTranscriptService) AddMessage(
	_ context.Context,
	id string,
	role domain.Role,
	content string,
) (*domain.Message, error) {
	if m.messageErr != nil {
		return nil, m.messageErr
	}
	msg := domain.Message{ID: int64(len(m.added) + 1), TranscriptID: id, Role: role, Content: content}
	m.added = append(m.added, msg)
	return &msg, nil
}

func (m *mockTranscriptService) Messages(_ context.Context, _ string) ([]domain.Message, error) {
	return m.added, m.err
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	reply   *domain.ChatReply
	err     error
	lastReq domain.ChatRequest
}

func (m *mockChatService) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	m.lastReq = req
	return m.reply, m.err
}

func (m *mockChatService) Stream(_ context.Context, req domain.ChatRequest) (*domain.ChatStream, error) {
	m.lastReq = req
	return nil, m.err
}

func (m *mockChatService) Clean(_ context.Context, text, _ string) (*domain.CleanResult, error) {
	return &domain.CleanResult{Text: text}, m.err
}

func (m *mockChatService) GenerateTitle(_ context.Context, _ string) string {
	return domain.DefaultTitle
}
