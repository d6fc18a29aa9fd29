package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Tool defaults.
const (
	defaultSearchLimit = 10
	snippetChars       = 200
)

// SearchInput is the input schema for the search_transcripts tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"keywords to look for in transcript titles and text; empty lists recent transcripts"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search_transcripts tool.
type SearchOutput struct {
	Results []TranscriptSummary `json:"results"`
	Count   int                 `json:"count"`
}

// TranscriptSummary is a search hit.
type TranscriptSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	Snippet   string    `json:"snippet,omitempty"`
}

// GetTranscriptInput is the input schema for the get_transcript tool.
type GetTranscriptInput struct {
	ID string `json:"id" jsonschema:"the transcript id"`
}

// TranscriptOutput is a full transcript.
type TranscriptOutput struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	RawText     string    `json:"raw_text"`
	CleanedText string    `json:"cleaned_text,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	DocumentID     string `json:"document_id,omitempty" jsonschema:"transcript to ground the answer in"`
	Message        string `json:"message" jsonschema:"the question to ask"`
	IncludeHistory bool   `json:"include_history,omitempty" jsonschema:"send earlier turns of this transcript's conversation"`
	Save           bool   `json:"save,omitempty" jsonschema:"append the question and answer to the transcript's conversation"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	Answer        string `json:"answer"`
	Provider      string `json:"provider"`
	ContextSource string `json:"context_source"`
	UsedRAG       bool   `json:"used_rag"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_transcripts",
		Description: "Keyword search across stored transcripts",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_transcript",
		Description: "Fetch one transcript with its raw and cleaned text",
	}, s.handleGetTranscript)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "chat",
		Description: "Ask a question answered from a transcript's most relevant passages",
	}, s.handleChat)
}

// handleSearch handles the search_transcripts tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	results, err := s.ports.Transcripts.Search(ctx, input.Query, limit)
	if err != nil {
		return nil, SearchOutput{}, toolError(err)
	}

	output := SearchOutput{
		Results: make([]TranscriptSummary, len(results)),
		Count:   len(results),
	}
	for i := range results {
		output.Results[i] = TranscriptSummary{
			ID:        results[i].ID,
			Title:     results[i].Title,
			CreatedAt: results[i].CreatedAt,
			Snippet:   snippet(results[i].IndexText()),
		}
	}

	return nil, output, nil
}

// handleGetTranscript handles the get_transcript tool invocation.
func (s *Server) handleGetTranscript(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetTranscriptInput,
) (*mcp.CallToolResult, TranscriptOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, TranscriptOutput{}, toolError(fmt.Errorf("%w: id is required", domain.ErrInvalidInput))
	}

	t, err := s.ports.Transcripts.Get(ctx, input.ID)
	if err != nil {
		return nil, TranscriptOutput{}, toolError(err)
	}

	return nil, TranscriptOutput{
		ID:          t.ID,
		Title:       t.Title,
		RawText:     t.RawText,
		CleanedText: t.CleanedText,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}, nil
}

// handleChat handles the chat tool invocation.
func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	if s.ports.Chat == nil {
		return nil, ChatOutput{}, ErrChatUnavailable
	}

	reply, err := s.ports.Chat.Chat(ctx, domain.ChatRequest{
		DocumentID:     input.DocumentID,
		Message:        input.Message,
		IncludeHistory: input.IncludeHistory,
	})
	if err != nil {
		return nil, ChatOutput{}, toolError(err)
	}

	if input.Save && input.DocumentID != "" {
		if _, err := s.ports.Transcripts.AddMessage(ctx, input.DocumentID, domain.RoleUser, input.Message); err != nil {
			return nil, ChatOutput{}, toolError(err)
		}
		if _, err := s.ports.Transcripts.AddMessage(ctx, input.DocumentID, domain.RoleAssistant, reply.Content); err != nil {
			return nil, ChatOutput{}, toolError(err)
		}
	}

	return nil, ChatOutput{
		Answer:        reply.Content,
		Provider:      reply.Provider,
		ContextSource: reply.Source.String(),
		UsedRAG:       reply.UsedRAG,
	}, nil
}

// toolError rewrites domain errors into messages for the assistant.
// The SDK reports a handler error as a result with IsError set.
func toolError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("transcript not found: %w", err)
	case errors.Is(err, domain.ErrNoProviderAvailable):
		return fmt.Errorf("no chat provider answered; check that the LLM endpoint is running: %w", err)
	default:
		return err
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= snippetChars {
		return text
	}
	return string(r[:snippetChars]) + "..."
}
