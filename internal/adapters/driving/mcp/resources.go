package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/recall/internal/core/domain"
)

const (
	// URIScheme is the custom URI scheme for Recall resources.
	uriScheme = "recall://"

	// resourceListLimit bounds the transcript listing resource.
	resourceListLimit = 100
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for listing transcripts.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "transcripts",
		Name:        "transcripts",
		Description: "Most recent transcripts",
		MIMEType:    "application/json",
	}, s.handleTranscriptsResource)

	// Template for transcript text.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "transcripts/{transcriptId}",
		Name:        "transcript-text",
		Description: "Text of a specific transcript, cleaned when available",
		MIMEType:    "text/plain",
	}, s.handleTranscriptTextResource)
}

// handleTranscriptsResource returns the most recent transcripts.
func (s *Server) handleTranscriptsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	transcripts, err := s.ports.Transcripts.List(ctx, resourceListLimit)
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}

	type transcriptInfo struct {
		ID    string `json:"id"`
		Title string `json:"title"`
		URI   string `json:"uri"`
	}

	infos := make([]transcriptInfo, len(transcripts))
	for i := range transcripts {
		infos[i] = transcriptInfo{
			ID:    transcripts[i].ID,
			Title: transcripts[i].Title,
			URI:   uriScheme + "transcripts/" + transcripts[i].ID,
		}
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling transcripts: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// handleTranscriptTextResource returns the text of a specific transcript.
func (s *Server) handleTranscriptTextResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	id := extractTranscriptID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	t, err := s.ports.Transcripts.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting transcript: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/plain",
			Text:     t.IndexText(),
		}},
	}, nil
}

// extractTranscriptID extracts the ID from a URI like recall://transcripts/{transcriptId}.
func extractTranscriptID(uri string) string {
	const prefix = uriScheme + "transcripts/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	id := strings.TrimPrefix(uri, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
