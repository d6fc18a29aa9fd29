package mcp

import (
	"net/http"

	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Transcripts provides transcript lookup and search.
	Transcripts driving.TranscriptService

	// Chat answers questions about transcripts. Optional.
	Chat driving.ChatService

	// Metrics is served at /metrics in HTTP mode. Optional.
	Metrics http.Handler
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Transcripts == nil {
		return ErrMissingTranscriptService
	}
	return nil
}
