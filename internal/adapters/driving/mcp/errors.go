// Package mcp provides an MCP (Model Context Protocol) server adapter for Recall.
// It lets AI assistants search transcripts, read them and ask grounded questions.
package mcp

import "errors"

// ErrMissingTranscriptService is returned when the transcript service is not provided.
var ErrMissingTranscriptService = errors.New("mcp: transcript service is required")

// ErrChatUnavailable is returned by the chat tool when no chat service is wired.
var ErrChatUnavailable = errors.New("mcp: chat is not configured")
