package domain

import (
	"strings"
	"time"
)

// DefaultTitle is used when a transcript is created without a title.
const DefaultTitle = "Untitled"

// Transcript is a text-bearing document owned by the user.
// It is the unit that chunks, embeddings and conversations hang off.
type Transcript struct {
	// ID is the unique identifier for the transcript.
	ID string

	// Title is the human-readable title.
	Title string

	// RawText is the text as produced by speech-to-text or import.
	RawText string

	// CleanedText is the optional LLM-cleaned version of RawText.
	CleanedText string

	// CreatedAt is when the transcript was first stored.
	CreatedAt time.Time

	// UpdatedAt is when the transcript was last modified.
	UpdatedAt time.Time
}

// IndexText returns the text chunks and full-document context derive from.
// Cleaned text wins over raw text when present.
func (t *Transcript) IndexText() string {
	if strings.TrimSpace(t.CleanedText) != "" {
		return t.CleanedText
	}
	return t.RawText
}

// TranscriptPatch describes a partial update. Nil fields are left unchanged.
type TranscriptPatch struct {
	Title       *string
	RawText     *string
	CleanedText *string
}

// IsEmpty returns true if the patch changes nothing.
func (p TranscriptPatch) IsEmpty() bool {
	return p.Title == nil && p.RawText == nil && p.CleanedText == nil
}

// ChangesText returns true if the patch touches either text field.
func (p TranscriptPatch) ChangesText() bool {
	return p.RawText != nil || p.CleanedText != nil
}

// Apply writes the patch onto t.
func (p TranscriptPatch) Apply(t *Transcript) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.RawText != nil {
		t.RawText = *p.RawText
	}
	if p.CleanedText != nil {
		t.CleanedText = *p.CleanedText
	}
}

// Chunk is a bounded, position-tagged substring of a transcript.
// Chunks are replaced wholesale on every re-index, so ID is only
// meaningful within one indexing generation.
type Chunk struct {
	// ID is assigned by the vector index on insert. Zero before storage.
	ID int64

	// DocumentID links to the owning Transcript.
	DocumentID string

	// ChunkIndex is the dense 0-based ordinal within the document.
	ChunkIndex int

	// Content is the trimmed text of the window. Never empty.
	Content string

	// StartChar is the byte offset where the raw window starts.
	StartChar int

	// EndChar is the exclusive byte offset where the raw window ends.
	EndChar int
}

// Preview returns the content cut to n bytes with an ellipsis.
func (c Chunk) Preview(n int) string {
	if len(c.Content) <= n {
		return c.Content
	}
	cut := n
	for cut > 0 && !isRuneStart(c.Content[cut]) {
		cut--
	}
	return c.Content[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
