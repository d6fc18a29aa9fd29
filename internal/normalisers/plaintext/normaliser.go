package plaintext

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// utf8BOM is stripped from the start of files written by some editors.
const utf8BOM = "\ufeff"

// Normaliser handles plain text transcripts. It is the fallback for
// speech-to-text output.
type Normaliser struct{}

// New creates a new plaintext normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".txt"}
}

// Normalise returns the text with line endings normalised and the title
// taken from the file name.
func (n *Normaliser) Normalise(_ context.Context, path string, content []byte) (*driven.NormaliseResult, error) {
	if content == nil {
		return nil, domain.ErrInvalidInput
	}

	text := strings.TrimPrefix(string(content), utf8BOM)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return &driven.NormaliseResult{
		Title: extractTitle(path),
		Text:  text,
	}, nil
}

// extractTitle extracts a human-readable title from a file path.
func extractTitle(path string) string {
	filename := filepath.Base(path)

	ext := filepath.Ext(filename)
	if ext != "" {
		filename = strings.TrimSuffix(filename, ext)
	}

	// Replace underscores and dashes with spaces
	filename = strings.ReplaceAll(filename, "_", " ")
	filename = strings.ReplaceAll(filename, "-", " ")

	return strings.TrimSpace(filename)
}
