package driven

import "context"

// NormaliseResult is the transcript text extracted from an imported file.
type NormaliseResult struct {
	// Title is derived from the content or the file name.
	Title string

	// Text is the plain transcript text.
	Text string
}

// Normaliser converts imported files into transcript text.
type Normaliser interface {
	// Extensions returns the file extensions handled, lower case with the dot.
	Extensions() []string

	// Normalise extracts a title and plain text from content.
	// path supplies the fallback title.
	Normalise(ctx context.Context, path string, content []byte) (*NormaliseResult, error)
}
