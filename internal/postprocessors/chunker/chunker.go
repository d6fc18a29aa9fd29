// Package chunker splits transcript text into overlapping, boundary-aware windows.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// boundaryWindow is the fraction of a window, measured from its start,
// before which no boundary search happens.
const boundaryWindow = 0.8

// sentenceEnds are the characters a chunk prefers to end on.
const sentenceEnds = ".!?\n"

// Chunker splits documents with a fixed size and overlap.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must stay below the chunk size or windows stop advancing
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// ChunkSize returns the configured window size.
func (c *Chunker) ChunkSize() int { return c.chunkSize }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into chunks owned by documentID.
func (c *Chunker) Chunk(documentID, text string) []domain.Chunk {
	chunks := Split(text, c.chunkSize, c.overlap)
	for i := range chunks {
		chunks[i].DocumentID = documentID
	}
	return chunks
}

// Split cuts text into windows of at most size bytes.
//
// The text is trimmed first and StartChar/EndChar are offsets into the
// trimmed text. A window that does not reach the end of the text is cut
// just after the last sentence terminator in its final 20%, else after the
// last space there, else at the raw window edge. Windows that trim to
// nothing are skipped; ChunkIndex counts only emitted chunks.
func Split(text string, size, overlap int) []domain.Chunk {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	n := len(text)

	if n <= size {
		return []domain.Chunk{{
			ChunkIndex: 0,
			Content:    text,
			StartChar:  0,
			EndChar:    n,
		}}
	}

	//nolint:prealloc
	var chunks []domain.Chunk
	start := 0

	for start < n {
		end := start + size
		if end >= n {
			end = n
		} else {
			end = boundary(text, start, end, start+int(float64(size)*boundaryWindow))
		}

		if content := strings.TrimSpace(text[start:end]); content != "" {
			chunks = append(chunks, domain.Chunk{
				ChunkIndex: len(chunks),
				Content:    content,
				StartChar:  start,
				EndChar:    end,
			})
		}

		if end >= n {
			break
		}

		next := runeStart(text, end-overlap)
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// boundary picks the cut position for a window [start, end) that does not
// reach the end of text. Positions in (floor, end] are candidates.
func boundary(text string, start, end, floor int) int {
	if floor < start {
		floor = start
	}
	for i := end; i > floor; i-- {
		if strings.IndexByte(sentenceEnds, text[i-1]) >= 0 {
			return i
		}
	}
	for i := end; i > floor; i-- {
		if text[i-1] == ' ' {
			return i
		}
	}
	// Hard cut. Back off so a multi-byte rune is never split.
	if cut := runeStart(text, end); cut > start {
		return cut
	}
	return end
}

// runeStart moves i back to the start of the rune containing it.
func runeStart(text string, i int) int {
	if i <= 0 {
		return 0
	}
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
