package chunker

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := New()
		if c.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, c.ChunkSize())
		}
		if c.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, c.Overlap())
		}
	})

	t.Run("custom values", func(t *testing.T) {
		c := New(WithChunkSize(800), WithOverlap(50))
		if c.ChunkSize() != 800 || c.Overlap() != 50 {
			t.Errorf("expected 800/50, got %d/%d", c.ChunkSize(), c.Overlap())
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		c := New(WithChunkSize(100), WithOverlap(150))
		if c.Overlap() >= c.ChunkSize() {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		c := New(WithChunkSize(0), WithOverlap(-1))
		if c.ChunkSize() != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", c.ChunkSize())
		}
		if c.Overlap() != DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", c.Overlap())
		}
	})
}

func TestSplit_Empty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if chunks := Split(text, 500, 100); len(chunks) != 0 {
			t.Errorf("expected no chunks for %q, got %d", text, len(chunks))
		}
	}
}

func TestSplit_ShortDocument(t *testing.T) {
	text := "  A short transcript.  \n"

	chunks := Split(text, 500, 100)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.StartChar != 0 {
		t.Errorf("expected start 0, got %d", c.StartChar)
	}
	if c.Content != "A short transcript." {
		t.Errorf("unexpected content %q", c.Content)
	}
	if c.EndChar != len("A short transcript.") {
		t.Errorf("expected end %d, got %d", len("A short transcript."), c.EndChar)
	}
}

func TestSplit_ExactlyChunkSize(t *testing.T) {
	text := strings.Repeat("x", 500)

	chunks := Split(text, 500, 100)

	if len(chunks) != 1 || chunks[0].EndChar != 500 {
		t.Fatalf("expected a single 500 char chunk, got %+v", chunks)
	}
}

func TestSplit_SentenceBoundaries(t *testing.T) {
	text := strings.Repeat("Here is a sentence. ", 60)
	if len(text) != 1200 {
		t.Fatalf("fixture should be 1200 chars, got %d", len(text))
	}

	chunks := Split(text, 500, 100)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	want := [][2]int{{0, 499}, {399, 899}, {799, 1199}}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.ChunkIndex)
		}
		if c.StartChar != want[i][0] || c.EndChar != want[i][1] {
			t.Errorf("chunk %d: expected [%d,%d), got [%d,%d)", i, want[i][0], want[i][1], c.StartChar, c.EndChar)
		}
		if !strings.HasSuffix(c.Content, ".") {
			t.Errorf("chunk %d should end on a sentence terminator: %q", i, c.Content[len(c.Content)-10:])
		}
		if !strings.HasPrefix(c.Content, "Here") {
			t.Errorf("chunk %d should start on a word: %q", i, c.Content[:10])
		}
	}
}

func TestSplit_FallsBackToSpace(t *testing.T) {
	text := strings.Repeat("word ", 300)

	chunks := Split(text, 500, 100)

	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasSuffix(c.Content, "word") {
			t.Errorf("chunk %d cut mid-word: %q", i, c.Content)
		}
	}
	if chunks[0].EndChar != 500 || chunks[1].StartChar != 400 {
		t.Errorf("unexpected boundaries: %+v", chunks[:2])
	}
}

func TestSplit_HardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("a", 1200)

	chunks := Split(text, 500, 100)

	want := [][2]int{{0, 500}, {400, 900}, {800, 1200}}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %d", len(want), len(chunks))
	}
	for i, c := range chunks {
		if c.StartChar != want[i][0] || c.EndChar != want[i][1] {
			t.Errorf("chunk %d: expected [%d,%d), got [%d,%d)", i, want[i][0], want[i][1], c.StartChar, c.EndChar)
		}
	}
}

func TestSplit_NewlineIsSentenceEnd(t *testing.T) {
	text := strings.Repeat("First line\nsecond line without stop ", 40)

	chunks := Split(text, 300, 50)

	if len(chunks) != 7 {
		t.Fatalf("expected 7 chunks, got %d", len(chunks))
	}
	if chunks[0].EndChar != 299 || chunks[1].StartChar != 249 {
		t.Errorf("unexpected boundaries: [%d,%d) then %d", chunks[0].StartChar, chunks[0].EndChar, chunks[1].StartChar)
	}
}

func TestSplit_Properties(t *testing.T) {
	texts := map[string]string{
		"sentences": strings.Repeat("The quick brown fox jumps over the lazy dog. Did it? Yes! ", 80),
		"words":     strings.Repeat("lorem ipsum dolor sit amet ", 120),
		"mixed":     strings.Repeat("Speaker one:\nwell, um, so the plan is\n\n", 60),
		"solid":     strings.Repeat("z", 2345),
	}
	const size, overlap = 500, 100

	for name, raw := range texts {
		t.Run(name, func(t *testing.T) {
			text := strings.TrimSpace(raw)
			chunks := Split(raw, size, overlap)
			if len(chunks) == 0 {
				t.Fatal("expected chunks")
			}

			for i, c := range chunks {
				if c.ChunkIndex != i {
					t.Errorf("chunk %d: index %d is not dense", i, c.ChunkIndex)
				}
				if c.Content == "" {
					t.Errorf("chunk %d is empty", i)
				}
				if c.StartChar < 0 || c.StartChar >= c.EndChar || c.EndChar > len(text) {
					t.Errorf("chunk %d: bad range [%d,%d)", i, c.StartChar, c.EndChar)
				}
				if got := strings.TrimSpace(text[c.StartChar:c.EndChar]); got != c.Content {
					t.Errorf("chunk %d: content does not round-trip", i)
				}
				if c.EndChar-c.StartChar > size {
					t.Errorf("chunk %d: raw span %d exceeds size", i, c.EndChar-c.StartChar)
				}
				if i > 0 {
					prev := chunks[i-1]
					if c.StartChar <= prev.StartChar {
						t.Errorf("chunk %d does not advance", i)
					}
					if c.StartChar > prev.EndChar {
						t.Errorf("gap between chunk %d and %d", i-1, i)
					}
					if prev.EndChar-c.StartChar > overlap {
						t.Errorf("chunks %d and %d overlap by more than %d", i-1, i, overlap)
					}
				}
			}

			if chunks[0].StartChar != 0 {
				t.Errorf("first chunk should start at 0")
			}
			if chunks[len(chunks)-1].EndChar != len(text) {
				t.Errorf("last chunk should reach the end")
			}
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Again and again. ", 200)

	a := Split(text, 400, 80)
	b := Split(text, 400, 80)

	if !reflect.DeepEqual(a, b) {
		t.Error("same input should produce identical chunks")
	}
}

func TestSplit_LargeOverlapStillAdvances(t *testing.T) {
	text := strings.Repeat("ab. ", 100)

	chunks := Split(text, 10, 9)

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartChar <= chunks[i-1].StartChar {
			t.Fatalf("chunk %d does not advance", i)
		}
	}
}

func TestSplit_InvalidOverlapClamped(t *testing.T) {
	text := strings.Repeat("y", 1000)

	chunks := Split(text, 100, 500)

	if len(chunks) == 0 || len(chunks) > 20 {
		t.Fatalf("expected a bounded number of chunks, got %d", len(chunks))
	}
}

func TestSplit_MultibyteHardCut(t *testing.T) {
	text := strings.Repeat("€", 400) // 1200 bytes, 3 per rune

	chunks := Split(text, 500, 100)

	for i, c := range chunks {
		if !utf8.ValidString(c.Content) {
			t.Errorf("chunk %d splits a rune", i)
		}
		if c.StartChar%3 != 0 || c.EndChar%3 != 0 {
			t.Errorf("chunk %d: [%d,%d) is not rune aligned", i, c.StartChar, c.EndChar)
		}
	}
}

func TestChunker_AssignsDocumentID(t *testing.T) {
	c := New(WithChunkSize(100), WithOverlap(10))

	chunks := c.Chunk("doc-1", strings.Repeat("Some words here. ", 30))

	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if ch.DocumentID != "doc-1" {
			t.Errorf("expected document id doc-1, got %q", ch.DocumentID)
		}
		if ch.ID != 0 {
			t.Errorf("chunks should not carry store ids yet")
		}
	}
}

func TestChunker_IdempotentBoundaries(t *testing.T) {
	c := New()
	text := strings.Repeat("Idempotent indexing keeps boundaries stable. ", 40)

	first := c.Chunk("d", text)
	second := c.Chunk("d", text)

	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}
