package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// FullTextIndex provides keyword search over transcript title and text.
// The index follows the transcript lifecycle on its own; callers never
// write to it directly.
type FullTextIndex interface {
	// Search returns transcripts ranked by relevance. A blank query returns
	// the most recently created transcripts. Ranked-query failures degrade
	// to substring matching rather than surfacing.
	Search(ctx context.Context, query string, limit int) ([]domain.Transcript, error)
}
