package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
)

// ==================== Full-Text Index ====================

// maxSearchLimit caps a single search.
const maxSearchLimit = 200

// fullTextIndex implements driven.FullTextIndex over transcripts_fts.
type fullTextIndex struct {
	store   *Store
	metrics *metrics.Metrics
}

var _ driven.FullTextIndex = (*fullTextIndex)(nil)

// Search ranks transcripts by BM25. If the ranked query fails it degrades
// to case-insensitive substring matching ordered by recency.
func (f *fullTextIndex) Search(ctx context.Context, query string, limit int) ([]domain.Transcript, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return f.store.recentTranscripts(ctx, limit)
	}

	results, err := f.ranked(ctx, query, limit)
	if err == nil {
		return results, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logger.Warn("full-text query failed, using substring match: %v", err)
	f.metrics.ObserveFullTextFallback()
	return f.substring(ctx, query, limit)
}

func (f *fullTextIndex) ranked(ctx context.Context, query string, limit int) ([]domain.Transcript, error) {
	rows, err := f.store.db.QueryContext(ctx, `
		SELECT `+transcriptColumns+`
		FROM transcripts_fts
		JOIN transcripts t ON t.seq = transcripts_fts.rowid
		WHERE transcripts_fts MATCH ?
		ORDER BY bm25(transcripts_fts)
		LIMIT ?
	`, matchExpression(query), limit)
	if err != nil {
		return nil, err
	}
	return collectTranscripts(rows)
}

func (f *fullTextIndex) substring(ctx context.Context, query string, limit int) ([]domain.Transcript, error) {
	rows, err := f.store.db.QueryContext(ctx, `
		SELECT `+transcriptColumns+`
		FROM transcripts t
		WHERE instr(lower(t.title), lower(?)) > 0
			OR instr(lower(t.raw_text), lower(?)) > 0
			OR instr(lower(t.cleaned_text), lower(?)) > 0
		ORDER BY t.created_at DESC, t.seq DESC
		LIMIT ?
	`, query, query, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching transcripts: %w", err)
	}
	return collectTranscripts(rows)
}

// matchEscaper doubles quote characters inside the phrase.
var matchEscaper = strings.NewReplacer(`"`, `""`, `'`, `''`)

// matchExpression quotes user input as a single FTS5 prefix phrase so
// operators and punctuation are matched literally.
func matchExpression(query string) string {
	return `"` + matchEscaper.Replace(query) + `"*`
}
