// Package ai provides factory functions for creating AI service adapters.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/adapters/driven/embedding"
	ollamaembed "github.com/custodia-labs/recall/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/recall/internal/adapters/driven/llm/breaker"
	openaillm "github.com/custodia-labs/recall/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
)

// pingTimeout is the maximum time to wait for the startup embedding probe.
const pingTimeout = 5 * time.Second

// InitResult contains the result of AI service initialisation.
type InitResult struct {
	Providers []driven.ChatProvider   // Chat failover chain, primary first.
	Embedding driven.EmbeddingService // Nil when embedding is not configured.
	Warnings  []string                // Non-fatal issues; chat still works without retrieval.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	for _, p := range r.Providers {
		_ = p.Close()
	}
	if r.Embedding != nil {
		_ = r.Embedding.Close()
	}
}

// Init builds the provider chain and embedding service and probes the
// embedding endpoint. An unreachable endpoint is a warning, not an error.
func Init(ctx context.Context, settings *domain.AppSettings, m *metrics.Metrics) (*InitResult, error) {
	providers, err := CreateProviders(settings, breaker.Config{})
	if err != nil {
		return nil, err
	}
	result := &InitResult{Providers: providers}

	emb, err := CreateEmbeddingService(&settings.Embedding, m)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.Embedding = emb
	if emb == nil {
		result.Warnings = append(result.Warnings, "embedding not configured; chat uses whole-document context")
		logger.Warn("%s", result.Warnings[0])
		return result, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if !emb.Available(probeCtx) {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"embedding model %s not available at %s; indexing is skipped until it is", emb.ModelName(), emb.BaseURL()))
	}
	for _, w := range result.Warnings {
		logger.Warn("%s", w)
	}
	return result, nil
}

// CreateProviders builds one circuit-broken provider per configured chain entry.
func CreateProviders(settings *domain.AppSettings, cfg breaker.Config) ([]driven.ChatProvider, error) {
	configs := settings.Providers()
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no chat provider configured", domain.ErrInvalidConfig)
	}

	providers := make([]driven.ChatProvider, 0, len(configs))
	for _, pc := range configs {
		p, err := openaillm.NewProvider(openaillm.Config{ProviderConfig: pc})
		if err != nil {
			for _, created := range providers {
				_ = created.Close()
			}
			return nil, fmt.Errorf("create provider %s: %w", pc.Name, err)
		}
		logger.Debug("chat provider %s", pc)
		providers = append(providers, breaker.Wrap(p, cfg))
	}
	return providers, nil
}

// CreateEmbeddingService creates the Ollama embedding client with a query cache.
// Returns nil if embedding is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings, m *metrics.Metrics) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	svc := ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:     settings.BaseURL,
		Model:       settings.Model,
		Dimensions:  settings.Dimensions,
		Concurrency: settings.Concurrency,
		RateLimit:   settings.RateLimit,
		MaxRetries:  ollamaembed.DefaultMaxRetries,
		Metrics:     m,
	})
	cached, err := embedding.NewCached(svc, embedding.DefaultCacheSize)
	if err != nil {
		_ = svc.Close()
		return nil, err
	}
	return cached, nil
}

// ValidateDimensions checks that the embedding service and vector index
// agree on vector size.
func ValidateDimensions(emb driven.EmbeddingService, vectors driven.VectorIndex) error {
	if emb == nil || vectors == nil {
		return nil
	}
	if emb.Dimensions() != vectors.Dimensions() {
		return fmt.Errorf("%w: embedding model produces %d dimensions, vector index stores %d",
			domain.ErrInvalidConfig, emb.Dimensions(), vectors.Dimensions())
	}
	return nil
}
