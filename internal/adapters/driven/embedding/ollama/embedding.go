// Package ollama provides an embedding service adapter using Ollama.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultBaseURL       = "http://localhost:11434"
	DefaultModel         = "nomic-embed-text"
	DefaultTimeout       = 30 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
	DefaultDimensions    = 768 // nomic-embed-text default
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 200 * time.Millisecond
)

// Config holds configuration for the Ollama embedding service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the embedding model to use (default: nomic-embed-text).
	Model string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration

	// ProbeTimeout bounds the availability check (default: 5s).
	ProbeTimeout time.Duration

	// Dimensions is the vector size every response must have.
	Dimensions int

	// Concurrency bounds in-flight requests in EmbedBatch (default: 1, sequential).
	Concurrency int

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64

	// MaxRetries is the number of retries after a transport failure.
	// HTTP error responses are never retried.
	MaxRetries int

	// RetryInterval is the initial backoff between retries.
	RetryInterval time.Duration

	// Metrics records request outcomes. Optional.
	Metrics *metrics.Metrics
}

// EmbeddingService generates embeddings using Ollama.
type EmbeddingService struct {
	client        *http.Client
	baseURL       string
	model         string
	dimensions    int
	concurrency   int
	probeTimeout  time.Duration
	maxRetries    int
	retryInterval time.Duration
	limiter       *rate.Limiter
	metrics       *metrics.Metrics

	available atomic.Bool
}

// embedRequest is the Ollama API request format.
type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embedResponse is the Ollama API response format.
type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// tagsResponse is the Ollama model catalog.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// StatusError is a non-success response from the embedding endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama error (status %d): %s", e.StatusCode, e.Body)
}

// NewEmbeddingService creates a new Ollama embedding service.
func NewEmbeddingService(cfg Config) *EmbeddingService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	s := &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		model:         cfg.Model,
		dimensions:    cfg.Dimensions,
		concurrency:   cfg.Concurrency,
		probeTimeout:  cfg.ProbeTimeout,
		maxRetries:    cfg.MaxRetries,
		retryInterval: cfg.RetryInterval,
		metrics:       cfg.Metrics,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return s
}

// Available checks /api/tags for a model whose name starts with the
// configured model, so "nomic-embed-text" matches "nomic-embed-text:latest".
func (s *EmbeddingService) Available(ctx context.Context) bool {
	ok := s.probe(ctx)
	s.available.Store(ok)
	return ok
}

// LastAvailable returns the result of the most recent probe without probing.
func (s *EmbeddingService) LastAvailable() bool {
	return s.available.Load()
}

func (s *EmbeddingService) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		logger.Warn("embedding probe: create request: %v", err)
		return false
	}

	resp, err := s.client.Do(req)
	if err != nil {
		logger.Warn("embedding service unreachable: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warn("embedding probe returned status %d", resp.StatusCode)
		return false
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		logger.Warn("embedding probe: decode model list: %v", err)
		return false
	}

	for _, m := range tags.Models {
		if strings.HasPrefix(m.Name, s.model) {
			return true
		}
	}
	logger.Warn("embedding model %q not found on server", s.model)
	return false
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	jsonBody, err := json.Marshal(embedRequest{Model: s.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var embedding []float32
	op := func() error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		v, err := s.embedOnce(ctx, jsonBody)
		if err != nil {
			return err
		}
		embedding = v
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxRetries)), ctx)

	err = backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		logger.Debug("embedding request failed, retrying in %s: %v", wait, err)
	})
	s.metrics.ObserveEmbedding(err)
	if err != nil {
		return nil, err
	}

	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("%w: model %s returned %d values, expected %d",
			domain.ErrDimensionMismatch, s.model, len(embedding), s.dimensions)
	}
	return embedding, nil
}

// embedOnce performs one request. Only transport failures are retryable.
func (s *EmbeddingService) embedOnce(ctx context.Context, body []byte) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: "failed to read response"})
		}
		return nil, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))})
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}

	// Convert float64 to float32
	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// EmbedBatch embeds texts in input order. With Concurrency 1 requests are
// strictly sequential; otherwise at most Concurrency run at once.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))

	if s.concurrency <= 1 {
		for i, text := range texts {
			embedding, err := s.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("embed text %d: %w", i, err)
			}
			embeddings[i] = embedding
		}
		return embeddings, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			embedding, err := s.Embed(gctx, text)
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			embeddings[i] = embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// BaseURL returns the Ollama API root.
func (s *EmbeddingService) BaseURL() string {
	return s.baseURL
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// IsStatusError reports whether err came from a non-success response.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
