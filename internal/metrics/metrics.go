// Package metrics provides Prometheus metrics for the retrieval pipeline.
//
// A nil *Metrics is valid and records nothing, so services can be built
// without a registry in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recall"

// Provider attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Index run outcomes.
const (
	IndexCommitted = "committed"
	IndexSkipped   = "skipped"
	IndexFailed    = "failed"
	IndexStale     = "stale"
	IndexCleared   = "cleared"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	ProviderAttempts  *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	ContextSource     *prometheus.CounterVec
	IndexRuns         *prometheus.CounterVec
	ChunksIndexed     prometheus.Counter
	FullTextFallbacks prometheus.Counter
	EmbeddingRequests *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ProviderAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Chat provider attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of chat provider requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"provider"}),
		ContextSource: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_source_total",
			Help:      "Chat turns by the grounding source used",
		}, []string{"source"}),
		IndexRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_runs_total",
			Help:      "Indexing runs by outcome",
		}, []string{"outcome"}),
		ChunksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks committed to the vector index",
		}),
		FullTextFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fulltext_fallbacks_total",
			Help:      "Ranked full-text queries that fell back to substring matching",
		}),
		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding endpoint requests by outcome",
		}, []string{"outcome"}),
	}
}

// Registry returns the registry the metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProvider records one provider attempt.
func (m *Metrics) ObserveProvider(provider string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.ProviderAttempts.WithLabelValues(provider, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveContextSource records which grounding a chat turn used.
func (m *Metrics) ObserveContextSource(source string) {
	if m == nil {
		return
	}
	m.ContextSource.WithLabelValues(source).Inc()
}

// ObserveIndexRun records an indexing outcome.
func (m *Metrics) ObserveIndexRun(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.IndexRuns.WithLabelValues(outcome).Inc()
	if chunks > 0 {
		m.ChunksIndexed.Add(float64(chunks))
	}
}

// ObserveFullTextFallback records a degraded full-text query.
func (m *Metrics) ObserveFullTextFallback() {
	if m == nil {
		return
	}
	m.FullTextFallbacks.Inc()
}

// ObserveEmbedding records one embedding request.
func (m *Metrics) ObserveEmbedding(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.EmbeddingRequests.WithLabelValues(outcome).Inc()
}
