package domain

// Indexing outcome reasons reported in IndexResult.Reason.
const (
	ReasonNoText               = "no text to index"
	ReasonVectorUnavailable    = "vector index not available"
	ReasonEmbeddingUnavailable = "embedding service unavailable"
	ReasonSuperseded           = "superseded by a newer index run"
)

// IndexResult is the structured outcome of one indexing run.
// Indexing is best effort, so failures are reported here rather than raised.
type IndexResult struct {
	// DocumentID is the transcript that was indexed.
	DocumentID string

	// Success is true when a new chunk generation was committed.
	Success bool

	// ChunksCreated is the number of chunks committed.
	ChunksCreated int

	// Reason explains a failed or discarded run.
	Reason string

	// Stale is true when a newer run made this one obsolete and its
	// result was discarded.
	Stale bool
}

// IndexStatus reports the readiness of the retrieval stack.
type IndexStatus struct {
	// Enabled is true when an embedding service is configured.
	Enabled bool

	// Available is true when both the embedding service and vector index are usable.
	Available bool

	// EmbeddingAvailable is the result of a fresh embedding probe.
	EmbeddingAvailable bool

	// EmbeddingModel is the configured embedding model.
	EmbeddingModel string

	// EmbeddingBaseURL is the configured embedding endpoint.
	EmbeddingBaseURL string

	// VectorAvailable is the vector index readiness flag.
	VectorAvailable bool

	// Dimensions is the configured embedding dimension.
	Dimensions int
}
