package domain

import (
	"fmt"
	"path/filepath"
)

// LLMSettings holds one chat provider's configuration.
type LLMSettings struct {
	// BaseURL is the OpenAI-compatible API root.
	BaseURL string

	// APIKey is the bearer token. Ollama accepts any value.
	APIKey string

	// Model is the chat model name.
	Model string
}

// IsConfigured returns true if the provider is set up.
func (l LLMSettings) IsConfigured() bool {
	return l.BaseURL != "" && l.Model != ""
}

// EmbeddingSettings holds embedding endpoint configuration.
type EmbeddingSettings struct {
	// BaseURL is the Ollama API root.
	BaseURL string

	// Model is the embedding model name.
	Model string

	// Dimensions is the vector size every stored and query vector must have.
	Dimensions int

	// Concurrency bounds in-flight embedding requests during a batch.
	// One means strictly sequential.
	Concurrency int

	// RateLimit caps embedding requests per second. Zero disables limiting.
	RateLimit float64
}

// IsConfigured returns true if the embedding endpoint is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	return e.BaseURL != "" && e.Model != ""
}

// RAGSettings holds chunking and retrieval configuration.
type RAGSettings struct {
	// ChunkSize is the chunk window in characters.
	ChunkSize int

	// ChunkOverlap is how far consecutive windows overlap. Must be below ChunkSize.
	ChunkOverlap int

	// TopK is the number of chunks retrieved per chat turn.
	TopK int

	// HistoryLimit is the default number of prior turns sent with a chat.
	HistoryLimit int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// LLM is the primary chat provider.
	LLM LLMSettings

	// Fallbacks are tried in order after the primary fails.
	Fallbacks []LLMSettings

	// Embedding holds embedding endpoint settings.
	Embedding EmbeddingSettings

	// RAG holds chunking and retrieval settings.
	RAG RAGSettings

	// CleanFailurePolicy decides what cleaning returns when all providers fail.
	CleanFailurePolicy CleanFailurePolicy

	// DatabasePath is the SQLite database file. Relative paths resolve
	// under the application directory.
	DatabasePath string

	// LogLevel is the minimum level written: debug, info, warn or error.
	LogLevel string
}

// DefaultAppSettings returns settings matching a local Ollama install.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		LLM: LLMSettings{
			BaseURL: "http://localhost:11434/v1",
			APIKey:  "ollama",
			Model:   "llama2",
		},
		Embedding: EmbeddingSettings{
			BaseURL:     "http://localhost:11434",
			Model:       "nomic-embed-text",
			Dimensions:  768, // nomic-embed-text default
			Concurrency: 1,
		},
		RAG: RAGSettings{
			ChunkSize:    500,
			ChunkOverlap: 100,
			TopK:         5,
			HistoryLimit: 10,
		},
		CleanFailurePolicy: CleanFailureRaw,
		DatabasePath:       filepath.Join("data", "recall.db"),
		LogLevel:           "warn",
	}
}

// Providers returns the chat failover chain, primary first.
// Unconfigured entries are skipped.
func (s AppSettings) Providers() []ProviderConfig {
	providers := make([]ProviderConfig, 0, 1+len(s.Fallbacks))
	if s.LLM.IsConfigured() {
		providers = append(providers, ProviderConfig{
			Name:    "primary",
			BaseURL: s.LLM.BaseURL,
			APIKey:  s.LLM.APIKey,
			Model:   s.LLM.Model,
		})
	}
	for i, fb := range s.Fallbacks {
		if !fb.IsConfigured() {
			continue
		}
		name := "fallback"
		if i > 0 {
			name = fmt.Sprintf("fallback-%d", i+1)
		}
		providers = append(providers, ProviderConfig{
			Name:    name,
			BaseURL: fb.BaseURL,
			APIKey:  fb.APIKey,
			Model:   fb.Model,
		})
	}
	return providers
}

// Validate reports settings that can never work.
func (s AppSettings) Validate() error {
	if s.RAG.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidConfig)
	}
	if s.RAG.ChunkOverlap < 0 || s.RAG.ChunkOverlap >= s.RAG.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size)", ErrInvalidConfig)
	}
	if s.RAG.TopK <= 0 {
		return fmt.Errorf("%w: top k must be positive", ErrInvalidConfig)
	}
	if s.Embedding.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", ErrInvalidConfig)
	}
	if s.Embedding.Concurrency < 1 {
		return fmt.Errorf("%w: embedding concurrency must be at least 1", ErrInvalidConfig)
	}
	if !s.CleanFailurePolicy.IsValid() {
		return fmt.Errorf("%w: unknown clean failure policy %q", ErrInvalidConfig, s.CleanFailurePolicy)
	}
	if len(s.Providers()) == 0 {
		return fmt.Errorf("%w: no chat provider configured", ErrInvalidConfig)
	}
	return nil
}
