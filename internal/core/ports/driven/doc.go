// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - TranscriptStore: Transcript persistence
//   - MessageStore: Conversation turn persistence
//   - FullTextIndex: Keyword search over transcripts (FTS5)
//   - ChatProvider: One OpenAI-compatible chat endpoint in a failover chain
//   - ConfigStore: Application configuration
//   - PromptStore: Editable prompt templates
//
// # Degradable Interfaces
//
// These must be non-nil but may report themselves unavailable at runtime,
// in which case retrieval falls back to document context:
//
//   - VectorIndex: Per-document chunk and embedding storage with cosine ranking
//   - EmbeddingService: Generates vector embeddings (Ollama)
//
// # Optional Interfaces
//
//   - Normaliser: Converts files imported by the directory watcher into text
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
