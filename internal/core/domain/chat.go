package domain

// ChatMessage is one entry of a chat-completion request.
type ChatMessage struct {
	Role    Role
	Content string
}

// ChatOptions configures a completion request.
type ChatOptions struct {
	// MaxTokens limits the response length. Zero lets the provider decide.
	MaxTokens int

	// Temperature controls randomness (0.0 to 2.0).
	Temperature float32
}

// Sampling presets for the completion kinds Recall issues.
var (
	ChatCompletionOptions  = ChatOptions{MaxTokens: 1500, Temperature: 0.2}
	CleanCompletionOptions = ChatOptions{MaxTokens: 2000, Temperature: 0.3}
	TitleCompletionOptions = ChatOptions{MaxTokens: 20, Temperature: 0.7}
)

// ChatRequest is a user turn plus the knobs that decide its grounding.
type ChatRequest struct {
	// DocumentID scopes retrieval and history. Empty means no transcript.
	DocumentID string

	// Message is the new user turn. Required.
	Message string

	// IncludeHistory prepends the transcript's stored conversation.
	IncludeHistory bool

	// HistoryLimit caps the number of prior turns. Zero uses the configured default.
	HistoryLimit int

	// ExplicitContext is caller-supplied grounding text, used when
	// no chunks are retrieved.
	ExplicitContext string
}

// ContextSource records which step of the fallback chain grounded a prompt.
type ContextSource string

// Context sources, in fallback order.
const (
	ContextSourceChunks   ContextSource = "chunks"
	ContextSourceExplicit ContextSource = "explicit"
	ContextSourceDocument ContextSource = "document"
	ContextSourceNone     ContextSource = "none"
)

// String returns the string representation.
func (s ContextSource) String() string {
	return string(s)
}

// AssembledPrompt is the outgoing message list for one chat turn.
type AssembledPrompt struct {
	// Messages is system prompt, history, then the user turn.
	Messages []ChatMessage

	// Source is the grounding that was used.
	Source ContextSource

	// Chunks holds the retrieved chunks when Source is ContextSourceChunks.
	Chunks []Chunk
}

// ChatReply is a completed, non-streamed answer.
type ChatReply struct {
	// Content is the assistant text.
	Content string

	// Provider names the chain entry that answered.
	Provider string

	// Source is the grounding the prompt used.
	Source ContextSource

	// UsedRAG is true when retrieved chunks grounded the answer.
	UsedRAG bool
}

// StreamEventKind distinguishes events on a chat stream.
type StreamEventKind string

// Stream event kinds. A stream ends with exactly one of done or error
// unless the consumer cancels it.
const (
	EventToken StreamEventKind = "token"
	EventError StreamEventKind = "error"
	EventDone  StreamEventKind = "done"
)

// StreamEvent is one item relayed from a provider stream.
type StreamEvent struct {
	Kind StreamEventKind

	// Token carries content for EventToken.
	Token string

	// Err carries the failure for EventError.
	Err error
}

// ChatStream is an open streamed answer.
type ChatStream struct {
	// Events yields tokens then one terminal event, and is closed afterwards.
	Events <-chan StreamEvent

	// Provider names the chain entry that opened the stream.
	Provider string

	// Source is the grounding the prompt used.
	Source ContextSource

	// UsedRAG is true when retrieved chunks grounded the answer.
	UsedRAG bool
}

// CleanFailurePolicy decides what Clean returns when every provider fails.
type CleanFailurePolicy string

// Clean failure policies.
const (
	// CleanFailureRaw returns the input text unchanged and flags it as degraded.
	CleanFailureRaw CleanFailurePolicy = "raw"

	// CleanFailureStrict returns ErrNoProviderAvailable.
	CleanFailureStrict CleanFailurePolicy = "strict"
)

// IsValid returns true if the policy is recognised.
func (p CleanFailurePolicy) IsValid() bool {
	return p == CleanFailureRaw || p == CleanFailureStrict
}

// CleanResult is the outcome of cleaning a transcript.
type CleanResult struct {
	// Text is the cleaned text, or the input when Degraded.
	Text string

	// Provider names the chain entry that cleaned the text.
	Provider string

	// Degraded is true when no provider succeeded and the raw text was returned.
	Degraded bool
}
