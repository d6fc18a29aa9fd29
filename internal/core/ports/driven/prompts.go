package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names are an error; known names fall back to a built-in default.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptCleanSystem is the system prompt for transcript cleaning.
	// It has no format placeholders; the transcript is sent as the user turn.
	PromptCleanSystem = "clean_system"

	// PromptTitle asks for a short title.
	// The template expects a single %s placeholder for the transcript snippet.
	PromptTitle = "title"

	// PromptChatSystem is the grounded chat system prompt.
	// The template expects a single %s placeholder for the context text.
	PromptChatSystem = "chat_system"
)
