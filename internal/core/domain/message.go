package domain

import "time"

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid returns true for roles a stored Message may carry.
// System turns are built per request and never persisted.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Message is an append-only conversation turn owned by a transcript.
type Message struct {
	// ID is the store-assigned ordinal. Later messages have larger IDs.
	ID int64

	// TranscriptID links to the owning Transcript.
	TranscriptID string

	// Role is user or assistant.
	Role Role

	// Content is the turn text.
	Content string

	// CreatedAt is when the turn was appended.
	CreatedAt time.Time
}
