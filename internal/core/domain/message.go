package domain

// Role identifies the author of a conversation message.
type Role string

// Conversation roles.
const (
	// RoleUser marks a message written by the caller.
	RoleUser Role = "user"

	// RoleAssistant marks a message produced by the workflow.
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Message is a single conversation entry.
type Message struct {
	// Role is who authored the message.
	Role Role

	// Content is the message text.
	Content string
}

// UserMessage builds a user-authored message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-authored message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
