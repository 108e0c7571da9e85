// Package models defines the data structures shared by the chat session core.
package models

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Source is a citation attached to an assistant answer.
type Source struct {
	Title string `json:"title"`
}

// Message is one turn in a conversation. Messages are never mutated after creation.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Sources []Source `json:"sources"`
}

// NewUserMessage creates a locally authored message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, Sources: []Source{}}
}

// NewAssistantMessage creates an answer message. A nil sources slice becomes empty.
func NewAssistantMessage(answer string, sources []Source) Message {
	return Message{Role: RoleAssistant, Content: answer, Sources: copySources(sources)}
}

// Normalize returns m with a non-nil Sources slice.
func (m Message) Normalize() Message {
	m.Sources = copySources(m.Sources)
	return m
}

func copySources(sources []Source) []Source {
	out := make([]Source, len(sources))
	copy(out, sources)
	return out
}
