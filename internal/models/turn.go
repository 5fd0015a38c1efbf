package models

import "time"

// Role represents the role of a participant in a relay-side conversation.
type Role string

const (
	// RoleUser represents a turn carrying the client's chat input.
	RoleUser Role = "user"
	// RoleAssistant represents a turn produced by an upstream model.
	RoleAssistant Role = "assistant"
)

// Turn is one entry of the conversation the relay keeps per session identifier, so that LLM
// upstreams see the whole exchange and not only the latest input.
type Turn struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}
