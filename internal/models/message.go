package models

import "time"

// Sender identifies who authored a transcript entry.
type Sender string

const (
	// SenderUser marks a message typed into the composer. Its text is displayed verbatim.
	SenderUser Sender = "user"
	// SenderBot marks a reply (or a synthesized error description) derived from the chat endpoint.
	// Its text is treated as Markdown.
	SenderBot Sender = "bot"
)

// Message is a single transcript entry. Messages are never mutated once appended to a transcript.
type Message struct {
	Sender    Sender
	Text      string
	Timestamp time.Time
}

// IsUser reports whether the message was authored by the user.
func (m Message) IsUser() bool {
	return m.Sender == SenderUser
}
