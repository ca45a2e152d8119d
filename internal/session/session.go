package session

import (
	"errors"
	"time"
)

// Role identifies the author of a message.
type Role string

// Message roles. Only the two conversational roles are stored; tool
// traffic stays inside the agent loop and is never persisted.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxIDLength bounds client-supplied session IDs. IDs are opaque strings,
// but an unbounded key would let a client grow map keys without limit.
const MaxIDLength = 128

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the session ID is unknown to the store.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidID indicates the session ID is empty or too long.
	ErrInvalidID = errors.New("invalid session id")
)

// Message is a single conversation entry. Immutable once appended.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary describes a session without its message history.
type Summary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}
