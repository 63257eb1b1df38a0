package domain

import (
	"errors"
	"time"
)

// ErrThreadNotFound is returned when a thread does not exist or belongs to
// another owner.
var ErrThreadNotFound = errors.New("thread not found")

// Message roles. Tool-result messages only live in agent state and
// checkpoints; thread history holds user and assistant messages.
const (
	MessageUser      = "user"
	MessageAssistant = "assistant"
	MessageSystem    = "system"
	MessageTool      = "tool"
)

// Message is a single persisted entry in a conversation thread.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Thread is a conversation owned by exactly one caller.
type Thread struct {
	ID        string    `json:"threadId"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Messages  []Message `json:"messages,omitempty"`
}

// ThreadSummary is the list view of a thread.
type ThreadSummary struct {
	ID        string    `json:"threadId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
