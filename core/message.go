package core

import (
	"fmt"

	"github.com/google/uuid"
)

// Role identifies who authored a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageType distinguishes regular replies from machine-internal entries.
// An empty type is treated as MessageTypeText.
type MessageType string

const (
	MessageTypeText    MessageType = "text"
	MessageTypeCallout MessageType = "callout"
	MessageTypeLog     MessageType = "log"
)

// Message is the unit recorded in a conversation ledger. Once appended it is
// treated as immutable; stores hand out copies.
type Message struct {
	Content string      `json:"content"`
	Role    Role        `json:"role"`
	Agent   string      `json:"agent,omitempty"`
	Type    MessageType `json:"type,omitempty"`
}

// NewUserMessage creates a user-authored text message, optionally addressed to an agent.
func NewUserMessage(content, agent string) Message {
	return Message{Content: content, Role: RoleUser, Agent: agent, Type: MessageTypeText}
}

// Kind returns the message type, defaulting to text.
func (m Message) Kind() MessageType {
	if m.Type == "" {
		return MessageTypeText
	}
	return m.Type
}

// IsLog reports whether the message is a machine-internal log entry.
func (m Message) IsLog() bool { return m.Kind() == MessageTypeLog }

// String renders the message as "role: content" for perception building.
func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}

// NewID generates a new unique identifier (UUID v4).
func NewID() string { return uuid.NewString() }
