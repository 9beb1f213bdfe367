package testutil

import "github.com/hupe1980/assistant/core"

// MessageBuilder provides a fluent helper for constructing messages in tests.
//
//	msg := NewMessageBuilder().User("hello").Agent("ABCD1234").Build()
type MessageBuilder struct {
	msg core.Message
}

// NewMessageBuilder creates a builder producing a user text message by default.
func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{msg: core.Message{Role: core.RoleUser, Type: core.MessageTypeText}}
}

// User sets role user and the content (chainable).
func (b *MessageBuilder) User(content string) *MessageBuilder {
	b.msg.Role = core.RoleUser
	b.msg.Content = content
	return b
}

// Assistant sets role assistant and the content (chainable).
func (b *MessageBuilder) Assistant(content string) *MessageBuilder {
	b.msg.Role = core.RoleAssistant
	b.msg.Content = content
	return b
}

// Agent tags the message with an agent name (chainable).
func (b *MessageBuilder) Agent(name string) *MessageBuilder { b.msg.Agent = name; return b }

// Log marks the message as a log entry (chainable).
func (b *MessageBuilder) Log() *MessageBuilder { b.msg.Type = core.MessageTypeLog; return b }

// Build returns the constructed message.
func (b *MessageBuilder) Build() core.Message { return b.msg }
