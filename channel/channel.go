package channel

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/session"
)

// DeliverFunc hands a finalized message to the channel's transport. It is
// invoked only after the message is recorded in the ledger.
type DeliverFunc func(ctx context.Context, msg core.Message, conversationID string) error

// ReplyFunc sends an assistant message to the conversation a listener was
// notified for.
type ReplyFunc func(ctx context.Context, msg core.Message) (core.Message, error)

// Listener is notified synchronously after a message is appended.
type Listener func(ctx context.Context, msg core.Message, reply ReplyFunc)

// Responder routes an inbound user turn. The assistant implements it.
type Responder interface {
	Respond(ctx context.Context, ch *Channel, conversationID string, history []core.Message) (bool, error)
}

// Options configures a Channel.
type Options struct {
	Description string
	// Store backs the ledger. Defaults to session.NewInMemoryStore().
	Store   core.HistoryStore
	Deliver DeliverFunc
	Logger  logging.Logger
}

// Channel is a named conversational endpoint with its own ledger.
type Channel struct {
	name        string
	description string
	store       core.HistoryStore
	deliver     DeliverFunc
	logger      logging.Logger

	mu        sync.RWMutex
	listeners []Listener
	manager   *Manager
}

// New creates a channel.
func New(name string, optFns ...func(o *Options)) *Channel {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	return &Channel{
		name:        name,
		description: opts.Description,
		store:       opts.Store,
		deliver:     opts.Deliver,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Description returns the channel description.
func (c *Channel) Description() string { return c.description }

// Manager returns the manager the channel is registered with, if any.
func (c *Channel) Manager() *Manager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.manager
}

func (c *Channel) bind(m *Manager) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manager = m
}

// ReceiveMessage appends msg to the conversation and then notifies every
// listener in registration order.
func (c *Channel) ReceiveMessage(ctx context.Context, msg core.Message, conversationID string) error {
	if err := c.store.Append(conversationID, msg); err != nil {
		return fmt.Errorf("channel %s: %w", c.name, err)
	}

	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	reply := func(ctx context.Context, m core.Message) (core.Message, error) {
		return c.SendMessageAsAssistant(ctx, m, conversationID)
	}
	for _, l := range listeners {
		l(ctx, msg, reply)
	}
	return nil
}

// SendMessageAsAssistant stamps the assistant role, records the message and
// delivers the identical value to the transport.
func (c *Channel) SendMessageAsAssistant(ctx context.Context, msg core.Message, conversationID string) (core.Message, error) {
	msg.Role = core.RoleAssistant
	if msg.Type == "" {
		msg.Type = core.MessageTypeText
	}
	if err := c.ReceiveMessage(ctx, msg, conversationID); err != nil {
		return msg, err
	}
	if c.deliver == nil {
		return msg, nil
	}
	if err := c.deliver(ctx, msg, conversationID); err != nil {
		c.logger.Warn("channel.deliver.error", "channel", c.name, "conversation_id", conversationID, "error", err.Error())
		return msg, fmt.Errorf("channel %s: deliver: %w", c.name, err)
	}
	return msg, nil
}

// ConversationHistory returns the last count messages of the conversation,
// oldest first. A count <= 0 returns everything.
func (c *Channel) ConversationHistory(conversationID string, count int) ([]core.Message, error) {
	msgs, err := c.store.Conversation(conversationID)
	if err != nil {
		return nil, err
	}
	if count > 0 && count < len(msgs) {
		msgs = msgs[len(msgs)-count:]
	}
	return msgs, nil
}

// FullHistory returns every conversation of the channel.
func (c *Channel) FullHistory() (map[string][]core.Message, error) {
	return c.store.All()
}

// AgentHistory returns the messages of a conversation tagged with agentName.
func (c *Channel) AgentHistory(agentName, conversationID string) ([]core.Message, error) {
	msgs, err := c.store.Conversation(conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Agent == agentName {
			out = append(out, m)
		}
	}
	return out, nil
}

// AddMessageListener registers a subscriber for inbound messages.
func (c *Channel) AddMessageListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// StartAssistantResponse records an inbound message and hands the
// conversation to the manager's responder. It reports whether a response
// was started.
func (c *Channel) StartAssistantResponse(ctx context.Context, msg core.Message, conversationID string) (bool, error) {
	if err := c.ReceiveMessage(ctx, msg, conversationID); err != nil {
		return false, err
	}

	m := c.Manager()
	if m == nil || m.responder == nil {
		return false, core.ErrNoAssistant
	}

	history, err := c.ConversationHistory(conversationID, 0)
	if err != nil {
		return false, err
	}
	return m.responder.Respond(ctx, c, conversationID, history)
}
