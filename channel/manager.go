package channel

import (
	"fmt"
	"sync"

	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/tool"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Responder handles StartAssistantResponse for every registered channel.
	Responder Responder
}

// Manager is the channel registry. Names are unique.
type Manager struct {
	responder Responder

	mu       sync.RWMutex
	channels map[string]*Channel
	order    []string
}

// NewManager creates an empty registry.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{responder: opts.Responder, channels: make(map[string]*Channel)}
}

// Register adds ch and binds it to the manager. A duplicate name fails with
// core.ErrDuplicateName and leaves the registry untouched.
func (m *Manager) Register(ch *Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.channels[ch.Name()]; exists {
		return fmt.Errorf("channel %q: %w", ch.Name(), core.ErrDuplicateName)
	}
	ch.bind(m)
	m.channels[ch.Name()] = ch
	m.order = append(m.order, ch.Name())
	return nil
}

// Get returns the channel registered under name.
func (m *Manager) Get(name string) (*Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[name]
	return ch, ok
}

// List returns channels in registration order.
func (m *Manager) List() []*Channel {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Channel, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.channels[name])
	}
	return out
}

// Modules returns every channel as a module, in registration order.
func (m *Manager) Modules() []tool.Module {
	channels := m.List()
	out := make([]tool.Module, len(channels))
	for i, ch := range channels {
		out[i] = ch.Module()
	}
	return out
}
