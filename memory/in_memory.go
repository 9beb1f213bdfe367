package memory

import (
	"sync"

	"github.com/hupe1980/assistant/core"
)

// InMemoryStore is a process‑local ContextStore guarded by an RWMutex.
type InMemoryStore struct {
	mu     sync.RWMutex
	agents map[string]*entries // agent -> ordered entries
}

type entries struct {
	order []string
	value map[string]string
}

var _ core.ContextStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory context store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{agents: make(map[string]*entries)}
}

// Put writes key for agent. Last write wins; position is kept.
func (m *InMemoryStore) Put(agent, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.agents[agent]
	if !ok {
		e = &entries{value: make(map[string]string)}
		m.agents[agent] = e
	}
	if _, exists := e.value[key]; !exists {
		e.order = append(e.order, key)
	}
	e.value[key] = value
	return nil
}

// Entries returns the agent's context in insertion order.
func (m *InMemoryStore) Entries(agent string) ([]core.ContextEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.agents[agent]
	if !ok {
		return []core.ContextEntry{}, nil
	}
	out := make([]core.ContextEntry, len(e.order))
	for i, k := range e.order {
		out[i] = core.ContextEntry{Key: k, Value: e.value[k]}
	}
	return out, nil
}

// Delete drops every entry of agent.
func (m *InMemoryStore) Delete(agent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.agents, agent)
	return nil
}
