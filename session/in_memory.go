package session

import (
	"sync"

	"github.com/hupe1980/assistant/core"
)

// InMemoryStore is a volatile HistoryStore implementation storing
// conversations in a process local map. It is safe for concurrent access.
// Returned slices are copies so callers can never reorder or truncate the
// ledger.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]core.Message
}

var _ core.HistoryStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in‑memory history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string][]core.Message)}
}

// Append records msg at the end of the conversation, creating it lazily.
func (s *InMemoryStore) Append(conversationID string, msg core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], msg)
	return nil
}

// Conversation returns a copy of the conversation in arrival order. Unknown
// ids yield an empty slice.
func (s *InMemoryStore) Conversation(conversationID string) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.conversations[conversationID]), nil
}

// All returns a snapshot of every conversation.
func (s *InMemoryStore) All() (map[string][]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]core.Message, len(s.conversations))
	for id, msgs := range s.conversations {
		out[id] = cloneMessages(msgs)
	}
	return out, nil
}

func cloneMessages(msgs []core.Message) []core.Message {
	out := make([]core.Message, len(msgs))
	copy(out, msgs)
	return out
}
