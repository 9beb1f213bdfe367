package core

// HistoryStore persists conversation ledgers keyed by conversation id.
//
// Contract:
//   - Append never reorders or deletes existing entries
//   - Conversation returns messages in arrival order (oldest first)
//   - Returned slices are copies; mutating them never affects the store
//
// Implementations must be safe for concurrent use.
type HistoryStore interface {
	Append(conversationID string, msg Message) error
	Conversation(conversationID string) ([]Message, error)
	All() (map[string][]Message, error)
}
