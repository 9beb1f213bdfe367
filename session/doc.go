// Package session contains concrete implementations of core.HistoryStore, the
// per-conversation message ledger behind every channel.
//
// InMemoryStore is the default and keeps everything in process memory.
// SQLiteStore persists the ledger to a SQLite database file so conversation
// history survives restarts; agent state is never persisted.
package session
