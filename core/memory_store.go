package core

// ContextEntry is a single key/value pair of an agent's accumulated context.
type ContextEntry struct {
	Key   string
	Value string
}

// ContextStore holds the private key/value memory of each agent. Writes to an
// existing key overwrite its value but keep its original position; single
// keys are never removed. Delete drops an agent's whole context once the
// agent itself is removed.
type ContextStore interface {
	Put(agent, key, value string) error
	Entries(agent string) ([]ContextEntry, error)
	Delete(agent string) error
}
