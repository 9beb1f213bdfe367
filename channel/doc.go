// Package channel implements the conversational message bus.
//
// A Channel is a named endpoint (a chat UI, a webhook, a CLI) wrapping a
// per-conversation ledger, a transport delivery callback and an ordered set
// of inbound-message listeners. Channels are also exposed to agents as
// invokable modules so an agent can read history or post to a channel other
// than its own primary one.
//
// Listeners cannot be removed once added.
package channel
