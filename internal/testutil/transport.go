package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/assistant/core"
)

// Delivery is a message handed to a channel transport.
type Delivery struct {
	ConversationID string
	Message        core.Message
}

// RecordingTransport captures every delivery in order. Its Deliver method
// matches channel.DeliverFunc.
type RecordingTransport struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error
}

// Deliver records the message and returns the configured error.
func (r *RecordingTransport) Deliver(_ context.Context, msg core.Message, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, Delivery{ConversationID: conversationID, Message: msg})
	return r.Err
}

// Deliveries returns a copy of all recorded deliveries.
func (r *RecordingTransport) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

// Contents returns the content of every delivered message.
func (r *RecordingTransport) Contents() []string {
	ds := r.Deliveries()
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Message.Content
	}
	return out
}
