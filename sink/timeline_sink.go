package sink

import (
	"context"
	"sync"

	"chat-relay/domain/event"
)

// Timeline records every envelope it consumes, in order. Used by tests and
// the tester CLI to observe what a session would have received.
type Timeline struct {
	mu     sync.Mutex
	events []event.Envelope
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

func (t *Timeline) Consume(_ context.Context, e event.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	return nil
}

func (t *Timeline) Close() {}

func (t *Timeline) Events() []event.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]event.Envelope, len(t.events))
	copy(out, t.events)
	return out
}
