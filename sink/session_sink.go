package sink

import (
	"context"
	"log/slog"
	"sync"

	"chat-relay/domain/event"
)

// SessionSink buffers outbound envelopes for one connection. The write pump
// drains Outbound; Consume never blocks the routing core on a slow peer.
type SessionSink struct {
	Outbound chan event.Envelope

	log       *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

func NewSessionSink(log *slog.Logger, bufferSize int) *SessionSink {
	return &SessionSink{
		Outbound: make(chan event.Envelope, bufferSize),
		log:      log,
		done:     make(chan struct{}),
	}
}

// Consume hands an envelope to the connection's write pump.
// If the buffer is full the envelope is dropped; backpressure from one
// client must never stall delivery to the others.
func (s *SessionSink) Consume(ctx context.Context, e event.Envelope) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case s.Outbound <- e:
		return nil
	default:
		s.log.Warn("Session buffer full, dropping envelope", "type", e.EventType())
		return nil
	}
}

// Close releases the write pump and unblocks any pending Consume.
// Safe to call from any goroutine, any number of times.
func (s *SessionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done is closed once the sink is shut down.
func (s *SessionSink) Done() <-chan struct{} {
	return s.done
}
