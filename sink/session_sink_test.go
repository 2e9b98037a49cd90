package sink

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain/event"
)

func TestSessionSink_Consume_Buffers(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(slog.Default(), 2)

	req.NoError(s.Consume(context.Background(), event.NewUserOnline("alice")))
	req.NoError(s.Consume(context.Background(), event.NewUserOnline("bob")))

	req.Len(s.Outbound, 2)
}

func TestSessionSink_Full_Buffer_Drops_Without_Blocking(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(slog.Default(), 1)

	req.NoError(s.Consume(context.Background(), event.NewUserOnline("alice")))
	// A second envelope with no reader must not block the caller
	req.NoError(s.Consume(context.Background(), event.NewUserOnline("bob")))

	req.Len(s.Outbound, 1)
}

func TestSessionSink_Close_Idempotent(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(slog.Default(), 1)

	s.Close()
	s.Close()

	select {
	case <-s.Done():
	default:
		req.Fail("sink not closed")
	}

	// Consume after close is a no-op, not a panic
	req.NoError(s.Consume(context.Background(), event.NewUserOnline("alice")))
	req.Empty(s.Outbound)
}
