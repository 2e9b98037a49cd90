package runtime

import (
	"context"
	"log/slog"

	"chat-relay/domain/event"
	"chat-relay/observability"
)

// Outcome reports what Route did with an envelope.
type Outcome int

const (
	// Delivered means the primary target's session consumed the envelope.
	Delivered Outcome = iota
	// Undeliverable means the target is not connected. Never retried, never
	// queued; the durable store is the system of record for offline peers.
	Undeliverable
	// Broadcast means the envelope was fanned out to a registry snapshot.
	Broadcast
)

// Router resolves an envelope's target through the registry and delivers.
// It owns no state of its own; delivery failures are isolated per target
// by the sinks' non-blocking Consume, so one stalled client cannot delay
// or fail delivery to the others.
type Router struct {
	log      *slog.Logger
	registry *Registry
	monitor  *observability.RelayMonitor
}

func NewRouter(log *slog.Logger, registry *Registry, monitor *observability.RelayMonitor) *Router {
	return &Router{log: log, registry: registry, monitor: monitor}
}

// Route delivers one envelope. Chat messages also echo to the sender's own
// live session, if distinct, so a sender's other device sees its sent
// message. Presence changes fan out to every registered identity, the
// subject included. Signaling payloads are stamped with the resolved sender
// and forwarded opaque.
func (r *Router) Route(ctx context.Context, env event.Envelope) Outcome {
	switch e := env.(type) {
	case *event.NewMessage:
		outcome := r.deliver(ctx, e.Message.ReceiverID, env)
		if e.Message.SenderID != e.Message.ReceiverID {
			r.deliver(ctx, e.Message.SenderID, env)
		}
		return outcome
	case *event.UserTyping:
		return r.deliver(ctx, e.ReceiverID, env)
	case *event.MessageStatus:
		return r.deliver(ctx, e.SenderID, env)
	case *event.MessageDeleted:
		return r.deliver(ctx, e.ReceiverID, env)
	case *event.UserOnline, *event.UserOffline:
		return r.broadcast(ctx, env)
	case *event.Signaling:
		return r.relay(ctx, e)
	default:
		r.log.Warn("Unroutable envelope", "type", env.EventType())
		return Undeliverable
	}
}

func (r *Router) deliver(ctx context.Context, identity string, env event.Envelope) Outcome {
	session, ok := r.registry.Lookup(identity)
	if !ok {
		r.monitor.IncrUndeliverable()
		return Undeliverable
	}
	if err := session.Consume(ctx, env); err != nil {
		r.log.Warn("Delivery failed", "target", identity, "type", env.EventType(), "error", err)
		r.monitor.IncrDropped()
		return Undeliverable
	}
	r.monitor.IncrDelivered()
	return Delivered
}

// broadcast iterates a snapshot of identities, not the live map, so no
// registry lock is held while sinks consume.
func (r *Router) broadcast(ctx context.Context, env event.Envelope) Outcome {
	for _, identity := range r.registry.Identities() {
		r.deliver(ctx, identity, env)
	}
	return Broadcast
}

// relay forwards a signaling payload verbatim, stamped with the sender.
// An unregistered target is logged and silently dropped: the sender gets
// no error, matching the signaling protocol's best-effort contract.
func (r *Router) relay(ctx context.Context, e *event.Signaling) Outcome {
	outcome := r.deliver(ctx, e.TargetID, e)
	if outcome == Undeliverable {
		r.log.Warn("Signaling target not connected",
			"target", e.TargetID, "sender", e.SenderID, "kind", e.Kind)
	}
	return outcome
}
