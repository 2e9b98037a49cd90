package runtime

import (
	"sync"

	"chat-relay/contract"
	"chat-relay/errors"
)

// Registry is the live mapping from user identity to an open connection.
// At most one session per identity at any instant. A single lock covers the
// whole map; churn at this scale never contends enough to justify striping.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]contract.Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]contract.Session)}
}

// Register binds an identity to a session, displacing any prior binding.
// The displaced session is closed after the swap, outside the lock, so its
// owning connection observes a close event without delaying lookups.
// No lookup can observe both sessions, or neither, during the swap.
// Returns whether a prior session was displaced.
func (r *Registry) Register(identity string, session contract.Session) bool {
	r.mu.Lock()
	prior, displaced := r.sessions[identity]
	r.sessions[identity] = session
	r.mu.Unlock()

	if displaced && prior != session {
		prior.Close()
	}
	return displaced
}

// RegisterIfAbsent binds an identity only when no session holds it yet.
// The signaling endpoint uses this: its clients pick their own identity at
// registration time, and a duplicate is a protocol error, not a takeover.
func (r *Registry) RegisterIfAbsent(identity string, session contract.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[identity]; exists {
		return errors.ErrDuplicateIdentity
	}
	r.sessions[identity] = session
	return nil
}

// Unregister removes the binding only if it still points at the given
// session. A disconnect racing in after a replace-registration is a no-op;
// the stale session must not erase the newer binding. Returns whether the
// binding was removed.
func (r *Registry) Unregister(identity string, session contract.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sessions[identity]
	if !ok || current != session {
		return false
	}
	delete(r.sessions, identity)
	return true
}

// Lookup returns the live session for an identity, if any.
func (r *Registry) Lookup(identity string) (contract.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[identity]
	return session, ok
}

// Identities returns a point-in-time snapshot of all registered identities.
// Broadcast fan-out iterates over the snapshot, never the live map, so no
// lock is held during delivery I/O.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sessions))
	for identity := range r.sessions {
		out = append(out, identity)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
