package runtime

import (
	"context"
	"log/slog"
	"sync"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// StatusStore persists presence records so last-seen survives restarts.
type StatusStore interface {
	SetStatus(record domain.PresenceRecord) error
	GetStatus(userID string) (domain.PresenceRecord, bool, error)
}

// Tracker owns every PresenceRecord and is its only writer. Flips are
// last-writer-wins per identity; no cross-identity coordination exists.
// Each flip is broadcast through the router to all connected sessions,
// the subject included, and repeated MarkOnline calls re-broadcast.
type Tracker struct {
	log     *slog.Logger
	router  *Router
	store   StatusStore
	mu      sync.RWMutex
	records map[string]domain.PresenceRecord
}

func NewTracker(log *slog.Logger, router *Router, store StatusStore) *Tracker {
	return &Tracker{
		log:     log,
		router:  router,
		store:   store,
		records: make(map[string]domain.PresenceRecord),
	}
}

// MarkOnline flips a user online and broadcasts the change.
func (t *Tracker) MarkOnline(ctx context.Context, userID string) {
	record := domain.PresenceRecord{UserID: userID, Online: true}
	t.set(record)
	t.router.Route(ctx, event.NewUserOnline(userID))
}

// MarkOffline flips a user offline, records last-seen, and broadcasts.
// Invoked exactly once per disconnect: the connection's cleanup path calls
// it only when its own registry binding was still in place.
func (t *Tracker) MarkOffline(ctx context.Context, userID string, lastSeen int64) {
	record := domain.PresenceRecord{UserID: userID, Online: false, LastSeen: lastSeen}
	t.set(record)
	t.router.Route(ctx, event.NewUserOffline(userID, lastSeen))
}

// Get returns the current record. A user never seen is offline with
// last-seen unset.
func (t *Tracker) Get(userID string) domain.PresenceRecord {
	t.mu.RLock()
	record, ok := t.records[userID]
	t.mu.RUnlock()
	if ok {
		return record
	}

	if t.store != nil {
		stored, found, err := t.store.GetStatus(userID)
		if err != nil {
			t.log.Warn("Status read failed", "user_id", userID, "error", err)
		} else if found {
			return stored
		}
	}
	return domain.PresenceRecord{UserID: userID}
}

func (t *Tracker) set(record domain.PresenceRecord) {
	t.mu.Lock()
	t.records[record.UserID] = record
	t.mu.Unlock()

	if t.store == nil {
		return
	}
	if err := t.store.SetStatus(record); err != nil {
		t.log.Warn("Status write failed", "user_id", record.UserID, "error", err)
	}
}
