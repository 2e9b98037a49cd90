package contract

import (
	"context"
	"reflect"

	"chat-relay/domain/event"
)

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
}

// EventSink receives outbound envelopes for one consumer.
type EventSink interface {
	Consume(ctx context.Context, e event.Envelope) error
}

// Session is a live connection handle: an event sink whose closure ends the
// owning connection. The registry is the sole owner of a registered Session;
// closing or removing it is the only way to end the session.
type Session interface {
	EventSink
	Close()
}
