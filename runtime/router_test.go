package runtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/observability"
)

func newTestRouter() (*Router, *Registry) {
	registry := NewRegistry()
	router := NewRouter(slog.Default(), registry, observability.NewRelayMonitor())
	return router, registry
}

func TestRouter_ChatMessage_Delivers_To_Receiver_And_Echoes_Sender(t *testing.T) {
	req := require.New(t)
	router, registry := newTestRouter()
	sender := &fakeSession{}
	receiver := &fakeSession{}
	registry.Register("alice", sender)
	registry.Register("bob", receiver)

	// When alice sends bob a message
	outcome := router.Route(context.Background(), event.NewMessageEvent(domain.Message{
		ID:         "m1",
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "hi",
	}))

	// Then bob gets exactly one envelope and alice one echo
	req.Equal(Delivered, outcome)
	req.Len(receiver.Events(), 1)
	req.Len(sender.Events(), 1)
}

func TestRouter_ChatMessage_Undeliverable_Without_Receiver(t *testing.T) {
	req := require.New(t)
	router, registry := newTestRouter()
	sender := &fakeSession{}
	registry.Register("alice", sender)

	// When the receiver is not connected
	outcome := router.Route(context.Background(), event.NewMessageEvent(domain.Message{
		SenderID:   "alice",
		ReceiverID: "bob",
		Text:       "hi",
	}))

	// Then the message is undeliverable, without raising, and the sender
	// still sees its own echo
	req.Equal(Undeliverable, outcome)
	req.Len(sender.Events(), 1)
}

func TestRouter_Typing_Reaches_Only_The_Receiver(t *testing.T) {
	req := require.New(t)
	router, registry := newTestRouter()
	receiver := &fakeSession{}
	bystander := &fakeSession{}
	registry.Register("bob", receiver)
	registry.Register("carol", bystander)

	outcome := router.Route(context.Background(), event.NewUserTyping("alice", "bob", true))

	req.Equal(Delivered, outcome)
	req.Len(receiver.Events(), 1)
	req.Empty(bystander.Events())
}

func TestRouter_Presence_Broadcasts_To_All_Including_Subject(t *testing.T) {
	req := require.New(t)
	router, registry := newTestRouter()
	subject := &fakeSession{}
	other := &fakeSession{}
	registry.Register("alice", subject)
	registry.Register("bob", other)

	outcome := router.Route(context.Background(), event.NewUserOnline("alice"))

	req.Equal(Broadcast, outcome)
	req.Len(subject.Events(), 1)
	req.Len(other.Events(), 1)
}

func TestRouter_Signaling_Stamps_Sender_And_Forwards_Verbatim(t *testing.T) {
	req := require.New(t)
	router, registry := newTestRouter()
	target := &fakeSession{}
	registry.Register("B", target)

	// Given an offer from connection A
	var payload event.Signaling
	req.NoError(json.Unmarshal([]byte(`{"type":"offer","targetUserId":"B","sdp":"v=0"}`), &payload))

	// When A's payload is relayed
	outcome := router.Route(context.Background(), payload.Stamped("A"))

	// Then B receives every original field plus the sender stamp
	req.Equal(Delivered, outcome)
	req.Len(target.Events(), 1)

	forwarded, err := json.Marshal(target.Events()[0])
	req.NoError(err)
	var decoded map[string]any
	req.NoError(json.Unmarshal(forwarded, &decoded))
	req.Equal("offer", decoded["type"])
	req.Equal("B", decoded["targetUserId"])
	req.Equal("v=0", decoded["sdp"])
	req.Equal("A", decoded["senderUserId"])
}

func TestRouter_Signaling_Silent_Drop_On_Unknown_Target(t *testing.T) {
	req := require.New(t)
	router, registry := newTestRouter()
	sender := &fakeSession{}
	registry.Register("A", sender)

	var payload event.Signaling
	req.NoError(json.Unmarshal([]byte(`{"type":"offer","targetUserId":"nobody"}`), &payload))

	outcome := router.Route(context.Background(), payload.Stamped("A"))

	// The sender observes nothing; the drop is silent
	req.Equal(Undeliverable, outcome)
	req.Empty(sender.Events())
}
