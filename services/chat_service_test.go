package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/sink"
)

type chatFixture struct {
	service  *ChatService
	registry *runtime.Registry
}

func newChatFixture(t *testing.T) chatFixture {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, observability.NewRelayMonitor())
	service := NewChatService(
		repositories.NewMessageRepository(db, log, nil),
		repositories.NewChatRepository(db),
		router,
	)
	return chatFixture{service: service, registry: registry}
}

func connect(t *testing.T, registry *runtime.Registry, identity string) *sink.Timeline {
	t.Helper()
	timeline := sink.NewTimeline()
	registry.Register(identity, timeline)
	return timeline
}

func TestChatService_SendMessage_Persists_And_Notifies_Both(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	// Given both parties online
	alice := connect(t, fx.registry, "alice")
	bob := connect(t, fx.registry, "bob")

	// When alice sends bob a message
	message, err := fx.service.SendMessage(context.Background(), SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Text: "hello",
	})
	req.NoError(err)
	req.NotEmpty(message.ID)
	req.Equal(domain.StatusSent, message.Status)

	// Then both live sessions see the same new_message envelope
	req.Len(bob.Events(), 1)
	req.Len(alice.Events(), 1)
	delivered, ok := bob.Events()[0].(*event.NewMessage)
	req.True(ok)
	req.Equal("hello", delivered.Text)

	// And the message is durable
	history, err := fx.service.GetMessages("bob", "alice", 10)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal(message.ID, history[0].ID)

	// And both directions got a summary row
	for _, userID := range []string{"alice", "bob"} {
		chats, err := fx.service.ListChats(userID)
		req.NoError(err)
		req.Len(chats, 1)
		req.Equal("hello", chats[0].LastMessage)
	}
}

func TestChatService_SendMessage_Offline_Receiver_Still_Persists(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	// Nobody connected; routing is best-effort only
	_, err := fx.service.SendMessage(context.Background(), SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Text: "you there?",
	})
	req.NoError(err)

	history, err := fx.service.GetMessages("bob", "alice", 10)
	req.NoError(err)
	req.Len(history, 1)
}

func TestChatService_SendMessage_Image_Summary_Placeholder(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	_, err := fx.service.SendMessage(context.Background(), SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", ImageURL: "/api/images/x.png",
	})
	req.NoError(err)

	chats, err := fx.service.ListChats("bob")
	req.NoError(err)
	req.Len(chats, 1)
	req.Equal("📷 Image", chats[0].LastMessage)
}

func TestChatService_MarkMessageRead_Routes_Receipt_To_Sender(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	message, err := fx.service.SendMessage(context.Background(), SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Text: "hello",
	})
	req.NoError(err)

	// Alice comes online after sending
	alice := connect(t, fx.registry, "alice")

	// When bob reads the message
	req.NoError(fx.service.MarkMessageRead(context.Background(), message.ID))

	// Then alice receives the receipt
	events := alice.Events()
	req.Len(events, 1)
	receipt, ok := events[0].(*event.MessageStatus)
	req.True(ok)
	req.Equal(message.ID, receipt.MessageID)
	req.Equal(domain.StatusRead, receipt.Status)

	// And the flip is durable
	history, err := fx.service.GetMessages("bob", "alice", 10)
	req.NoError(err)
	req.Equal(domain.StatusRead, history[0].Status)
}

func TestChatService_DeleteMessage_For_Everyone_Notifies_Receiver(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	message, err := fx.service.SendMessage(context.Background(), SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Text: "oops",
	})
	req.NoError(err)

	bob := connect(t, fx.registry, "bob")

	req.NoError(fx.service.DeleteMessage(context.Background(), "alice", message.ID, "everyone"))

	events := bob.Events()
	req.Len(events, 1)
	deleted, ok := events[0].(*event.MessageDeleted)
	req.True(ok)
	req.Equal(message.ID, deleted.MessageID)

	history, err := fx.service.GetMessages("bob", "alice", 10)
	req.NoError(err)
	req.Empty(history)
}

func TestChatService_DeleteMessage_For_Me_Is_Silent(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	message, err := fx.service.SendMessage(context.Background(), SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Text: "just for me",
	})
	req.NoError(err)

	bob := connect(t, fx.registry, "bob")

	req.NoError(fx.service.DeleteMessage(context.Background(), "alice", message.ID, "me"))

	// No notification; bob still sees the message
	req.Empty(bob.Events())
	history, err := fx.service.GetMessages("bob", "alice", 10)
	req.NoError(err)
	req.Len(history, 1)
}

func TestChatService_DeleteMessage_Only_Sender_For_Everyone(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	message, err := fx.service.SendMessage(context.Background(), SendMessageCommand{
		SenderID: "alice", ReceiverID: "bob", Text: "hands off",
	})
	req.NoError(err)

	err = fx.service.DeleteMessage(context.Background(), "bob", message.ID, "everyone")
	req.ErrorIs(err, errors.ErrNotMessageSender)
}

func TestChatService_EnsureChat_Creates_Both_Directions_Once(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t)

	req.NoError(fx.service.EnsureChat("alice", "bob"))

	for _, userID := range []string{"alice", "bob"} {
		chats, err := fx.service.ListChats(userID)
		req.NoError(err)
		req.Len(chats, 1)
	}

	// A second call is a no-op
	req.NoError(fx.service.EnsureChat("alice", "bob"))
	chats, err := fx.service.ListChats("alice")
	req.NoError(err)
	req.Len(chats, 1)
}
