package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/repositories"
	"chat-relay/runtime"
)

type SendMessageCommand struct {
	SenderID   string
	ReceiverID string
	Text       string
	ImageURL   string
}

type IChatService interface {
	SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error)
	MarkMessageRead(ctx context.Context, messageID string) error
	DeleteMessage(ctx context.Context, userID, messageID, mode string) error
	GetMessages(userID, peerID string, limit int) ([]domain.Message, error)
	ListChats(userID string) ([]domain.ChatSummary, error)
	EnsureChat(userID, peerID string) error
}

// ChatService is the caller of the routing core for chat traffic: it owns
// the durable fallback (persist first), then routes best-effort to live
// connections. An offline receiver reads the message later through the
// store; the relay itself never queues.
type ChatService struct {
	messages repositories.IMessageRepository
	chats    repositories.IChatRepository
	router   *runtime.Router
}

func NewChatService(messages repositories.IMessageRepository, chats repositories.IChatRepository,
	router *runtime.Router) *ChatService {
	return &ChatService{messages: messages, chats: chats, router: router}
}

// SendMessage persists the message, refreshes both conversation summaries,
// and routes a new_message envelope to the receiver and back to the
// sender's own live session.
func (s *ChatService) SendMessage(ctx context.Context, cmd SendMessageCommand) (domain.Message, error) {
	now := time.Now().UnixMilli()
	message := domain.Message{
		ID:         uuid.NewString(),
		ChatID:     domain.ChatID(cmd.SenderID, cmd.ReceiverID),
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		Text:       cmd.Text,
		ImageURL:   cmd.ImageURL,
		Timestamp:  now,
		Status:     domain.StatusSent,
	}

	if err := s.messages.StoreMessage(message); err != nil {
		return domain.Message{}, err
	}

	lastMessage := cmd.Text
	if lastMessage == "" {
		lastMessage = "📷 Image"
	}
	for _, pair := range [][2]string{{cmd.SenderID, cmd.ReceiverID}, {cmd.ReceiverID, cmd.SenderID}} {
		if err := s.chats.UpsertSummary(domain.ChatSummary{
			UserID:          pair[0],
			PeerID:          pair[1],
			LastMessage:     lastMessage,
			LastMessageTime: now,
		}); err != nil {
			return domain.Message{}, err
		}
	}

	s.router.Route(ctx, event.NewMessageEvent(message))
	return message, nil
}

// MarkMessageRead flips the stored status to read and routes a receipt to
// the original sender.
func (s *ChatService) MarkMessageRead(ctx context.Context, messageID string) error {
	message, err := s.messages.UpdateStatus(messageID, domain.StatusRead)
	if err != nil {
		return err
	}
	s.router.Route(ctx, event.NewMessageStatus(message.ID, domain.StatusRead, message.SenderID))
	return nil
}

// DeleteMessage flags a message. Deleting for everyone notifies the
// receiver's live session, if any.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, messageID, mode string) error {
	message, err := s.messages.MarkDeleted(messageID, mode, userID)
	if err != nil {
		return err
	}
	if mode == "everyone" {
		s.router.Route(ctx, event.NewMessageDeleted(message.ID, mode, message.ReceiverID))
	}
	return nil
}

func (s *ChatService) GetMessages(userID, peerID string, limit int) ([]domain.Message, error) {
	return s.messages.GetMessages(domain.ChatID(userID, peerID), userID, limit)
}

func (s *ChatService) ListChats(userID string) ([]domain.ChatSummary, error) {
	return s.chats.ListSummaries(userID)
}

// EnsureChat creates the summary rows for both directions when the pair
// has no conversation yet.
func (s *ChatService) EnsureChat(userID, peerID string) error {
	exists, err := s.chats.SummaryExists(userID, peerID)
	if err != nil || exists {
		return err
	}
	now := time.Now().UnixMilli()
	for _, pair := range [][2]string{{userID, peerID}, {peerID, userID}} {
		if err := s.chats.UpsertSummary(domain.ChatSummary{
			UserID:          pair[0],
			PeerID:          pair[1],
			LastMessageTime: now,
		}); err != nil {
			return err
		}
	}
	return nil
}
