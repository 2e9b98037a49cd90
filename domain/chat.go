package domain

// Message is the repository-facing representation of a chat message.
// Timestamps are epoch milliseconds end to end, matching the wire format.
type Message struct {
	ID                 string `json:"id"`
	ChatID             string `json:"chat_id"`
	SenderID           string `json:"sender_id"`
	ReceiverID         string `json:"receiver_id"`
	Text               string `json:"text"`
	ImageURL           string `json:"image_url"`
	Timestamp          int64  `json:"timestamp"`
	Status             string `json:"status"`
	DeletedForSender   bool   `json:"deleted_for_sender,omitempty"`
	DeletedForReceiver bool   `json:"deleted_for_receiver,omitempty"`
	DeletedForEveryone bool   `json:"deleted_for_everyone,omitempty"`
}

const (
	StatusSent = "sent"
	StatusRead = "read"
)

// ChatSummary is one row of a user's conversation list.
type ChatSummary struct {
	UserID          string `json:"user_id"`
	PeerID          string `json:"chat_user_id"`
	LastMessage     string `json:"last_message"`
	LastMessageTime int64  `json:"last_message_time"`
}

// ChatID derives the canonical conversation key for a pair of users.
// Both directions map to the same id.
func ChatID(a, b string) string {
	if a < b {
		return a + "_" + b
	}
	return b + "_" + a
}
