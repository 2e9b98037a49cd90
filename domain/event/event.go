// Package event defines the tagged-variant envelope exchanged between the
// routing core and a connection. One JSON object per logical event; the
// "type" field selects the variant.
package event

import (
	"encoding/json"
	"fmt"

	"chat-relay/domain"
)

const (
	TypeAuthenticate   = "authenticate"
	TypeAuthenticated  = "authenticated"
	TypeAuthError      = "auth_error"
	TypeTyping         = "typing"
	TypeUserTyping     = "user_typing"
	TypeMessageRead    = "message_read"
	TypeMessageStatus  = "message_status"
	TypeNewMessage     = "new_message"
	TypeMessageDeleted = "message_deleted"
	TypeUserOnline     = "user_online"
	TypeUserOffline    = "user_offline"
	TypeRegister       = "register"
	TypeRegisterOK     = "register_ok"
	TypeError          = "error"
)

// Envelope is a single typed, addressed event. Variants are immutable once
// constructed; the router never mutates one except for the signaling sender
// stamp, which happens before delivery.
type Envelope interface {
	EventType() string
}

// NewMessage notifies both parties of a freshly persisted chat message.
type NewMessage struct {
	Type string `json:"type"`
	domain.Message
}

func NewMessageEvent(m domain.Message) *NewMessage {
	return &NewMessage{Type: TypeNewMessage, Message: m}
}

func (e *NewMessage) EventType() string { return TypeNewMessage }

// UserTyping is delivered only to the named receiver; the receiver identity
// travels out of band, never on the wire.
type UserTyping struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`

	ReceiverID string `json:"-"`
}

func NewUserTyping(senderID, receiverID string, typing bool) *UserTyping {
	return &UserTyping{Type: TypeUserTyping, UserID: senderID, Typing: typing, ReceiverID: receiverID}
}

func (e *UserTyping) EventType() string { return TypeUserTyping }

// MessageStatus carries a read receipt back to the original sender.
type MessageStatus struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`

	SenderID string `json:"-"`
}

func NewMessageStatus(messageID, status, senderID string) *MessageStatus {
	return &MessageStatus{Type: TypeMessageStatus, MessageID: messageID, Status: status, SenderID: senderID}
}

func (e *MessageStatus) EventType() string { return TypeMessageStatus }

// MessageDeleted tells the receiver a message was retracted for everyone.
type MessageDeleted struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Mode      string `json:"delete_type"`

	ReceiverID string `json:"-"`
}

func NewMessageDeleted(messageID, mode, receiverID string) *MessageDeleted {
	return &MessageDeleted{Type: TypeMessageDeleted, MessageID: messageID, Mode: mode, ReceiverID: receiverID}
}

func (e *MessageDeleted) EventType() string { return TypeMessageDeleted }

// UserOnline is broadcast to every connected identity, the subject included.
type UserOnline struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

func NewUserOnline(userID string) *UserOnline {
	return &UserOnline{Type: TypeUserOnline, UserID: userID, Online: true}
}

func (e *UserOnline) EventType() string { return TypeUserOnline }

// UserOffline is broadcast to every connected identity with the last-seen
// timestamp recorded at disconnect.
type UserOffline struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	LastSeen int64  `json:"last_seen"`
}

func NewUserOffline(userID string, lastSeen int64) *UserOffline {
	return &UserOffline{Type: TypeUserOffline, UserID: userID, LastSeen: lastSeen}
}

func (e *UserOffline) EventType() string { return TypeUserOffline }

// Authenticated confirms a successful socket handshake.
type Authenticated struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

func NewAuthenticated(userID string) *Authenticated {
	return &Authenticated{Type: TypeAuthenticated, UserID: userID}
}

func (e *Authenticated) EventType() string { return TypeAuthenticated }

// AuthError refuses a socket handshake.
type AuthError struct {
	Type    string `json:"type"`
	Message string `json:"error"`
}

func NewAuthError(message string) *AuthError {
	return &AuthError{Type: TypeAuthError, Message: message}
}

func (e *AuthError) EventType() string { return TypeAuthError }

// RegisterOK acknowledges a signaling registration.
type RegisterOK struct {
	Type string `json:"type"`
}

func NewRegisterOK() *RegisterOK { return &RegisterOK{Type: TypeRegisterOK} }

func (e *RegisterOK) EventType() string { return TypeRegisterOK }

// ErrorNotice is a generic connection-scoped error reply.
type ErrorNotice struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorNotice(message string) *ErrorNotice {
	return &ErrorNotice{Type: TypeError, Message: message}
}

func (e *ErrorNotice) EventType() string { return TypeError }

// Signaling is an opaque relay payload. Every field of the original object
// is preserved verbatim; the router only reads the target and stamps the
// resolved sender before forwarding. The payload is never interpreted.
type Signaling struct {
	Kind     string
	TargetID string
	SenderID string

	fields map[string]json.RawMessage
}

func (e *Signaling) EventType() string { return e.Kind }

func (e *Signaling) UnmarshalJSON(data []byte) error {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	e.fields = fields
	if raw, ok := fields["type"]; ok {
		if err := json.Unmarshal(raw, &e.Kind); err != nil {
			return fmt.Errorf("signaling type field: %w", err)
		}
	}
	if raw, ok := fields["targetUserId"]; ok {
		if err := json.Unmarshal(raw, &e.TargetID); err != nil {
			return fmt.Errorf("signaling targetUserId field: %w", err)
		}
	}
	return nil
}

func (e *Signaling) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.fields)+1)
	for k, v := range e.fields {
		out[k] = v
	}
	if e.SenderID != "" {
		sender, err := json.Marshal(e.SenderID)
		if err != nil {
			return nil, err
		}
		out["senderUserId"] = sender
	}
	return json.Marshal(out)
}

// Stamped returns a copy carrying the resolved sender identity.
func (e *Signaling) Stamped(senderID string) *Signaling {
	return &Signaling{Kind: e.Kind, TargetID: e.TargetID, SenderID: senderID, fields: e.fields}
}
