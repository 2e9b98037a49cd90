package event

import (
	"encoding/json"
	"fmt"
)

// Inbound command shapes read off a chat connection. The socket speaks the
// same one-object-per-event framing as the outbound side, so decoding peeks
// at the tag and unmarshals the matching variant.

type Authenticate struct {
	Token string `json:"token"`
}

type Typing struct {
	ReceiverID string `json:"receiver_id"`
	SenderID   string `json:"sender_id"`
	Typing     bool   `json:"typing"`
}

type MessageRead struct {
	MessageID string `json:"message_id"`
	ReaderID  string `json:"reader_id"`
}

type GoOffline struct {
	UserID string `json:"user_id"`
}

type Register struct {
	UserID string `json:"userId"`
}

// DecodeInbound classifies one raw client frame. Unknown tags and invalid
// JSON are reported to the caller, which logs and keeps the connection.
func DecodeInbound(data []byte) (string, any, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", nil, fmt.Errorf("malformed envelope: %w", err)
	}

	switch probe.Type {
	case TypeAuthenticate:
		var cmd Authenticate
		err := json.Unmarshal(data, &cmd)
		return probe.Type, cmd, err
	case TypeTyping:
		var cmd Typing
		err := json.Unmarshal(data, &cmd)
		return probe.Type, cmd, err
	case TypeMessageRead:
		var cmd MessageRead
		err := json.Unmarshal(data, &cmd)
		return probe.Type, cmd, err
	case TypeUserOffline:
		var cmd GoOffline
		err := json.Unmarshal(data, &cmd)
		return probe.Type, cmd, err
	case TypeRegister:
		var cmd Register
		err := json.Unmarshal(data, &cmd)
		return probe.Type, cmd, err
	case "":
		return "", nil, fmt.Errorf("envelope missing type tag")
	default:
		return probe.Type, nil, nil
	}
}
