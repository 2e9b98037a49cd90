package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
	"chat-relay/errors"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(chatID, viewerID string, limit int) ([]domain.Message, error)
	UpdateStatus(messageID, status string) (domain.Message, error)
	MarkDeleted(messageID, mode, byUserID string) (domain.Message, error)
}

// MessageRepository persists messages in BadgerDB.
// The key is formatted as "msg:{chat_id}:{timestamp_padded}:{id}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the message id as a collision
//     disconnector if two messages arrive on the same millisecond.
//
// A secondary index "msgid:{id}" resolves a message id to its full key so
// read receipts and deletes can address a single message directly.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

func messageKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", m.ChatID, m.Timestamp, m.ID))
}

func messageIndexKey(id string) []byte { return []byte("msgid:" + id) }

func (m *MessageRepository) StoreMessage(message domain.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	key := messageKey(message)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageIndexKey(message.ID), key); err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// GetMessages retrieves the newest messages of a conversation, oldest
// first. Thanks to the padded timestamp in the key, a reverse prefix scan
// yields them naturally sorted by time. Messages deleted for the viewer or
// for everyone are filtered out.
func (m *MessageRepository) GetMessages(chatID, viewerID string, limit int) ([]domain.Message, error) {
	if m.limitMessages != nil && limit > *m.limitMessages {
		limit = *m.limitMessages
	}

	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", chatID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this chat, then walk back.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(messages) == limit {
				break
			}
			var message domain.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &message)
			}); err != nil {
				return err
			}
			if hiddenFrom(message, viewerID) {
				continue
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Reverse scan collected newest-first; callers render oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func hiddenFrom(m domain.Message, viewerID string) bool {
	if m.DeletedForEveryone {
		return true
	}
	if m.SenderID == viewerID && m.DeletedForSender {
		return true
	}
	if m.ReceiverID == viewerID && m.DeletedForReceiver {
		return true
	}
	return false
}

// UpdateStatus sets a message's delivery status and returns the updated
// record, so the caller can route a receipt to the original sender.
func (m *MessageRepository) UpdateStatus(messageID, status string) (domain.Message, error) {
	return m.mutate(messageID, func(message *domain.Message) error {
		message.Status = status
		return nil
	})
}

// MarkDeleted flags a message as deleted. Mode "everyone" requires the
// caller to be the sender; mode "me" flags only the caller's side.
func (m *MessageRepository) MarkDeleted(messageID, mode, byUserID string) (domain.Message, error) {
	return m.mutate(messageID, func(message *domain.Message) error {
		switch {
		case mode == "everyone" && message.SenderID != byUserID:
			return errors.ErrNotMessageSender
		case mode == "everyone":
			message.DeletedForEveryone = true
		case message.SenderID == byUserID:
			message.DeletedForSender = true
		default:
			message.DeletedForReceiver = true
		}
		return nil
	})
}

func (m *MessageRepository) mutate(messageID string, fn func(*domain.Message) error) (domain.Message, error) {
	var message domain.Message
	err := m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIndexKey(messageID))
		if err != nil {
			return errors.ErrMessageNotFound
		}
		var key []byte
		if err := item.Value(func(val []byte) error {
			key = append([]byte{}, val...)
			return nil
		}); err != nil {
			return err
		}

		record, err := txn.Get(key)
		if err != nil {
			return errors.ErrMessageNotFound
		}
		if err := record.Value(func(val []byte) error {
			return json.Unmarshal(val, &message)
		}); err != nil {
			return err
		}

		if err := fn(&message); err != nil {
			return err
		}

		data, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
	return message, err
}
