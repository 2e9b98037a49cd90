package repositories

import (
	"encoding/json"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

type IChatRepository interface {
	UpsertSummary(summary domain.ChatSummary) error
	ListSummaries(userID string) ([]domain.ChatSummary, error)
	SummaryExists(userID, peerID string) (bool, error)
}

// ChatRepository keeps one conversation-list row per (user, peer) pair
// under "chat:{user_id}:{peer_id}". Each direction has its own row, as
// each user sees the pair in their own list.
type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func summaryKey(userID, peerID string) []byte {
	return []byte("chat:" + userID + ":" + peerID)
}

func (c *ChatRepository) UpsertSummary(summary domain.ChatSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(summaryKey(summary.UserID, summary.PeerID), data)
	})
}

// ListSummaries returns a user's conversations, most recent first.
// The per-user row count is small, so sorting in memory is fine.
func (c *ChatRepository) ListSummaries(userID string) ([]domain.ChatSummary, error) {
	var summaries []domain.ChatSummary
	err := c.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte("chat:" + userID + ":")
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var summary domain.ChatSummary
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &summary)
			}); err != nil {
				return err
			}
			summaries = append(summaries, summary)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageTime > summaries[j].LastMessageTime
	})
	return summaries, nil
}

func (c *ChatRepository) SummaryExists(userID, peerID string) (bool, error) {
	var exists bool
	err := c.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(summaryKey(userID, peerID)); err == nil {
			exists = true
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return nil
	})
	return exists, err
}
