package repositories

import (
	"encoding/json"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/domain"
)

// StatusRepository persists presence records under "status:{user_id}" so
// last-seen timestamps survive a relay restart. The presence tracker is
// the only writer.
type StatusRepository struct {
	db *badger.DB
}

func NewStatusRepository(db *badger.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

func statusKey(userID string) []byte { return []byte("status:" + userID) }

func (s *StatusRepository) SetStatus(record domain.PresenceRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(statusKey(record.UserID), data)
	})
}

func (s *StatusRepository) GetStatus(userID string) (domain.PresenceRecord, bool, error) {
	var record domain.PresenceRecord
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(statusKey(userID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	return record, found, err
}
