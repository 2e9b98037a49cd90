package repositories

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-relay/domain"
	"chat-relay/errors"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (domain.User, error)
	GetUserByID(id string) (domain.User, error)
	UpdateProfile(id, username, profileImage, bio string) error
	SearchByUsername(query, excludeID string, limit int) ([]domain.User, error)
}

// UserRepository persists accounts in BadgerDB under three key families:
// "user:id:{id}" holds the record, "user:email:{email}" and
// "user:name:{username}" are unique indexes resolving to the id.
type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(id string) []byte       { return []byte("user:id:" + id) }
func emailKey(email string) []byte   { return []byte("user:email:" + email) }
func usernameKey(name string) []byte { return []byte("user:name:" + strings.ToLower(name)) }

// CreateUser persists a new account and returns the generated id.
// The email index is checked inside the transaction, so two concurrent
// signups for the same address cannot both commit.
func (u *UserRepository) CreateUser(email, hashedPassword string) (string, error) {
	newID := uuid.NewString()
	user := domain.User{
		ID:           newID,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UnixMilli(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(newID)); err != nil {
			return err
		}
		return txn.Set(userKey(newID), data)
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

func (u *UserRepository) GetUserByEmail(email string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return errors.ErrUserNotFound
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		return getJSON(txn, userKey(id), &user)
	})
	return user, err
}

func (u *UserRepository) GetUserByID(id string) (domain.User, error) {
	var user domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	return user, err
}

// UpdateProfile sets username, profile image, and bio, enforcing username
// uniqueness through the name index. The previous index entry is dropped
// when the username changes.
func (u *UserRepository) UpdateProfile(id, username, profileImage, bio string) error {
	return u.db.Update(func(txn *badger.Txn) error {
		var user domain.User
		if err := getJSON(txn, userKey(id), &user); err != nil {
			return err
		}

		if item, err := txn.Get(usernameKey(username)); err == nil {
			var owner string
			if err := item.Value(func(val []byte) error {
				owner = string(val)
				return nil
			}); err != nil {
				return err
			}
			if owner != id {
				return errors.ErrUsernameTaken
			}
		}

		if user.Username != "" && !strings.EqualFold(user.Username, username) {
			if err := txn.Delete(usernameKey(user.Username)); err != nil {
				return err
			}
		}

		user.Username = username
		user.ProfileImage = profileImage
		user.Bio = bio

		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		if err := txn.Set(usernameKey(username), []byte(id)); err != nil {
			return err
		}
		return txn.Set(userKey(id), data)
	})
}

// SearchByUsername scans accounts for a case-insensitive substring match.
// Accounts without a username and the requesting user are skipped.
func (u *UserRepository) SearchByUsername(query, excludeID string, limit int) ([]domain.User, error) {
	query = strings.ToLower(query)
	var users []domain.User
	err := u.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = []byte("user:id:")
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if len(users) == limit {
				break
			}
			var user domain.User
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &user)
			}); err != nil {
				return err
			}
			if user.ID == excludeID || user.Username == "" {
				continue
			}
			if strings.Contains(strings.ToLower(user.Username), query) {
				users = append(users, user)
			}
		}
		return nil
	})
	return users, err
}

func getJSON(txn *badger.Txn, key []byte, out any) error {
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}
