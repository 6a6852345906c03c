package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const usersBucket = "users"

// User is a password account
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	PwdHash   []byte    `json:"pwd_hash"`
	Salt      []byte    `json:"salt"`
	CreatedAt time.Time `json:"created_at"`
}

// UserStore persists password accounts
type UserStore interface {
	// CreateUser inserts a user; ErrAlreadyExists when the email is taken
	CreateUser(ctx context.Context, user *User) error
	// GetUserByEmail looks a user up; ErrNotFound when absent
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	Close() error
}

// BoltUserStore implements UserStore with BoltDB, keyed by normalized email
type BoltUserStore struct {
	db *bbolt.DB
}

// NewBoltUserStore opens (or creates) the accounts database
func NewBoltUserStore(path string) (*BoltUserStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening accounts db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(usersBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}
	return &BoltUserStore{db: db}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser saves a new user
func (b *BoltUserStore) CreateUser(_ context.Context, user *User) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(usersBucket))
		key := []byte(normalizeEmail(user.Email))
		if bucket.Get(key) != nil {
			return ErrAlreadyExists
		}
		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshaling user: %w", err)
		}
		return bucket.Put(key, data)
	})
}

// GetUserByEmail retrieves a user by email
func (b *BoltUserStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	var user *User
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(usersBucket)).Get([]byte(normalizeEmail(email)))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Close closes the database
func (b *BoltUserStore) Close() error {
	return b.db.Close()
}
