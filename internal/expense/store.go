package expense

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"

	"go.etcd.io/bbolt"
)

const (
	bucketName = "expenses"
	entryKey   = "expenses"
)

// ErrStorageFull indicates the persistence substrate rejected a write for lack of space
var ErrStorageFull = errors.New("expense storage is full")

// Store defines the interface for expense persistence. The whole collection
// lives under one named entry as a JSON-encoded sequence, newest first, and
// every operation rewrites it wholesale (last writer wins; the UI is the
// only writer).
type Store interface {
	// List returns all expenses, most recently added first
	List() ([]Expense, error)

	// Append prepends an expense to the stored sequence
	Append(expense Expense) error

	// RemoveByID drops the expense with the given id; no-op if absent
	RemoveByID(id string) error

	// Clear removes the entire collection
	Clear() error

	// Close closes the store
	Close() error
}

// BoltStore implements the Store interface using BoltDB
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore creates a new BoltStore instance
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// decodeEntry unmarshals the stored sequence. A missing entry and an
// unparsable one both come back as an empty slice; corrupted local state
// must never break listing, so the parse error is logged and swallowed.
func decodeEntry(data []byte) []Expense {
	expenses := make([]Expense, 0)
	if data == nil {
		return expenses
	}
	if err := json.Unmarshal(data, &expenses); err != nil {
		slog.Error("Error loading expenses", "error", err)
		return make([]Expense, 0)
	}
	return expenses
}

// List returns all expenses, most recently added first
func (b *BoltStore) List() ([]Expense, error) {
	var expenses []Expense
	err := b.db.View(func(tx *bbolt.Tx) error {
		expenses = decodeEntry(tx.Bucket([]byte(bucketName)).Get([]byte(entryKey)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	return expenses, nil
}

// Append prepends an expense to the stored sequence and persists it
func (b *BoltStore) Append(expense Expense) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		expenses := append([]Expense{expense}, decodeEntry(bucket.Get([]byte(entryKey)))...)
		data, err := json.Marshal(expenses)
		if err != nil {
			return fmt.Errorf("marshaling expenses: %w", err)
		}
		return bucket.Put([]byte(entryKey), data)
	})
	if err != nil {
		if errors.Is(err, syscall.ENOSPC) {
			return ErrStorageFull
		}
		return fmt.Errorf("saving expense: %w", err)
	}
	return nil
}

// RemoveByID drops the expense with the given id and persists the rest.
// Removing an id that is not present is a no-op.
func (b *BoltStore) RemoveByID(id string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketName))
		expenses := decodeEntry(bucket.Get([]byte(entryKey)))
		filtered := make([]Expense, 0, len(expenses))
		for _, e := range expenses {
			if e.ID != id {
				filtered = append(filtered, e)
			}
		}
		data, err := json.Marshal(filtered)
		if err != nil {
			return fmt.Errorf("marshaling expenses: %w", err)
		}
		return bucket.Put([]byte(entryKey), data)
	})
	if err != nil {
		return fmt.Errorf("removing expense: %w", err)
	}
	return nil
}

// Clear removes the entire collection
func (b *BoltStore) Clear() error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(entryKey))
	})
	if err != nil {
		return fmt.Errorf("clearing expenses: %w", err)
	}
	return nil
}

// Close closes the store
func (b *BoltStore) Close() error {
	return b.db.Close()
}
