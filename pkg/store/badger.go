package store

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/casperlink/intent-engine/pkg/models"
)

// collectionKey holds the whole intent collection under a single key: the
// engine's write model is whole-collection read-modify-write, so a single
// value keeps saves atomic without a record-level merge step.
var collectionKey = []byte("casperlink/intents")

// BadgerStore is an embedded-database backend for the intent collection.
type BadgerStore struct {
	db *badger.DB
}

var _ Store = (*BadgerStore)(nil)

// NewBadgerStore opens (or creates) a Badger database at dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// LoadAll reads the whole collection.
func (s *BadgerStore) LoadAll() ([]models.Intent, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(collectionKey)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read intent store: %w", err)
	}

	intents, err := decode(data)
	if err != nil {
		return nil, err
	}
	return intents, nil
}

// SaveAll replaces the whole collection in one transaction.
func (s *BadgerStore) SaveAll(intents []models.Intent) error {
	data, err := encode(intents)
	if err != nil {
		return fmt.Errorf("failed to encode intent store: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(collectionKey, data)
	})
	if err != nil {
		return fmt.Errorf("failed to write intent store: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
