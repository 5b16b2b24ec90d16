package store

import (
	"sync"

	"github.com/casperlink/intent-engine/pkg/models"
)

// MemoryStore is an in-memory Store used in tests and ephemeral runs.
type MemoryStore struct {
	mu      sync.Mutex
	intents []models.Intent
	saves   int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadAll returns a copy of the collection.
func (s *MemoryStore) LoadAll() ([]models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Intent, len(s.intents))
	copy(out, s.intents)
	return out, nil
}

// SaveAll replaces the collection with a copy of intents.
func (s *MemoryStore) SaveAll(intents []models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.intents = make([]models.Intent, len(intents))
	copy(s.intents, intents)
	s.saves++
	return nil
}

// SaveCount returns the number of SaveAll calls. Useful for asserting that
// ticks avoid redundant writes.
func (s *MemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}
