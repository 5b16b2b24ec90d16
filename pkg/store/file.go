package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/casperlink/intent-engine/pkg/models"
)

// FileStore persists the intent collection as a single JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-backed store at path. The file is created on
// first save; a missing file reads as an empty collection.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// LoadAll reads the whole collection from disk.
func (s *FileStore) LoadAll() ([]models.Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
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

// SaveAll writes the whole collection atomically (write-to-temp, rename).
func (s *FileStore) SaveAll(intents []models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encode(intents)
	if err != nil {
		return fmt.Errorf("failed to encode intent store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "intents-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write intent store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close intent store: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace intent store: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
