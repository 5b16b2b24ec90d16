package store

import (
	"encoding/json"
	"errors"

	"github.com/casperlink/intent-engine/pkg/models"
)

// ErrStorageCorrupt indicates the persisted collection failed to parse.
// Backends return it together with an empty collection so callers can keep
// running; unreadable storage reads as empty.
var ErrStorageCorrupt = errors.New("intent store: persisted collection is corrupt")

// schemaVersion tags the persisted envelope so future field additions can be
// migrated. Earlier deployments stored a bare JSON array; LoadAll still
// accepts that form.
const schemaVersion = 1

// Store is the durable, ordered collection of intent records. Records are
// never deleted; ordering is insertion order, newest first. All writes are
// whole-collection replacements.
type Store interface {
	// LoadAll returns every intent in stored order. A corrupt payload
	// yields an empty slice and ErrStorageCorrupt.
	LoadAll() ([]models.Intent, error)
	// SaveAll replaces the whole collection.
	SaveAll(intents []models.Intent) error
	// Close releases any resources held by the backend.
	Close() error
}

// envelope is the versioned on-disk layout.
type envelope struct {
	Version int             `json:"version"`
	Intents []models.Intent `json:"intents"`
}

// encode serializes intents into the versioned envelope.
func encode(intents []models.Intent) ([]byte, error) {
	return json.Marshal(envelope{Version: schemaVersion, Intents: intents})
}

// decode parses a persisted payload, accepting both the versioned envelope
// and the legacy bare array.
func decode(data []byte) ([]models.Intent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err == nil && env.Version > 0 {
		return env.Intents, nil
	}

	var intents []models.Intent
	if err := json.Unmarshal(data, &intents); err != nil {
		return nil, ErrStorageCorrupt
	}
	return intents, nil
}
