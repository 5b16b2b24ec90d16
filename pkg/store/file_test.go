package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/casperlink/intent-engine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleIntents() []models.Intent {
	return []models.Intent{
		{
			ID:                "2",
			ClientID:          "intent_1756500000000_ab12cd34",
			FromToken:         "CSPR",
			ToToken:           "USDC",
			FromChain:         "casper",
			ToChain:           "casper",
			Amount:            "25 CSPR",
			IntentType:        models.IntentTypeDCA,
			Status:            models.StatusScheduled,
			IsDCA:             true,
			DCAInterval:       models.DCAIntervalHourly,
			DCACount:          4,
			DCAExecuted:       1,
			DCATotalAmount:    "100.00 CSPR",
			NextExecutionTime: time.Now().Add(time.Hour).UnixMilli(),
			DCAExecutions: []models.DCAExecution{
				{TxHash: "deploy-1", Timestamp: time.Now().UnixMilli(), Amount: "25 CSPR"},
			},
			TxHash:        "local_1756500000000",
			IsLocalIntent: true,
		},
		{
			ID:                "1",
			ClientID:          "intent_1756400000000_ef56ab78",
			FromToken:         "USDC",
			ToToken:           "CSPR",
			FromChain:         "casper",
			ToChain:           "casper",
			Amount:            "100 USDC",
			IntentType:        models.IntentTypeLimitOrder,
			Status:            models.StatusWatching,
			HasPriceCondition: true,
			PriceCondition:    models.ConditionLTE,
			TargetPrice:       0.04,
			PriceToken:        "CSPR",
			TxHash:            "local_1756400000000",
			IsLocalIntent:     true,
		},
	}
}

func TestFileStore(t *testing.T) {
	t.Run("missing file reads as empty", func(t *testing.T) {
		s := NewFileStore(filepath.Join(t.TempDir(), "intents.json"))

		intents, err := s.LoadAll()
		require.NoError(t, err)
		assert.Empty(t, intents)
	})

	t.Run("round trip preserves order and fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intents.json")
		s := NewFileStore(path)

		want := sampleIntents()
		require.NoError(t, s.SaveAll(want))

		got, err := s.LoadAll()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("save replaces the whole collection", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intents.json")
		s := NewFileStore(path)

		require.NoError(t, s.SaveAll(sampleIntents()))
		require.NoError(t, s.SaveAll(sampleIntents()[:1]))

		got, err := s.LoadAll()
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.Equal(t, "2", got[0].ID)
	})

	t.Run("corrupt payload reads as empty with error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intents.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

		s := NewFileStore(path)
		intents, err := s.LoadAll()
		assert.ErrorIs(t, err, ErrStorageCorrupt)
		assert.Empty(t, intents)
	})

	t.Run("legacy bare array still loads", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intents.json")
		legacy := `[{"id":"1","intentType":"swap","status":"Pending","amount":"10 CSPR"}]`
		require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

		s := NewFileStore(path)
		intents, err := s.LoadAll()
		require.NoError(t, err)
		require.Len(t, intents, 1)
		assert.Equal(t, "1", intents[0].ID)
		assert.Equal(t, models.StatusPending, intents[0].Status)
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		dir := t.TempDir()
		s := NewFileStore(filepath.Join(dir, "intents.json"))
		require.NoError(t, s.SaveAll(sampleIntents()))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "intents.json", entries[0].Name())
	})
}

func TestMemoryStore(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		s := NewMemoryStore()
		want := sampleIntents()
		require.NoError(t, s.SaveAll(want))

		got, err := s.LoadAll()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("load returns a copy", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.SaveAll(sampleIntents()))

		first, err := s.LoadAll()
		require.NoError(t, err)
		first[0].Status = models.StatusCompleted

		second, err := s.LoadAll()
		require.NoError(t, err)
		assert.Equal(t, models.StatusScheduled, second[0].Status)
	})

	t.Run("save count tracks writes", func(t *testing.T) {
		s := NewMemoryStore()
		assert.Equal(t, 0, s.SaveCount())
		require.NoError(t, s.SaveAll(nil))
		require.NoError(t, s.SaveAll(nil))
		assert.Equal(t, 2, s.SaveCount())
	})
}
