package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore(t *testing.T) {
	t.Run("fresh database reads as empty", func(t *testing.T) {
		s, err := NewBadgerStore(t.TempDir())
		require.NoError(t, err)
		defer s.Close()

		intents, err := s.LoadAll()
		require.NoError(t, err)
		assert.Empty(t, intents)
	})

	t.Run("round trip", func(t *testing.T) {
		s, err := NewBadgerStore(t.TempDir())
		require.NoError(t, err)
		defer s.Close()

		want := sampleIntents()
		require.NoError(t, s.SaveAll(want))

		got, err := s.LoadAll()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("collection survives reopen", func(t *testing.T) {
		dir := t.TempDir()

		s, err := NewBadgerStore(dir)
		require.NoError(t, err)
		require.NoError(t, s.SaveAll(sampleIntents()))
		require.NoError(t, s.Close())

		reopened, err := NewBadgerStore(dir)
		require.NoError(t, err)
		defer reopened.Close()

		got, err := reopened.LoadAll()
		require.NoError(t, err)
		assert.Len(t, got, 2)
		assert.Equal(t, "2", got[0].ID)
	})
}
