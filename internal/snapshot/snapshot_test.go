package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "snapshots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		BackendFile:   NewFileStore(filepath.Join(t.TempDir(), "cache")),
		BackendSQLite: sqlite,
	}
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, DefaultKey)
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, s.Put(ctx, DefaultKey, []byte(`[{"CARD_ID":"1"}]`)))
			require.NoError(t, s.Put(ctx, DefaultKey, []byte(`[{"CARD_ID":"2"}]`)))

			got, err := s.Get(ctx, DefaultKey)
			require.NoError(t, err)
			assert.Equal(t, `[{"CARD_ID":"2"}]`, string(got))

			require.NoError(t, s.Delete(ctx, DefaultKey))
			_, err = s.Get(ctx, DefaultKey)
			assert.True(t, errors.Is(err, ErrNotFound))

			// deleting a missing key is not an error
			assert.NoError(t, s.Delete(ctx, DefaultKey))
		})
	}
}

func TestFileStore_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	require.NoError(t, s.Put(context.Background(), "cards", []byte("[]")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cards.json", entries[0].Name())
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "cards", []byte("[]")))

	got, err := s.Get(ctx, "cards")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(got))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("", dir)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(BackendSQLite, dir)
	require.NoError(t, err)
	defer s.Close()
	assert.FileExists(t, filepath.Join(dir, "snapshots.db"))

	_, err = Open("redis", dir)
	assert.Error(t, err)
}
