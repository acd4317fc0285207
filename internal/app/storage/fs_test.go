package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_SaveLoadDelete(t *testing.T) {
	t.Parallel()
	store, err := newFSStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "u1.json", []byte(`{"chats":{}}`)))

	data, err := store.Load(ctx, "u1.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"chats":{}}`), data)

	require.NoError(t, store.Save(ctx, "u1.json", []byte(`{"chats":{"1@g.us":{}}}`)))
	data, err = store.Load(ctx, "u1.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"chats":{"1@g.us":{}}}`), data, "save replaces previous content")

	require.NoError(t, store.Delete(ctx, "u1.json"))
	_, err = store.Load(ctx, "u1.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_LoadMissingKey(t *testing.T) {
	t.Parallel()
	store, err := newFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "never-written.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFSStore_DeleteMissingKeyIsNoop(t *testing.T) {
	t.Parallel()
	store, err := newFSStore(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "never-written.json"))
}

func TestFSStore_KeyCannotEscapeDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	store, err := newFSStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(context.Background(), "../escape.json", []byte("x")))

	_, statErr := os.Stat(filepath.Join(dir, "escape.json"))
	assert.NoError(t, statErr, "key separators are stripped, the blob lands inside the directory")

	_, statErr = os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFSStore_RejectsEmptyDir(t *testing.T) {
	t.Parallel()
	_, err := newFSStore("")
	assert.Error(t, err)
}

func TestNewBlobStore_DefaultsToFilesystem(t *testing.T) {
	t.Parallel()
	store, err := NewBlobStore(ServiceConfig{Backend: "fs", Dir: t.TempDir()})
	require.NoError(t, err)
	require.IsType(t, &fsStore{}, store)
}
