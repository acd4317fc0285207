package store

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warelay/internal/app/storage"
)

// memBlob is an in-memory BlobStore for tests.
type memBlob struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemBlob() *memBlob {
	return &memBlob{blobs: make(map[string][]byte)}
}

func (m *memBlob) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memBlob) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBlob) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memBlob) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	return data, ok
}

func TestUpsertChat_InsertAndPreserve(t *testing.T) {
	t.Parallel()
	s := newUserStore(context.Background(), "u1", newMemBlob(), time.Hour)
	defer s.Close(context.Background())

	inserted := s.UpsertChat(ChatRecord{ID: "1@g.us", Name: "Original"})
	assert.True(t, inserted)

	inserted = s.UpsertChat(ChatRecord{ID: "1@g.us", Name: "Renamed"})
	assert.False(t, inserted, "second upsert for the same id must be a no-op")

	groups := s.ListGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Original", groups[0].Name)
	assert.NotNil(t, groups[0].Messages, "stored record carries a non-nil history slice")
}

func TestAppendMessage_CreatesChatAndCountsUnread(t *testing.T) {
	t.Parallel()
	s := newUserStore(context.Background(), "u1", newMemBlob(), time.Hour)
	defer s.Close(context.Background())

	s.AppendMessage(Message{ID: "m1", ChatID: "1@g.us", Text: "inbound", Timestamp: 10})
	s.AppendMessage(Message{ID: "m2", ChatID: "1@g.us", Text: "outbound", Timestamp: 11, FromMe: true})

	groups := s.ListGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, int64(10), groups[0].CreatedAt)
	assert.Equal(t, 1, groups[0].Unread, "only inbound messages bump the unread counter")
	require.Len(t, groups[0].Messages, 2)
	assert.Equal(t, "m1", groups[0].Messages[0].ID)
	assert.Equal(t, "m2", groups[0].Messages[1].ID)
}

func TestListGroups_FiltersAndSorts(t *testing.T) {
	t.Parallel()
	s := newUserStore(context.Background(), "u1", newMemBlob(), time.Hour)
	defer s.Close(context.Background())

	s.UpsertChat(ChatRecord{ID: "2@g.us"})
	s.UpsertChat(ChatRecord{ID: "1@g.us"})
	s.UpsertChat(ChatRecord{ID: "5@s.whatsapp.net"})

	groups := s.ListGroups()
	require.Len(t, groups, 2, "direct chats are excluded from the group listing")
	assert.Equal(t, "1@g.us", groups[0].ID)
	assert.Equal(t, "2@g.us", groups[1].ID)

	assert.Equal(t, 3, s.ChatCount())
}

func TestHydrate_RestoresSnapshot(t *testing.T) {
	t.Parallel()
	blobs := newMemBlob()

	data, err := json.Marshal(snapshot{Chats: map[string]*ChatRecord{
		"1@g.us": {ID: "1@g.us", Name: "Restored", Unread: 3},
	}})
	require.NoError(t, err)
	require.NoError(t, blobs.Save(context.Background(), "u1.json", data))

	s := newUserStore(context.Background(), "u1", blobs, time.Hour)
	defer s.Close(context.Background())

	groups := s.ListGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Restored", groups[0].Name)
	assert.Equal(t, 3, groups[0].Unread)
}

func TestHydrate_CorruptSnapshotStartsEmpty(t *testing.T) {
	t.Parallel()
	blobs := newMemBlob()
	require.NoError(t, blobs.Save(context.Background(), "u1.json", []byte("{not json")))

	s := newUserStore(context.Background(), "u1", blobs, time.Hour)
	defer s.Close(context.Background())

	assert.Equal(t, 0, s.ChatCount())
}

func TestClose_WritesFinalSnapshot(t *testing.T) {
	t.Parallel()
	blobs := newMemBlob()

	s := newUserStore(context.Background(), "u1", blobs, time.Hour)
	s.UpsertChat(ChatRecord{ID: "1@g.us", Name: "Kept"})
	s.Close(context.Background())

	data, ok := blobs.get("u1.json")
	require.True(t, ok, "release must flush one final snapshot")

	var snap snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Contains(t, snap.Chats, "1@g.us")
	assert.Equal(t, "Kept", snap.Chats["1@g.us"].Name)
}

func TestFlushLoop_WritesPeriodically(t *testing.T) {
	t.Parallel()
	blobs := newMemBlob()

	s := newUserStore(context.Background(), "u1", blobs, 10*time.Millisecond)
	defer s.Close(context.Background())

	s.UpsertChat(ChatRecord{ID: "1@g.us"})

	require.Eventually(t, func() bool {
		_, ok := blobs.get("u1.json")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestManager_AcquireIsIdempotent(t *testing.T) {
	t.Parallel()
	m := NewManager(newMemBlob(), time.Hour)
	defer m.Shutdown(context.Background())

	first := m.Acquire(context.Background(), "u1")
	second := m.Acquire(context.Background(), "u1")
	assert.Same(t, first, second)

	assert.Same(t, first, m.Peek("u1"))
	assert.Nil(t, m.Peek("u2"))
}

func TestManager_ReleaseSurvivesReacquire(t *testing.T) {
	t.Parallel()
	blobs := newMemBlob()
	m := NewManager(blobs, time.Hour)
	defer m.Shutdown(context.Background())

	s := m.Acquire(context.Background(), "u1")
	s.UpsertChat(ChatRecord{ID: "1@g.us", Name: "Persisted"})
	m.Release(context.Background(), "u1")

	assert.Nil(t, m.Peek("u1"))

	// A fresh acquire hydrates from the snapshot the release wrote.
	s2 := m.Acquire(context.Background(), "u1")
	require.NotSame(t, s, s2)
	groups := s2.ListGroups()
	require.Len(t, groups, 1)
	assert.Equal(t, "Persisted", groups[0].Name)
}

func TestManager_ReleaseAbsentIsNoop(t *testing.T) {
	t.Parallel()
	m := NewManager(newMemBlob(), time.Hour)
	m.Release(context.Background(), "nobody")
	m.Shutdown(context.Background())
}
