/*
Package store holds the per-user in-memory chat cache and its snapshot lifecycle.

This file defines the UserStore struct: the in-memory chat collection for one
user, its snapshot serialization, and the background flush loop.
*/
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"warelay/internal/app/storage"
	"warelay/internal/pkg/logx"
)

// flushTimeout bounds a single snapshot write so a stalled blob backend
// cannot wedge the flush loop.
const flushTimeout = 5 * time.Second

// UserStore is the in-memory chat/group cache for a single user.
type UserStore struct {
	// UserID is the owning user's stable identifier.
	UserID string

	// chats maps chat id to its cached record.
	chats map[string]*ChatRecord

	// blobs is the durable snapshot backend.
	blobs storage.BlobStore

	// mu protects the chats map. Mutations happen on the user's single
	// event-processing goroutine; the flush loop only takes read snapshots.
	mu sync.RWMutex

	// stopChan terminates the flush loop.
	stopChan chan struct{}

	// stopOnce guards Close against double invocation.
	stopOnce sync.Once

	// wg waits for the flush loop to exit during Close.
	wg sync.WaitGroup

	// structured logger with store context.
	logger zerolog.Logger
}

// snapshot is the serialized form of a UserStore.
type snapshot struct {
	Chats map[string]*ChatRecord `json:"chats"`
}

// newUserStore constructs the store, hydrates it from the snapshot backend if a
// snapshot exists, and starts the recurring flush loop.
func newUserStore(ctx context.Context, userID string, blobs storage.BlobStore, interval time.Duration) *UserStore {
	storeLogger := logx.Logger().With().
		Str("component", "UserStore").
		Str("user_id", userID).
		Logger()

	s := &UserStore{
		UserID:   userID,
		chats:    make(map[string]*ChatRecord),
		blobs:    blobs,
		stopChan: make(chan struct{}),
		logger:   storeLogger,
	}

	s.hydrate(ctx)

	s.wg.Add(1)
	go s.flushLoop(interval)

	return s
}

// hydrate loads the previous snapshot, if any, into the chats map.
func (s *UserStore) hydrate(ctx context.Context) {
	data, err := s.blobs.Load(ctx, s.snapshotKey())
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load chat snapshot. Starting empty.")
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.logger.Error().Err(err).Msg("Failed to decode chat snapshot. Starting empty.")
		return
	}

	if snap.Chats != nil {
		s.chats = snap.Chats
	}

	s.logger.Info().Int("chats", len(s.chats)).Msg("Chat snapshot hydrated.")
}

// flushLoop serializes the current in-memory content to the snapshot store on
// a fixed interval until the store is closed.
func (s *UserStore) flushLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			s.flush(ctx)
			cancel()

		case <-s.stopChan:
			return
		}
	}
}

// flush writes the current snapshot to the blob store.
func (s *UserStore) flush(ctx context.Context) {
	s.mu.RLock()
	data, err := json.Marshal(snapshot{Chats: s.chats})
	s.mu.RUnlock()

	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode chat snapshot")
		return
	}

	if err := s.blobs.Save(ctx, s.snapshotKey(), data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write chat snapshot")
	}
}

// Close stops the flush loop and writes one final snapshot. It is safe to call
// more than once.
func (s *UserStore) Close(ctx context.Context) {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
		s.flush(ctx)
		s.logger.Info().Msg("Chat store released.")
	})
}

// UpsertChat inserts the chat if no record with the same id exists. An
// existing record is left untouched: resync passes only add brand-new groups.
// It reports whether a new record was inserted.
func (s *UserStore) UpsertChat(chat ChatRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chat.ID]; ok {
		return false
	}

	if chat.Messages == nil {
		chat.Messages = []Message{}
	}

	stored := chat
	s.chats[chat.ID] = &stored
	return true
}

// AppendMessage appends a relayed message to its chat's history, creating a
// minimal chat record if the chat has never been seen. Inbound messages bump
// the unread counter.
func (s *UserStore) AppendMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[msg.ChatID]
	if !ok {
		chat = &ChatRecord{
			ID:        msg.ChatID,
			CreatedAt: msg.Timestamp,
			Messages:  []Message{},
		}
		s.chats[msg.ChatID] = chat
	}

	chat.Messages = append(chat.Messages, msg)
	if !msg.FromMe {
		chat.Unread++
	}
}

// ListGroups returns the cached records whose id belongs to the group
// namespace, ordered by id for a stable response.
func (s *UserStore) ListGroups() []ChatRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]ChatRecord, 0, len(s.chats))
	for _, chat := range s.chats {
		if chat.IsGroup() {
			groups = append(groups, *chat)
		}
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}

// ChatCount returns the number of cached chats.
func (s *UserStore) ChatCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

// snapshotKey returns the blob key for this user's snapshot.
func (s *UserStore) snapshotKey() string {
	return s.UserID + ".json"
}
