/*
Package store holds the per-user in-memory chat cache and its snapshot lifecycle.

This file defines the Manager struct, which owns every UserStore instance. A
store is created lazily on a user's first successful connection open, survives
reconnects, and is released when the user's session reaches its terminal state.
*/
package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"warelay/internal/app/storage"
	"warelay/internal/pkg/logx"
)

// Manager coordinates the lifecycle of all per-user chat stores.
type Manager struct {
	// handles stores a map of all UserStore instances, keyed by user id.
	handles map[string]*UserStore

	// blobs is the shared snapshot backend handed to every store.
	blobs storage.BlobStore

	// interval is the recurring flush period for every store.
	interval time.Duration

	// mu protects concurrent access to the handles map.
	mu sync.Mutex

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs and returns a new store Manager.
func NewManager(blobs storage.BlobStore, interval time.Duration) *Manager {
	managerLogger := logx.Logger().With().Str("component", "StoreManager").Logger()

	return &Manager{
		handles:  make(map[string]*UserStore),
		blobs:    blobs,
		interval: interval,
		logger:   managerLogger,
	}
}

// Acquire returns the user's store, creating and hydrating it on first use.
// Acquire is idempotent: a second call for the same user returns the existing
// handle unchanged.
func (m *Manager) Acquire(ctx context.Context, userID string) *UserStore {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.handles[userID]; ok {
		return s
	}

	s := newUserStore(ctx, userID, m.blobs, m.interval)
	m.handles[userID] = s

	m.logger.Info().Str("user_id", userID).Msg("Chat store created.")
	return s
}

// Peek returns the user's store if it has been materialized, or nil.
func (m *Manager) Peek(userID string) *UserStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handles[userID]
}

// Release closes the user's store (stopping its flush loop and writing one
// final snapshot) and removes it from the manager. Releasing an absent store
// is a no-op.
func (m *Manager) Release(ctx context.Context, userID string) {
	m.mu.Lock()
	s, ok := m.handles[userID]
	if ok {
		delete(m.handles, userID)
	}
	m.mu.Unlock()

	if ok {
		s.Close(ctx)
	}
}

// Shutdown releases every remaining store, flushing each once more.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	remaining := make([]*UserStore, 0, len(m.handles))
	for _, s := range m.handles {
		remaining = append(remaining, s)
	}
	m.handles = make(map[string]*UserStore)
	m.mu.Unlock()

	for _, s := range remaining {
		s.Close(ctx)
	}

	m.logger.Info().Int("stores", len(remaining)).Msg("Store manager shutdown complete.")
}
