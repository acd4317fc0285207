/*
Package session contains the core logic for per-user WhatsApp session lifecycles.

This file defines the Registry struct, the process-wide mapping from user id to
the active session and its owning transport client. The registry enforces two
invariants: at most one live session per user, and at most one user per
transport client.
*/
package session

import (
	"sync"

	"warelay/internal/pkg/errs"
)

// Entry binds a user id, the transport client that owns the session, and the
// session itself.
type Entry struct {
	UserID   string
	ClientID string
	Session  *Session
}

// Registry tracks every active session. All methods are safe for concurrent use.
type Registry struct {
	// entries maps user id to its single live entry.
	entries map[string]*Entry

	// owners maps transport client id to the user id it authenticated as.
	owners map[string]string

	// mu protects both maps.
	mu sync.RWMutex
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		owners:  make(map[string]string),
	}
}

// Register records a new entry. It fails with ErrAlreadyConnected if a live
// entry already exists for the user, or if the transport client already owns
// a session for another user.
func (r *Registry) Register(userID, clientID string, sess *Session) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[userID]; ok {
		return errs.NewError(errs.ErrAlreadyConnected)
	}
	if _, ok := r.owners[clientID]; ok {
		return errs.NewError(errs.ErrAlreadyConnected)
	}

	r.entries[userID] = &Entry{UserID: userID, ClientID: clientID, Session: sess}
	r.owners[clientID] = userID
	return nil
}

// Lookup returns the live entry for the user, or nil.
func (r *Registry) Lookup(userID string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[userID]
}

// OwnerOf returns the user id the transport client authenticated as.
func (r *Registry) OwnerOf(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.owners[clientID]
	return userID, ok
}

// Unregister removes the user's entry. Removing an absent entry is a no-op.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(userID)
}

// UnregisterOwned removes the user's entry only if clientID still owns it.
// This guards against a stale transport disconnect racing a newer connection
// for the same user. It reports whether the entry was removed.
func (r *Registry) UnregisterOwned(userID, clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userID]
	if !ok || entry.ClientID != clientID {
		return false
	}

	r.remove(userID)
	return true
}

// Entries returns a snapshot of every live entry, used during shutdown.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	return entries
}

// remove deletes an entry and its owner mapping. Caller must hold mu.
func (r *Registry) remove(userID string) {
	if entry, ok := r.entries[userID]; ok {
		delete(r.owners, entry.ClientID)
		delete(r.entries, userID)
	}
}
