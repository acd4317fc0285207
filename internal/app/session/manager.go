/*
Package session contains the core logic for per-user WhatsApp session lifecycles.

This file defines the Manager struct, the composition point the transport layer
talks to. It validates inbound commands, enforces registry invariants, starts
session event loops, and routes commands to the right session.
*/
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"warelay/internal/app/store"
	"warelay/internal/pkg/errs"
	"warelay/internal/pkg/logx"
)

var errNotConnected = errs.NewError(errs.ErrNotConnected)

// Config carries the tunable lifecycle parameters for the session manager.
type Config struct {
	// Retry is the close-driven reconnect policy.
	Retry RetryPolicy

	// ConnectTimeout bounds a single connection attempt, including the initial
	// one triggered by authenticate.
	ConnectTimeout time.Duration
}

// Manager owns the registry and creates, routes to, and tears down sessions.
type Manager struct {
	registry *Registry
	deps     *deps

	// structured logger with Manager context.
	logger zerolog.Logger
}

// NewManager constructs a session Manager wired to its collaborators.
func NewManager(factory ClientFactory, creds CredentialStore, stores *store.Manager, cfg Config) *Manager {
	managerLogger := logx.Logger().With().Str("component", "SessionManager").Logger()

	registry := NewRegistry()

	return &Manager{
		registry: registry,
		deps: &deps{
			factory:        factory,
			creds:          creds,
			stores:         stores,
			registry:       registry,
			retry:          cfg.Retry,
			connectTimeout: cfg.ConnectTimeout,
		},
		logger: managerLogger,
	}
}

// Registry exposes the session registry for read-side queries.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Authenticate starts a session for userID owned by the transport client
// clientID. It rejects an empty user id, rejects a user that already has a
// live session, and surfaces connection establishment errors to the caller
// without retrying; the close-driven reconnect path is the only automatic
// retry in the system.
func (m *Manager) Authenticate(ctx context.Context, userID, clientID string, notifier Notifier) *errs.CustomError {
	if userID == "" {
		return errs.NewError(errs.ErrMissingUserID)
	}

	sess := newSession(userID, clientID, m.deps, notifier)

	// Register before connecting so a concurrent authenticate for the same
	// user observes the reservation and fails fast.
	if regErr := m.registry.Register(userID, clientID, sess); regErr != nil {
		m.logger.Warn().Str("user_id", userID).Str("client_id", clientID).Msg("Authenticate rejected: already connected")
		return regErr
	}

	connectCtx, cancel := context.WithTimeout(ctx, m.deps.connectTimeout)
	defer cancel()

	cli, err := m.deps.factory.NewClient(connectCtx, userID)
	if err != nil {
		m.registry.Unregister(userID)
		sess.setState(StateTerminated)
		m.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to build protocol client")
		return errs.NewError(errs.ErrConnectionFailure, err)
	}

	sess.adopt(cli)

	if err := cli.Connect(connectCtx); err != nil {
		cli.Detach()
		m.registry.Unregister(userID)
		sess.setState(StateTerminated)
		m.logger.Error().Err(err).Str("user_id", userID).Msg("Protocol connect failed")
		return errs.NewError(errs.ErrConnectionFailure, err)
	}

	go sess.run(cli)

	m.logger.Info().Str("user_id", userID).Str("client_id", clientID).Msg("Session started.")
	return nil
}

// SendText forwards a text message on behalf of the transport client. The
// client must have authenticated first.
func (m *Manager) SendText(ctx context.Context, clientID, chatID, text string) (string, *errs.CustomError) {
	entry := m.ownedEntry(clientID)
	if entry == nil {
		return "", errNotConnected
	}

	msgID, err := entry.Session.SendText(ctx, chatID, text)
	if err != nil {
		return "", errs.NewError(errs.ErrSendFailure, err)
	}
	return msgID, nil
}

// ListGroups returns the cached group listing for the transport client's user.
func (m *Manager) ListGroups(clientID string) ([]store.ChatRecord, *errs.CustomError) {
	entry := m.ownedEntry(clientID)
	if entry == nil {
		return nil, errNotConnected
	}

	st := m.deps.stores.Peek(entry.UserID)
	if st == nil {
		return nil, errs.NewError(errs.ErrStoreUnavailable)
	}

	return st.ListGroups(), nil
}

// HandleClientDisconnect tears down the session owned by a transport client
// that dropped. The registry entry is removed only if the disconnecting client
// still owns it, so a stale disconnect can never destroy a newer connection
// for the same user.
func (m *Manager) HandleClientDisconnect(clientID string) {
	userID, ok := m.registry.OwnerOf(clientID)
	if !ok {
		return
	}

	entry := m.registry.Lookup(userID)
	if !m.registry.UnregisterOwned(userID, clientID) {
		m.logger.Info().Str("user_id", userID).Str("client_id", clientID).Msg("Stale disconnect ignored: entry owned by a newer client")
		return
	}

	if entry != nil {
		entry.Session.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m.deps.stores.Release(ctx, userID)

	m.logger.Info().Str("user_id", userID).Str("client_id", clientID).Msg("Session torn down after client disconnect.")
}

// Shutdown stops every live session. Stores are flushed separately by the
// store manager's own shutdown.
func (m *Manager) Shutdown() {
	entries := m.registry.Entries()
	for _, entry := range entries {
		m.registry.Unregister(entry.UserID)
		entry.Session.Stop()
	}
	m.logger.Info().Int("sessions", len(entries)).Msg("Session manager shutdown complete.")
}

// ownedEntry resolves the entry owned by a transport client, or nil.
func (m *Manager) ownedEntry(clientID string) *Entry {
	userID, ok := m.registry.OwnerOf(clientID)
	if !ok {
		return nil
	}
	return m.registry.Lookup(userID)
}
