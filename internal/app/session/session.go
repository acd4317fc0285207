/*
Package session contains the core logic for per-user WhatsApp session lifecycles.

This file defines the Session struct and its state machine. A session drives
one user's protocol connection through Connecting, Open, Closed (reconnecting),
and Terminated, reacting to events delivered on the protocol client's channel.
All handling for one user runs on the session's single event goroutine, so
store and registry mutations for that user never interleave mid-update.
*/
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"warelay/internal/app/store"
	"warelay/internal/pkg/logx"
)

// State identifies the lifecycle phase of a session.
type State int32

const (
	// StateConnecting means a protocol connection attempt is in flight.
	StateConnecting State = iota

	// StateOpen means the protocol connection is established and synced.
	StateOpen

	// StateClosed means the connection dropped and a reconnect is pending.
	StateClosed

	// StateTerminated is the terminal state: the session is permanently gone.
	StateTerminated
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// RetryPolicy controls the close-driven reconnect loop.
type RetryPolicy struct {
	// Backoff is the delay before the first reconnect attempt. Each failed
	// attempt doubles it, capped at BackoffMax.
	Backoff time.Duration

	// BackoffMax caps the growing backoff delay.
	BackoffMax time.Duration

	// MaxAttempts bounds consecutive failed reconnect attempts. Zero means
	// retry without bound, matching the observed source behavior.
	MaxAttempts int
}

// Session owns one user's live protocol connection and drives its lifecycle.
type Session struct {
	// UserID is the stable account identifier this session serves.
	UserID string

	// ClientID identifies the transport client that owns this session.
	ClientID string

	deps     *deps
	notifier Notifier

	// state is the current lifecycle phase, written only by the event
	// goroutine and Stop.
	state atomic.Int32

	// client is the current protocol instance. Guarded by mu: reconnects swap
	// it while SendText reads it from command goroutines.
	client ProtocolClient
	mu     sync.Mutex

	// stopChan terminates the event loop on explicit teardown.
	stopChan chan struct{}

	// stopOnce guards Stop against double invocation.
	stopOnce sync.Once

	// structured logger with session context.
	logger zerolog.Logger
}

// deps bundles the collaborators the session core needs; it is shared by every
// session the manager creates.
type deps struct {
	factory        ClientFactory
	creds          CredentialStore
	stores         *store.Manager
	registry       *Registry
	retry          RetryPolicy
	connectTimeout time.Duration
}

// newSession constructs a session in the Connecting state. The protocol client
// is attached separately once the factory has produced it.
func newSession(userID, clientID string, d *deps, notifier Notifier) *Session {
	sessionLogger := logx.Logger().With().
		Str("component", "Session").
		Str("user_id", userID).
		Str("client_id", clientID).
		Logger()

	s := &Session{
		UserID:   userID,
		ClientID: clientID,
		deps:     d,
		notifier: notifier,
		stopChan: make(chan struct{}),
		logger:   sessionLogger,
	}
	s.state.Store(int32(StateConnecting))
	return s
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// stopped reports whether Stop has been invoked.
func (s *Session) stopped() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// ownsEntry reports whether the registry entry for this user still belongs to
// this session. A buffered event can outlive a teardown, and the user may
// already have a newer session owned by another transport client; a session
// that lost its entry must not mutate any shared state on the user's behalf.
func (s *Session) ownsEntry() bool {
	entry := s.deps.registry.Lookup(s.UserID)
	return entry != nil && entry.Session == s
}

func (s *Session) setState(st State) {
	old := State(s.state.Swap(int32(st)))
	if old != st {
		s.logger.Debug().Str("from", old.String()).Str("to", st.String()).Msg("Session state changed")
	}
}

// adopt swaps in a new protocol instance, detaching the previous one first so
// no stale event can arrive after the swap.
func (s *Session) adopt(cli ProtocolClient) {
	s.mu.Lock()
	old := s.client
	s.client = cli
	s.mu.Unlock()

	if old != nil {
		old.Detach()
	}
}

// currentClient returns the protocol instance currently backing the session.
func (s *Session) currentClient() ProtocolClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// Stop tears the session down from the transport side: it synchronously
// detaches event listeners first, then releases the underlying connection.
// The detach-before-disconnect order guarantees no late close event can fire
// a reconnect after the registry entry is gone. Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)

		cli := s.currentClient()
		if cli != nil {
			cli.Detach()
			cli.Disconnect()
		}

		s.setState(StateTerminated)
		s.logger.Info().Msg("Session stopped.")
	})
}

// SendText forwards a message to the protocol client and returns the assigned
// message id.
func (s *Session) SendText(ctx context.Context, chatID, text string) (string, error) {
	cli := s.currentClient()
	if cli == nil || s.State() == StateTerminated {
		return "", errNotConnected
	}
	return cli.SendText(ctx, chatID, text)
}

// run is the session's event loop. It consumes events from the current
// protocol instance until the session terminates; a successful reconnect swaps
// in the new instance's channel and the loop continues.
func (s *Session) run(cli ProtocolClient) {
	for {
		select {
		case <-s.stopChan:
			return

		case evt, ok := <-cli.Events():
			if !ok {
				return
			}

			// Both channels can be ready at once: a buffered event survives
			// the close of stopChan, so re-check before dispatching it.
			if s.stopped() {
				return
			}

			switch e := evt.(type) {
			case QREvent:
				s.notifier.QR(e.Code)

			case OpenEvent:
				s.handleOpen(cli)

			case CredentialsEvent:
				s.handleCredentials(e)

			case MessageEvent:
				s.handleMessage(e)

			case CloseEvent:
				next := s.handleClose(e)
				if next == nil {
					return
				}
				cli = next

			default:
				s.logger.Warn().Msg("Protocol client emitted unknown event type")
			}
		}
	}
}

// handleOpen reacts to a successful connection: it materializes the user's
// chat store, syncs the group listing into it, and reports connected status.
func (s *Session) handleOpen(cli ProtocolClient) {
	if !s.ownsEntry() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.deps.connectTimeout)
	defer cancel()

	st := s.deps.stores.Acquire(ctx, s.UserID)

	groups, err := cli.JoinedGroups(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Group sync failed")
	} else {
		added := 0
		for _, g := range groups {
			if st.UpsertChat(g) {
				added++
			}
		}
		s.logger.Info().Int("groups", len(groups)).Int("new", added).Msg("Group sync complete")
	}

	s.setState(StateOpen)
	s.notifier.Status(StatusConnected)
}

// handleCredentials persists refreshed credential material. It does not affect
// the state machine; the store write completes before the next event is
// processed, so the material is durable before any orderly exit.
func (s *Session) handleCredentials(e CredentialsEvent) {
	if !s.ownsEntry() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.deps.creds.Save(ctx, s.UserID, e.Data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist refreshed credentials")
	}
}

// handleMessage caches the relayed message and forwards it to the client.
func (s *Session) handleMessage(e MessageEvent) {
	if !s.ownsEntry() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st := s.deps.stores.Acquire(ctx, s.UserID)
	st.AppendMessage(e.Message)

	s.notifier.Message(e.Message)
}

// handleClose drives the Closed branch of the state machine. It returns the
// new protocol instance when a reconnect succeeded, or nil when the session
// has reached its terminal state and the event loop must exit.
func (s *Session) handleClose(e CloseEvent) ProtocolClient {
	s.setState(StateClosed)

	// Externally unregistered, or the user already has a newer session owned
	// by another client: this session no longer speaks for the user. It must
	// neither reconnect nor touch credentials, stores, or the entry.
	if !s.ownsEntry() {
		s.logger.Info().Str("reason", e.Reason).Msg("Connection closed for superseded session. Terminating without teardown.")
		s.setState(StateTerminated)
		return nil
	}

	if e.LoggedOut {
		s.terminate(e.Reason, true)
		return nil
	}

	s.logger.Info().Str("reason", e.Reason).Msg("Connection closed. Reconnecting.")
	s.setState(StateConnecting)

	cli := s.reconnect()
	if cli == nil {
		// Retry budget exhausted or teardown raced the reconnect.
		if s.State() != StateTerminated && s.ownsEntry() {
			s.terminate("reconnect attempts exhausted", false)
		}
		return nil
	}

	s.adopt(cli)
	return cli
}

// terminate performs the terminal-state transition: purge credentials when the
// remote side logged us out, drop the registry entry, release the chat store,
// and report disconnected status exactly once. The entry removal is
// compare-and-delete: losing ownership between the handleClose check and here
// means a newer session took over, and its state must stay untouched.
func (s *Session) terminate(reason string, loggedOut bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if !s.deps.registry.UnregisterOwned(s.UserID, s.ClientID) {
		s.setState(StateTerminated)
		s.logger.Info().Str("reason", reason).Msg("Session superseded before termination. Skipping teardown.")
		return
	}

	if loggedOut {
		if err := s.deps.creds.Delete(ctx, s.UserID); err != nil {
			s.logger.Error().Err(err).Msg("Failed to delete credentials on logout")
		}
	}

	s.deps.stores.Release(ctx, s.UserID)

	s.setState(StateTerminated)
	s.notifier.Status(StatusDisconnected)

	s.logger.Info().Str("reason", reason).Bool("logged_out", loggedOut).Msg("Session terminated.")
}

// reconnect re-establishes the protocol connection with the stored credential
// material, honoring the configured retry policy. It returns nil when the
// retry budget is exhausted or the session was torn down while waiting.
func (s *Session) reconnect() ProtocolClient {
	backoff := s.deps.retry.Backoff

	for attempt := 1; ; attempt++ {
		select {
		case <-s.stopChan:
			return nil
		default:
		}

		cli, err := s.connectOnce()
		if err == nil {
			s.logger.Info().Int("attempt", attempt).Msg("Reconnected")
			return cli
		}

		s.logger.Warn().Err(err).Int("attempt", attempt).Dur("backoff", backoff).Msg("Reconnect attempt failed")

		if s.deps.retry.MaxAttempts > 0 && attempt >= s.deps.retry.MaxAttempts {
			return nil
		}

		select {
		case <-s.stopChan:
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > s.deps.retry.BackoffMax {
			backoff = s.deps.retry.BackoffMax
		}
	}
}

// connectOnce builds a fresh protocol instance and connects it.
func (s *Session) connectOnce() (ProtocolClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.connectTimeout)
	defer cancel()

	cli, err := s.deps.factory.NewClient(ctx, s.UserID)
	if err != nil {
		return nil, err
	}

	if err := cli.Connect(ctx); err != nil {
		cli.Detach()
		return nil, err
	}

	return cli, nil
}
