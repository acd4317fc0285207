/*
Package session contains the core logic for per-user WhatsApp session lifecycles.

This file defines the contracts between the session core and its collaborators:
the protocol client (the live WhatsApp connection), the factory that builds new
protocol instances, the credential store, and the notifier through which
lifecycle and message events reach the owning front-end client. The concrete
WhatsApp implementations live in the wa package; tests substitute fakes.
*/
package session

import (
	"context"

	"warelay/internal/app/store"
)

// Session status values reported to the front-end client.
const (
	StatusConnected        = "connected"
	StatusDisconnected     = "disconnected"
	StatusAlreadyConnected = "already_connected"
)

// Event is a lifecycle or message event emitted by a ProtocolClient. The
// concrete types below are the only implementations.
type Event interface{}

// QREvent carries a pairing code that must be scanned to authorize the session.
type QREvent struct {
	Code string
}

// OpenEvent signals that the protocol connection is established and authenticated.
type OpenEvent struct{}

// CloseEvent signals that the protocol connection dropped. LoggedOut marks the
// terminal "logged out" disconnect reason; every other reason is reconnectable.
type CloseEvent struct {
	Reason    string
	LoggedOut bool
}

// MessageEvent carries one inbound or echoed message.
type MessageEvent struct {
	Message store.Message
}

// CredentialsEvent signals that the protocol client produced fresh credential
// material that must be persisted before the process may safely exit.
type CredentialsEvent struct {
	Data []byte
}

// ProtocolClient is one live protocol connection instance for a single user.
// Implementations deliver events on the Events channel in emission order and
// must stop delivering after Detach returns.
type ProtocolClient interface {
	// Connect establishes the connection. A returned error means the handshake
	// or credential load failed; no events follow.
	Connect(ctx context.Context) error

	// Disconnect releases the underlying connection without logging out.
	Disconnect()

	// Logout terminates the account's device registration on the remote side.
	Logout(ctx context.Context) error

	// SendText sends a text message to the chat identified by chatID and
	// returns the assigned message id.
	SendText(ctx context.Context, chatID, text string) (string, error)

	// JoinedGroups fetches the full group listing from the protocol client.
	JoinedGroups(ctx context.Context) ([]store.ChatRecord, error)

	// Events returns the channel on which lifecycle and message events are
	// delivered. The channel is closed when the client is detached or the
	// connection is permanently gone.
	Events() <-chan Event

	// Detach synchronously stops event delivery. After Detach returns, no
	// further event reaches the Events channel, which guarantees a late close
	// can never trigger a reconnect on a torn-down session.
	Detach()
}

// ClientFactory builds protocol client instances. Reconnects create a fresh
// instance for the same user, reusing the stored credential material.
type ClientFactory interface {
	NewClient(ctx context.Context, userID string) (ProtocolClient, error)
}

// CredentialStore persists per-user durable auth material.
type CredentialStore interface {
	// Save persists fresh credential material for the user.
	Save(ctx context.Context, userID string, data []byte) error

	// Delete purges the user's credential material after a logout.
	Delete(ctx context.Context, userID string) error
}

// Notifier is the outbound event surface toward the front-end client that owns
// a session. Implementations must not block the caller.
type Notifier interface {
	QR(code string)
	Status(status string)
	Message(msg store.Message)
	Groups(groups []store.ChatRecord)
	MessageStatus(status string)
	Error(description string)
}
