/*
Package relay translates between front-end WebSocket clients and the session core.

This file defines the Client struct, representing one active WebSocket
connection. It manages the connection's lifecycle and message loops (ReadPump
and WritePump), forwards inbound commands to the session manager, and
implements the notifier surface through which session events reach the
front-end.
*/
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"warelay/internal/app/session"
	"warelay/internal/app/store"
	"warelay/internal/pkg/errs"
	"warelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// commandTimeout bounds the handling of one inbound command.
	commandTimeout = 75 * time.Second
)

// Client represents one active WebSocket connection from a front-end client.
type Client struct {
	// ClientID is this transport connection's ephemeral identifier.
	ClientID string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// sessions is the session manager commands are forwarded to.
	sessions *session.Manager

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// mu guards closed. Both enqueue and Close take it, so no event can be
	// queued once Close has returned.
	mu     sync.Mutex
	closed bool

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(clientID string, wsConn *websocket.Conn, sessions *session.Manager) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "RelayClient").
		Str("client_id", clientID).
		Logger()

	return &Client{
		ClientID: clientID,
		conn:     wsConn,
		sessions: sessions,
		send:     make(chan []byte, 256),
		logger:   clientLogger,
	}
}

// ReadPump handles reading messages from the WebSocket connection.
// It handles heartbeats (Pong), command dispatch, and performs cleanup upon connection closure.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// cleanupOnDisconnect handles the necessary cleanup steps when the client's ReadPump terminates.
// Tearing down the session here is what suppresses any further reconnect for
// a user nobody owns anymore.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.sessions.HandleClientDisconnect(c.ClientID)

	// Closing the send queue lets the write pump exit on its closed-channel
	// branch instead of lingering until the next ping fails.
	c.Close()

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInboundMessage handles raw byte messages received from the client.
func (c *Client) processInboundMessage(messageBytes []byte) {
	var envelope Envelope

	if err := json.Unmarshal(messageBytes, &envelope); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch envelope.Event {
	case EventAuth:
		c.handleAuth(envelope.Payload)

	case EventSendMessage:
		c.handleSendMessage(envelope.Payload)

	case EventListGroups:
		c.handleListGroups()

	default:
		c.logger.Warn().Str("event", envelope.Event).Msg("Client sent unsupported event type")
		c.SendError(errs.NewError(errs.ErrUnsupportedEvent))
	}
}

// handleAuth starts a session for the requested user, owned by this client.
func (c *Client) handleAuth(payloadBytes json.RawMessage) {
	var payload AuthPayload
	if len(payloadBytes) > 0 {
		if err := json.Unmarshal(payloadBytes, &payload); err != nil {
			c.logger.Warn().Err(err).Msg("Client sent invalid auth payload")
			c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if authErr := c.sessions.Authenticate(ctx, payload.UserID, c.ClientID, c); authErr != nil {
		if authErr.Code == errs.ErrAlreadyConnected {
			c.Status(session.StatusAlreadyConnected)
			return
		}
		c.SendError(authErr)
	}
}

// handleSendMessage forwards a text message to the user's session.
func (c *Client) handleSendMessage(payloadBytes json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid sendMessage payload")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, sendErr := c.sessions.SendText(ctx, c.ClientID, payload.GroupID, payload.Message); sendErr != nil {
		c.SendError(sendErr)
		return
	}

	c.MessageStatus("sent")
}

// handleListGroups reports the cached group listing for the user's session.
func (c *Client) handleListGroups() {
	groups, listErr := c.sessions.ListGroups(c.ClientID)
	if listErr != nil {
		c.SendError(listErr)
		return
	}

	c.Groups(groups)
}

// WritePump handles writing messages from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage handles messages pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// enqueue marshals an envelope and attempts to queue it for the client.
func (c *Client) enqueue(event string, payload any) {
	messageBytes, err := newEnvelope(event, payload)
	if err != nil {
		c.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event for client")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- messageBytes:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Str("event", event).Msg("Client send channel full, dropping event")
	}
}

// QR implements session.Notifier: surfaces a pairing code to the client.
func (c *Client) QR(code string) {
	c.enqueue(EventQR, code)
}

// Status implements session.Notifier: reports a session status change.
func (c *Client) Status(status string) {
	c.enqueue(EventStatus, StatusPayload{Status: status})
}

// Message implements session.Notifier: relays an upserted message payload.
func (c *Client) Message(msg store.Message) {
	c.enqueue(EventMessage, msg)
}

// Groups implements session.Notifier: delivers the group listing.
func (c *Client) Groups(groups []store.ChatRecord) {
	if groups == nil {
		groups = []store.ChatRecord{}
	}
	c.enqueue(EventGroups, GroupsPayload{Groups: groups})
}

// MessageStatus implements session.Notifier: acknowledges a send.
func (c *Client) MessageStatus(status string) {
	c.enqueue(EventMessageStatus, MessageStatusPayload{Status: status})
}

// Error implements session.Notifier: reports a failure description.
func (c *Client) Error(description string) {
	c.enqueue(EventError, ErrorPayload{Code: errs.ErrUnknown, Message: description})
}

// SendError constructs and sends an error event from a CustomError.
func (c *Client) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	c.enqueue(EventError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}

// Close shuts the send queue down; the write pump then closes the connection.
// Safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

var _ session.Notifier = (*Client)(nil)

// String identifies the client in logs.
func (c *Client) String() string {
	return fmt.Sprintf("relay-client %s", c.ClientID)
}
