/*
Package wa adapts go.mau.fi/whatsmeow to the session core's contracts.

This file defines the Client struct, one protocol connection instance. It
translates whatsmeow's callback events into the session core's event channel
and maps the core's commands (connect, send, group listing, logout) onto the
whatsmeow client API.
*/
package wa

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"warelay/internal/app/session"
	"warelay/internal/app/store"
	"warelay/internal/pkg/logx"
)

// eventChannelBuffer sizes the translated event queue. The session core drains
// it on a dedicated goroutine; a full queue drops the event rather than block
// whatsmeow's dispatcher.
const eventChannelBuffer = 64

// Client wraps one whatsmeow.Client as a session.ProtocolClient.
type Client struct {
	userID string
	cli    *whatsmeow.Client

	events chan session.Event

	// mu guards detached. Emit and Detach both take it, so no event can be
	// delivered once Detach has returned.
	mu       sync.Mutex
	detached bool

	// qrCancel stops the pairing QR forwarder, if one was started.
	qrCancel context.CancelFunc

	// pairingTimeout bounds the QR pairing window for unpaired devices.
	pairingTimeout time.Duration

	logger zerolog.Logger
}

func newClient(userID string, cli *whatsmeow.Client, pairingTimeout time.Duration) *Client {
	c := &Client{
		userID:         userID,
		cli:            cli,
		events:         make(chan session.Event, eventChannelBuffer),
		pairingTimeout: pairingTimeout,
		logger: logx.Logger().With().
			Str("component", "wa_client").
			Str("user_id", userID).
			Logger(),
	}

	cli.AddEventHandler(c.handleEvent)
	return c
}

// Connect establishes the protocol connection. An unpaired device first opens
// the QR channel so pairing codes reach the front-end before the handshake
// begins.
func (c *Client) Connect(ctx context.Context) error {
	if c.cli.Store.ID == nil {
		qrCtx, cancel := context.WithTimeout(context.Background(), c.pairingTimeout)
		c.qrCancel = cancel

		qrChan, err := c.cli.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to open QR channel: %w", err)
		}

		go c.forwardQR(qrChan)
	}

	if err := c.cli.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	return nil
}

// forwardQR relays pairing codes from the QR channel into the event stream.
func (c *Client) forwardQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for item := range qrChan {
		switch item.Event {
		case "code":
			c.emit(session.QREvent{Code: item.Code})
		case "timeout":
			c.logger.Warn().Msg("QR pairing window expired")
		}
	}
}

// Disconnect releases the underlying connection without logging out.
func (c *Client) Disconnect() {
	c.cli.Disconnect()
}

// Logout terminates the device registration on the remote side.
func (c *Client) Logout(ctx context.Context) error {
	return c.cli.Logout(ctx)
}

// SendText sends a plain text message to the given chat.
func (c *Client) SendText(ctx context.Context, chatID, text string) (string, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return "", fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	resp, err := c.cli.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", err
	}

	return resp.ID, nil
}

// JoinedGroups fetches the full group listing and maps it to chat records.
func (c *Client) JoinedGroups(ctx context.Context) ([]store.ChatRecord, error) {
	groups, err := c.cli.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]store.ChatRecord, 0, len(groups))
	for _, g := range groups {
		participants := make([]string, 0, len(g.Participants))
		for _, p := range g.Participants {
			participants = append(participants, p.JID.ToNonAD().String())
		}

		records = append(records, store.ChatRecord{
			ID:           g.JID.String(),
			Name:         g.Name,
			Participants: participants,
			CreatedAt:    g.GroupCreated.Unix(),
		})
	}

	return records, nil
}

// Events returns the translated event channel.
func (c *Client) Events() <-chan session.Event {
	return c.events
}

// Detach synchronously stops event delivery: whatsmeow handlers are removed,
// the QR forwarder is cancelled, and the event channel is closed. No event is
// delivered after Detach returns.
func (c *Client) Detach() {
	c.cli.RemoveEventHandlers()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return
	}
	c.detached = true

	if c.qrCancel != nil {
		c.qrCancel()
	}

	close(c.events)
}

// emit queues a translated event unless the client has been detached.
func (c *Client) emit(evt session.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached {
		return
	}

	select {
	case c.events <- evt:
	default:
		c.logger.Warn().Msg("Event queue full, dropping protocol event")
	}
}

// handleEvent translates whatsmeow events into session events.
func (c *Client) handleEvent(raw interface{}) {
	switch evt := raw.(type) {
	case *events.Connected:
		c.emit(session.OpenEvent{})

	case *events.PairSuccess:
		// The container persisted the key material already; the relay's share
		// of the credential material is the paired device JID.
		c.emit(session.CredentialsEvent{Data: []byte(evt.ID.String())})

	case *events.LoggedOut:
		c.emit(session.CloseEvent{
			Reason:    fmt.Sprintf("logged out (%v)", evt.Reason),
			LoggedOut: true,
		})

	case *events.StreamReplaced:
		c.emit(session.CloseEvent{Reason: "stream replaced"})

	case *events.ConnectFailure:
		c.emit(session.CloseEvent{Reason: fmt.Sprintf("connect failure: %s", evt.Message)})

	case *events.Disconnected:
		c.emit(session.CloseEvent{Reason: "connection closed"})

	case *events.Message:
		c.emit(session.MessageEvent{Message: convertMessage(evt)})
	}
}

// convertMessage maps a whatsmeow message event to the cached message form.
func convertMessage(evt *events.Message) store.Message {
	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}

	return store.Message{
		ID:        evt.Info.ID,
		ChatID:    evt.Info.Chat.String(),
		Sender:    evt.Info.Sender.ToNonAD().String(),
		Text:      text,
		Timestamp: evt.Info.Timestamp.Unix(),
		FromMe:    evt.Info.IsFromMe,
	}
}
