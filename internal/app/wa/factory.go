/*
Package wa adapts go.mau.fi/whatsmeow to the session core's contracts.

This file defines the Factory struct, which builds one whatsmeow client per
connection attempt. Reconnects go through the factory again so every attempt
gets a fresh protocol instance over the same stored credential material.
*/
package wa

import (
	"context"
	"time"

	"go.mau.fi/whatsmeow"
	waLog "go.mau.fi/whatsmeow/util/log"

	"warelay/internal/app/session"
	"warelay/internal/pkg/logx"
)

// Factory builds whatsmeow-backed protocol clients.
type Factory struct {
	store          *Store
	pairingTimeout time.Duration
}

// NewFactory constructs a Factory over the credential store.
func NewFactory(store *Store, pairingTimeout time.Duration) *Factory {
	return &Factory{store: store, pairingTimeout: pairingTimeout}
}

// NewClient implements session.ClientFactory. Auto-reconnect is disabled on
// the whatsmeow client: the session core owns the reconnect policy.
func (f *Factory) NewClient(ctx context.Context, userID string) (session.ProtocolClient, error) {
	dev, err := f.store.Device(ctx, userID)
	if err != nil {
		return nil, err
	}

	wlog := waLog.Zerolog(logx.Logger().With().
		Str("component", "whatsmeow").
		Str("user_id", userID).
		Logger())

	cli := whatsmeow.NewClient(dev, wlog)
	cli.EnableAutoReconnect = false

	return newClient(userID, cli, f.pairingTimeout), nil
}
