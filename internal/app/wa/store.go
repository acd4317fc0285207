/*
Package wa adapts go.mau.fi/whatsmeow to the session core's contracts.

This file defines the Store struct, which wraps the whatsmeow credential
container (device keys, identity state, sessions) together with the relay's
user_devices binding table. The container owns the credential format and its
own schema; the binding table maps the relay's stable user ids to the device
JID that was paired for each of them.
*/
package wa

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	"warelay/internal/app/db"
	"warelay/internal/pkg/logx"
)

// Store holds the whatsmeow credential container and the user/device bindings.
type Store struct {
	container *sqlstore.Container
	bindings  *db.Bindings
}

// NewStore builds the credential container over the shared database handle and
// runs the container's own schema upgrade.
func NewStore(ctx context.Context, sqlDB *sql.DB, bindings *db.Bindings) (*Store, error) {
	wlog := waLog.Zerolog(logx.Logger().With().Str("component", "whatsmeow").Logger())

	container := sqlstore.NewWithDB(sqlDB, "postgres", wlog.Sub("Database"))
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("failed to upgrade whatsmeow schema: %w", err)
	}

	return &Store{container: container, bindings: bindings}, nil
}

// Device resolves the credential material for userID: the previously paired
// device if a binding exists, or a fresh unpaired device that will go through
// QR pairing on first connect.
func (s *Store) Device(ctx context.Context, userID string) (*store.Device, error) {
	jidStr, err := s.bindings.LookupDevice(ctx, userID)
	if errors.Is(err, db.ErrNoBinding) {
		return s.container.NewDevice(), nil
	}
	if err != nil {
		return nil, err
	}

	jid, err := types.ParseJID(jidStr)
	if err != nil {
		// A corrupt binding cannot be repaired; pair again.
		logx.Warn("Stored device binding is not a valid JID. Re-pairing.", "user_id", userID, "jid", jidStr)
		return s.container.NewDevice(), nil
	}

	dev, err := s.container.GetDevice(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("failed to load device for %s: %w", userID, err)
	}
	if dev == nil {
		return s.container.NewDevice(), nil
	}

	return dev, nil
}

// Save implements the session credential-store contract. The payload is the
// paired device JID; the key material itself is persisted by the container as
// it changes.
func (s *Store) Save(ctx context.Context, userID string, data []byte) error {
	return s.bindings.BindDevice(ctx, userID, string(data))
}

// Delete implements the session credential-store contract: it removes the
// device registration (and all its key material) plus the relay binding.
func (s *Store) Delete(ctx context.Context, userID string) error {
	jidStr, err := s.bindings.LookupDevice(ctx, userID)
	if errors.Is(err, db.ErrNoBinding) {
		return nil
	}
	if err != nil {
		return err
	}

	if jid, parseErr := types.ParseJID(jidStr); parseErr == nil {
		dev, devErr := s.container.GetDevice(ctx, jid)
		if devErr == nil && dev != nil {
			if delErr := dev.Delete(ctx); delErr != nil {
				return fmt.Errorf("failed to delete device credentials: %w", delErr)
			}
		}
	}

	return s.bindings.DeleteBinding(ctx, userID)
}
