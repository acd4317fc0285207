package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoBinding is returned when a user has no stored device binding.
var ErrNoBinding = errors.New("db: no device binding for user")

// Bindings provides access to the user_devices table.
type Bindings struct {
	pool *pgxpool.Pool
}

// NewBindings returns a Bindings backed by the given pool.
func NewBindings(pool *pgxpool.Pool) *Bindings {
	return &Bindings{pool: pool}
}

// LookupDevice returns the device JID bound to userID, or ErrNoBinding.
func (b *Bindings) LookupDevice(ctx context.Context, userID string) (string, error) {
	var jid string

	err := b.pool.QueryRow(ctx,
		`SELECT device_jid FROM user_devices WHERE user_id = $1`,
		userID,
	).Scan(&jid)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNoBinding
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up device binding: %w", err)
	}

	return jid, nil
}

// BindDevice records (or replaces) the device JID bound to userID.
func (b *Bindings) BindDevice(ctx context.Context, userID, deviceJID string) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO user_devices (user_id, device_jid)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id)
		 DO UPDATE SET device_jid = EXCLUDED.device_jid, updated_at = now()`,
		userID, deviceJID,
	)
	if err != nil {
		return fmt.Errorf("failed to bind device: %w", err)
	}
	return nil
}

// DeleteBinding removes the device binding for userID. Removing a missing
// binding is not an error.
func (b *Bindings) DeleteBinding(ctx context.Context, userID string) error {
	_, err := b.pool.Exec(ctx,
		`DELETE FROM user_devices WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete device binding: %w", err)
	}
	return nil
}
