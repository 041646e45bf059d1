package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringScope provides OS-native secure credential storage for the token record.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
type KeyringScope struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringScope implements Scope
var _ Scope = (*KeyringScope)(nil)

// NewKeyringScope creates a KeyringScope using the given service and user identifiers.
func NewKeyringScope(service, user string) (*KeyringScope, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringScope{
		service: service,
		user:    user,
	}, nil
}

// Load returns the record from the system keyring. Returns ErrNotFound if no entry exists.
func (k *KeyringScope) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(secret), &rec); err != nil {
		return Record{}, fmt.Errorf("decoding keyring entry for service %s, user %s: %w", k.service, k.user, err)
	}
	if rec.Empty() {
		return Record{}, ErrNotFound
	}

	return rec, nil
}

// Store persists the record to the system keyring, overwriting any existing value.
func (k *KeyringScope) Store(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding token record: %w", err)
	}

	return keyring.Set(k.service, k.user, string(data))
}

// Delete removes the keyring entry. A missing entry is not an error.
func (k *KeyringScope) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
