package tokenstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Scope.Load and Store.Read when no record is stored.
var ErrNotFound = errors.New("token record not found")

// Record is the persisted credential pair returned by login and refresh.
type Record struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// Empty reports whether the record carries no access token.
func (r Record) Empty() bool {
	return r.AccessToken == ""
}

// Scope reads and writes a single token record to one storage medium.
type Scope interface {
	// Load returns the stored record, or ErrNotFound if nothing is stored.
	Load(ctx context.Context) (Record, error)

	// Store persists the record, overwriting any existing value.
	Store(ctx context.Context, rec Record) error

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context) error
}
