package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Store is the process-wide token store spanning the durable and session scopes.
// All mutations go through Save and Clear, which are serialized.
type Store struct {
	durable Scope
	session Scope

	mu sync.RWMutex
}

// New creates a Store over the given durable and session scopes.
func New(durable, session Scope) (*Store, error) {
	if durable == nil {
		return nil, fmt.Errorf("missing durable scope")
	}
	if session == nil {
		return nil, fmt.Errorf("missing session scope")
	}

	return &Store{
		durable: durable,
		session: session,
	}, nil
}

// Save writes the record to the durable scope if durable is true, otherwise to the session
// scope, then clears the other scope. A failed write leaves the previous record in place.
// A failed clear is returned as an error; the new record is already stored by then.
func (s *Store) Save(ctx context.Context, rec Record, durable bool) error {
	if rec.Empty() {
		return fmt.Errorf("refusing to save record without access token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, other := s.session, s.durable
	scope := "session"
	if durable {
		target, other = s.durable, s.session
		scope = "durable"
	}

	if err := target.Store(ctx, rec); err != nil {
		return fmt.Errorf("writing %s scope: %w", scope, err)
	}
	if err := other.Delete(ctx); err != nil {
		return fmt.Errorf("clearing other scope: %w", err)
	}

	// Token values are never logged
	slog.DebugContext(ctx, "token record saved", "scope", scope, "user_id", rec.UserID)
	return nil
}

// Read returns the durable record if present, else the session record.
// Returns ErrNotFound if neither scope holds a record.
func (s *Store) Read(ctx context.Context) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.durable.Load(ctx)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, fmt.Errorf("reading durable scope: %w", err)
	}

	rec, err = s.session.Load(ctx)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, fmt.Errorf("reading session scope: %w", err)
	}

	return Record{}, ErrNotFound
}

// Clear removes the record from both scopes. Idempotent.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Attempt both deletes even if the first fails
	var errs []error
	if err := s.durable.Delete(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing durable scope: %w", err))
	}
	if err := s.session.Delete(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing session scope: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.DebugContext(ctx, "token record cleared")
	return nil
}

// HasToken reports whether either scope holds a non-empty access token.
// Storage errors count as no token.
func (s *Store) HasToken(ctx context.Context) bool {
	rec, err := s.Read(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.WarnContext(ctx, "token store unreadable", "error", err)
		}
		return false
	}
	return !rec.Empty()
}

// Durable reports whether the durable scope currently holds a record.
func (s *Store) Durable(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := s.durable.Load(ctx)
	return err == nil
}
