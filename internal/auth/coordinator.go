package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

// Refresher exchanges the session credential for a fresh token record.
type Refresher interface {
	Refresh(ctx context.Context) (tokenstore.Record, error)
}

// SessionExpiredFunc is called once when a refresh fails, after the token store is cleared.
// Implementations notify the user and send them to the login entry point.
type SessionExpiredFunc func(ctx context.Context, cause error)

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSessionExpiredHandler sets the callback invoked when a refresh fails.
func WithSessionExpiredHandler(fn SessionExpiredFunc) CoordinatorOption {
	return func(c *Coordinator) {
		c.onExpired = fn
	}
}

// Coordinator guarantees at most one outstanding refresh call.
// Callers arriving while a refresh is in flight are queued and released in FIFO order
// with the refresh outcome.
type Coordinator struct {
	refresher Refresher
	store     *tokenstore.Store
	onExpired SessionExpiredFunc

	mu       sync.Mutex
	inFlight bool
	waiters  []chan error // non-empty only while inFlight
	expired  bool
}

// NewCoordinator creates a Coordinator persisting refreshed tokens to store.
func NewCoordinator(refresher Refresher, store *tokenstore.Store, opts ...CoordinatorOption) (*Coordinator, error) {
	if refresher == nil {
		return nil, fmt.Errorf("missing refresher")
	}
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	c := &Coordinator{
		refresher: refresher,
		store:     store,
		onExpired: func(ctx context.Context, cause error) {
			slog.WarnContext(ctx, "session expired", "error", cause)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Refresh renews the access token after a request sent with staleToken was rejected.
// Returns nil once a newer token is stored, or an error wrapping ErrSessionExpired.
//
// If the store already holds a token other than staleToken, a refresh completed since the
// rejected request was sent and no new refresh is issued.
func (c *Coordinator) Refresh(ctx context.Context, staleToken string) error {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return ErrSessionExpired
	}

	if c.inFlight {
		// Buffered so the releasing side never blocks on a waiter that gave up
		ch := make(chan error, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		slog.DebugContext(ctx, "waiting for in-flight token refresh")
		select {
		case err := <-ch:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if staleToken != "" {
		if rec, err := c.store.Read(ctx); err == nil && rec.AccessToken != staleToken {
			c.mu.Unlock()
			return nil
		}
	}

	c.inFlight = true
	c.mu.Unlock()

	// Once issued, a refresh runs to completion even if the triggering caller goes away
	err := c.refresh(context.WithoutCancel(ctx))

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.inFlight = false
	if err != nil {
		c.expired = true
	}
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
	}
	if len(waiters) > 0 {
		slog.DebugContext(ctx, "released queued requests", "count", len(waiters), "refreshed", err == nil)
	}

	return err
}

// refresh performs the network call and applies its outcome to the token store.
func (c *Coordinator) refresh(ctx context.Context) error {
	// The refresh response carries no "remember me" flag, so keep the scope in use before the refresh
	durable := c.store.Durable(ctx)

	slog.InfoContext(ctx, "refreshing access token")
	rec, err := c.refresher.Refresh(ctx)
	if err == nil {
		err = c.store.Save(ctx, rec, durable)
	}
	if err == nil {
		slog.InfoContext(ctx, "access token refreshed", "user_id", rec.UserID, "durable", durable)
		return nil
	}

	slog.ErrorContext(ctx, "token refresh failed", "error", err)
	if clearErr := c.store.Clear(ctx); clearErr != nil {
		slog.ErrorContext(ctx, "failed to clear token store", "error", clearErr)
	}
	c.onExpired(ctx, err)

	return fmt.Errorf("%w: %w", ErrSessionExpired, err)
}

// Reset leaves the expired state. Called after a successful login.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expired = false
}

// Expired reports whether a refresh has failed since the last Reset.
func (c *Coordinator) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// IsSessionExpired reports whether err means the user must log in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}
