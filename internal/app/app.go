package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/tuumday/hotdeal-console/internal/api"
	"github.com/tuumday/hotdeal-console/internal/auth"
	"github.com/tuumday/hotdeal-console/internal/cookiestore"
	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

// App wires the token store, cookie jar, refresh coordinator, gateway and API client
// from configuration.
type App struct {
	baseURL string

	store       *tokenstore.Store
	cookies     *cookiestore.Jar
	coordinator *auth.Coordinator
	gateway     *auth.Gateway
	client      *api.Client

	closers []func() error
}

// Option customizes App construction.
type Option func(*options)

type options struct {
	session tokenstore.Scope
	notices io.Writer
	client  *http.Client
}

// WithSessionScope replaces the configured session scope. The interactive shell keeps
// session logins in memory so they end with the shell.
func WithSessionScope(scope tokenstore.Scope) Option {
	return func(o *options) {
		o.session = scope
	}
}

// WithNotices sets where user-facing notices such as session expiry are printed. Defaults to stderr.
func WithNotices(w io.Writer) Option {
	return func(o *options) {
		o.notices = w
	}
}

// WithHTTPClient sets the base HTTP client. Its transport is kept; the cookie jar is replaced.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// New creates a new App instance. No network I/O is performed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{notices: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	baseURL, err := cfg.BaseURL()
	if err != nil {
		return nil, fmt.Errorf("resolving API base URL: %w", err)
	}

	a := &App{baseURL: baseURL}

	durable, err := a.newDurableScope(cfg.Storage)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create durable token scope: %w", err)
	}
	session := o.session
	if session == nil {
		session, err = newSessionScope(cfg.Storage)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to create session token scope: %w", err)
		}
	}
	a.store, err = tokenstore.New(durable, session)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.cookies, err = cookiestore.New(cfg.Cookies.File, baseURL)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to load cookies: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	if o.client != nil {
		httpClient.Transport = o.client.Transport
	}
	httpClient.Jar = a.cookies

	notices := o.notices
	a.coordinator, err = auth.NewCoordinator(auth.NewHTTPRefresher(baseURL, httpClient), a.store,
		auth.WithSessionExpiredHandler(func(ctx context.Context, cause error) {
			a.sessionExpired(ctx, notices, cause)
		}))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.gateway, err = auth.NewGateway(baseURL, a.store, a.coordinator, auth.WithHTTPClient(httpClient))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.client, err = api.New(a.gateway, a.store, a.coordinator, api.WithHTTPClient(httpClient), api.WithCookies(a.cookies))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	slog.Debug("application ready", "base_url", baseURL, "durable", cfg.Storage.Durable, "session", cfg.Storage.Session)
	return a, nil
}

// Client returns the API client.
func (a *App) Client() *api.Client {
	return a.client
}

// Store returns the token store.
func (a *App) Store() *tokenstore.Store {
	return a.store
}

// BaseURL returns the API base URL in use.
func (a *App) BaseURL() string {
	return a.baseURL
}

// Close releases backend connections. Safe to call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// sessionExpired forgets the refresh cookie and points the user at the login entry point.
func (a *App) sessionExpired(ctx context.Context, w io.Writer, cause error) {
	slog.WarnContext(ctx, "session expired", "error", cause)
	if err := a.cookies.Clear(ctx); err != nil {
		slog.WarnContext(ctx, "failed to clear cookies", "error", err)
	}
	_, _ = fmt.Fprintln(w, "Your session has expired. Please log in again with: hotdeal login")
}

func (a *App) newDurableScope(cfg StorageConfig) (tokenstore.Scope, error) {
	switch cfg.Durable {
	case StorageTypeFile:
		return tokenstore.NewFileScope(cfg.File)
	case StorageTypeKeyring:
		return tokenstore.NewKeyringScope(DefaultConfigKeyringService, cfg.KeyringUser)
	case StorageTypeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)
		return tokenstore.NewRedisScope(rdb, cfg.Redis.Key, cfg.Redis.TTL)
	case StorageTypeMemory:
		return tokenstore.NewMemoryScope(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Durable)
	}
}

func newSessionScope(cfg StorageConfig) (tokenstore.Scope, error) {
	switch cfg.Session {
	case StorageTypeFile:
		return tokenstore.NewFileScope(cfg.SessionFile)
	case StorageTypeMemory:
		return tokenstore.NewMemoryScope(), nil
	default:
		return nil, fmt.Errorf("unsupported session storage type: %s", cfg.Session)
	}
}
