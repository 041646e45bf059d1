package app

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/tuumday/hotdeal-console/internal/api"
	"github.com/tuumday/hotdeal-console/internal/apitest"
	"github.com/tuumday/hotdeal-console/internal/auth"
	"github.com/tuumday/hotdeal-console/internal/tokenstore"
)

func testConfig(t *testing.T, baseURL string) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &Config{
		API: APIConfig{Origin: "https://tuum.day", BaseURL: baseURL},
		Storage: StorageConfig{
			Durable:     StorageTypeFile,
			Session:     StorageTypeFile,
			File:        filepath.Join(dir, "token.json"),
			SessionFile: filepath.Join(dir, "run", "session.json"),
		},
		Cookies: CookiesConfig{File: filepath.Join(dir, "cookies.json")},
	}
	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestApp(t *testing.T, cfg *Config, opts ...Option) *App {
	t.Helper()
	a, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

// A remembered login is visible to the next process, including the refresh cookie.
func TestLoginSurvivesRestart(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "a@example.com", Password: "pw", Active: true})
	cfg := testConfig(t, srv.BaseURL())
	ctx := context.Background()

	first := newTestApp(t, cfg)
	if _, err := first.Client().Login(ctx, api.LoginRequest{Email: "a@example.com", Password: "pw"}, true); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	srv.ExpireAccessTokens()

	second := newTestApp(t, cfg)
	user, err := second.Client().Me(ctx)
	if err != nil {
		t.Fatalf("Me() in second app error = %v", err)
	}
	if user.Email != "a@example.com" {
		t.Errorf("Me().Email = %q", user.Email)
	}
	if got := srv.RefreshCalls(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if !second.Store().Durable(ctx) {
		t.Error("refreshed token left the durable scope")
	}
}

func TestSessionScopeOverride(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "a@example.com", Password: "pw", Active: true})
	cfg := testConfig(t, srv.BaseURL())
	ctx := context.Background()

	shell := newTestApp(t, cfg, WithSessionScope(tokenstore.NewMemoryScope()))
	if _, err := shell.Client().Login(ctx, api.LoginRequest{Email: "a@example.com", Password: "pw"}, false); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// A session login held in memory is invisible to other processes
	other := newTestApp(t, cfg)
	if other.Store().HasToken(ctx) {
		t.Error("session login leaked into a new process")
	}
}

func TestSessionExpiredNotice(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "a@example.com", Password: "pw", Active: true})
	cfg := testConfig(t, srv.BaseURL())
	ctx := context.Background()

	var notices bytes.Buffer
	a := newTestApp(t, cfg, WithNotices(&notices))
	if _, err := a.Client().Login(ctx, api.LoginRequest{Email: "a@example.com", Password: "pw"}, true); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	srv.ExpireAccessTokens()
	srv.RevokeRefreshTokens()

	_, err := a.Client().ListKeywords(ctx)
	if !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("ListKeywords() error = %v, want ErrSessionExpired", err)
	}
	if !strings.Contains(notices.String(), "hotdeal login") {
		t.Errorf("notice = %q, want login hint", notices.String())
	}
	if a.Store().HasToken(ctx) {
		t.Error("HasToken() = true after expiry")
	}
	if _, statErr := os.Stat(cfg.Cookies.File); !errors.Is(statErr, fs.ErrNotExist) {
		t.Errorf("cookie file still present after expiry: %v", statErr)
	}
}

func TestNewWithRedisDurableScope(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := apitest.New(t)
	srv.AddUser(apitest.User{Email: "a@example.com", Password: "pw", Active: true})

	cfg := testConfig(t, srv.BaseURL())
	cfg.Storage.Durable = StorageTypeRedis
	cfg.Storage.Redis = RedisConfig{Addr: mr.Addr(), Key: "hotdeal:token:test"}
	ctx := context.Background()

	a := newTestApp(t, cfg)
	if _, err := a.Client().Login(ctx, api.LoginRequest{Email: "a@example.com", Password: "pw"}, true); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if got := mr.HGet("hotdeal:token:test", "access_token"); got == "" {
		t.Error("access token not written to redis")
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, "")
	cfg.Storage.Durable = "env"
	if _, err := New(cfg); err == nil {
		t.Error("New() with invalid config succeeded, want error")
	}
}
