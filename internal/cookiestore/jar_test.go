package cookiestore

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestJarPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	base := "http://api.example.test/api"
	refreshURL := mustParse(t, "http://api.example.test/api/user/v1/token/refresh")

	first, err := New(path, base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	first.SetCookies(refreshURL, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/", MaxAge: 3600, HttpOnly: true}})

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("cookie file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("cookie file permissions = %04o, want 0600", perm)
	}

	second, err := New(path, base)
	if err != nil {
		t.Fatalf("New() reload error = %v", err)
	}
	got := second.Cookies(refreshURL)
	if len(got) != 1 || got[0].Name != "refresh_token" || got[0].Value != "r1" {
		t.Errorf("Cookies() = %v, want refresh_token=r1", got)
	}
}

func TestJarIgnoresOtherHostsOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	jar, err := New(path, "http://api.example.test/api")
	if err != nil {
		t.Fatal(err)
	}

	jar.SetCookies(mustParse(t, "http://tracker.example.org/"), []*http.Cookie{{Name: "track", Value: "1"}})

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("cookie file exists after foreign cookie, stat error = %v", err)
	}
}

func TestJarDeletionCookieRemovesEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	base := "http://api.example.test/api"
	u := mustParse(t, "http://api.example.test/api/user/v1/logout")

	jar, err := New(path, base)
	if err != nil {
		t.Fatal(err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "", Path: "/", MaxAge: -1}})

	reloaded, err := New(path, base)
	if err != nil {
		t.Fatal(err)
	}
	if got := reloaded.Cookies(u); len(got) != 0 {
		t.Errorf("Cookies() after deletion = %v, want none", got)
	}
}

func TestJarClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	base := "http://api.example.test/api"
	u := mustParse(t, "http://api.example.test/api/")

	jar, err := New(path, base)
	if err != nil {
		t.Fatal(err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})

	if err := jar.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := jar.Cookies(u); len(got) != 0 {
		t.Errorf("Cookies() after Clear() = %v, want none", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("cookie file still present after Clear(), stat error = %v", err)
	}
	if err := jar.Clear(context.Background()); err != nil {
		t.Errorf("second Clear() error = %v", err)
	}
}

func TestJarInMemory(t *testing.T) {
	jar, err := New("", "http://api.example.test/api")
	if err != nil {
		t.Fatal(err)
	}
	u := mustParse(t, "http://api.example.test/api/")
	jar.SetCookies(u, []*http.Cookie{{Name: "refresh_token", Value: "r1", Path: "/"}})

	if got := jar.Cookies(u); len(got) != 1 {
		t.Errorf("Cookies() = %v, want one cookie", got)
	}
}
