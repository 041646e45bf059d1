// Package cookiestore provides an http.CookieJar that persists the API host's cookies,
// so the httponly refresh cookie issued at login survives between command invocations.
package cookiestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Jar wraps a cookiejar.Jar and mirrors cookies for one host to a JSON file.
// An empty file path keeps cookies in memory only.
type Jar struct {
	filePath string
	host     *url.URL

	mu      sync.Mutex
	jar     *cookiejar.Jar
	cookies map[string]*http.Cookie
}

// Compile-time check that Jar implements http.CookieJar
var _ http.CookieJar = (*Jar)(nil)

// New creates a Jar for the API base URL, loading previously persisted cookies from filePath.
func New(filePath string, baseURL string) (*Jar, error) {
	host, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	j := &Jar{
		filePath: filePath,
		host:     &url.URL{Scheme: host.Scheme, Host: host.Host, Path: "/"},
		cookies:  make(map[string]*http.Cookie),
	}
	if err := j.reset(); err != nil {
		return nil, err
	}

	if filePath == "" {
		return j, nil
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return nil, err
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	return j, nil
}

// SetCookies implements http.CookieJar. Cookies for the API host are persisted.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
	if u.Host != j.host.Host {
		return
	}

	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(j.cookies, c.Name)
			continue
		}
		cp := *c
		if cp.MaxAge > 0 {
			// MaxAge is relative to receipt, store it as an absolute expiry
			cp.Expires = time.Now().Add(time.Duration(cp.MaxAge) * time.Second)
			cp.MaxAge = 0
		}
		j.cookies[c.Name] = &cp
	}

	if err := j.persist(); err != nil {
		slog.Warn("failed to persist cookies", "error", err)
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops all cookies, in memory and on disk.
func (j *Jar) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	clear(j.cookies)
	if err := j.reset(); err != nil {
		return err
	}
	if j.filePath == "" {
		return nil
	}
	if err := os.Remove(j.filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	slog.DebugContext(ctx, "cookies cleared", "file", j.filePath)
	return nil
}

func (j *Jar) reset() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return fmt.Errorf("creating cookie jar: %w", err)
	}
	j.jar = jar
	return nil
}

// load restores unexpired cookies from disk into the underlying jar.
func (j *Jar) load() error {
	data, err := os.ReadFile(j.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var stored []*http.Cookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decoding cookie file %s: %w", j.filePath, err)
	}

	now := time.Now()
	live := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		j.cookies[c.Name] = c
		live = append(live, c)
	}
	j.jar.SetCookies(j.host, live)
	return nil
}

// persist writes the tracked cookies atomically with 0600 permissions.
func (j *Jar) persist() error {
	if j.filePath == "" {
		return nil
	}

	list := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		list = append(list, c)
	}
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(j.filePath), "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tempName, j.filePath); err != nil {
		return err
	}
	return os.Chmod(j.filePath, 0600)
}
