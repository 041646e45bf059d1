package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileScopeStoreAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	scope, err := NewFileScope(path)
	if err != nil {
		t.Fatalf("NewFileScope() error = %v", err)
	}

	want := Record{AccessToken: "abc", UserID: "u1"}
	if err := scope.Store(ctx, want); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %04o, want 0600", perm)
	}

	got, err := scope.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp file leaked?)", len(entries))
	}
}

func TestFileScopeLoadMissing(t *testing.T) {
	scope, err := NewFileScope(filepath.Join(t.TempDir(), "token.json"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := scope.Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
}

func TestFileScopeRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte(`{"access_token":"abc","user_id":"u1"}`), 0644); err != nil {
		t.Fatal(err)
	}

	scope, err := NewFileScope(path)
	if err != nil {
		t.Fatal(err)
	}

	_, err = scope.Load(context.Background())
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want permission error", err)
	}
}

func TestFileScopeDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	scope, err := NewFileScope(filepath.Join(t.TempDir(), "token.json"))
	if err != nil {
		t.Fatal(err)
	}

	if err := scope.Store(ctx, Record{AccessToken: "abc"}); err != nil {
		t.Fatal(err)
	}
	for i := range 2 {
		if err := scope.Delete(ctx); err != nil {
			t.Errorf("Delete() #%d error = %v", i+1, err)
		}
	}
	if _, err := scope.Load(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestFileScopeHonorsCancelledContext(t *testing.T) {
	scope, err := NewFileScope(filepath.Join(t.TempDir(), "token.json"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := scope.Store(ctx, Record{AccessToken: "abc"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Store() error = %v, want context.Canceled", err)
	}
}

func TestNewFileScopeEmptyPath(t *testing.T) {
	if _, err := NewFileScope(""); err == nil {
		t.Error("NewFileScope(\"\") succeeded, want error")
	}
}
