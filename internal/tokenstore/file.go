package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileScope provides atomic file-based record storage with secure permissions.
// Writes use temp file + rename for crash safety.
type FileScope struct {
	filePath string
}

// Compile-time check to ensure FileScope implements Scope
var _ Scope = (*FileScope)(nil)

// NewFileScope creates a FileScope for the given path, creating parent directories
// with 0700 permissions if they don't exist.
func NewFileScope(filePath string) (*FileScope, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileScope{
		filePath: filePath,
	}, nil
}

// Path returns the file backing this scope.
func (f *FileScope) Path() string {
	return f.filePath
}

// Load returns the stored record. Returns ErrNotFound if the file doesn't exist
// or holds no access token, and an error if it has insecure permissions.
func (f *FileScope) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	// Check file permissions before reading
	info, err := os.Stat(f.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if info.Mode().Perm() != 0600 {
		return Record{}, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding token file %s: %w", f.filePath, err)
	}
	if rec.Empty() {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Store atomically saves the record using temp file + rename for crash safety.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileScope) Store(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding token record: %w", err)
	}

	return writeFileAtomic(ctx, f.filePath, data)
}

// Delete removes the token file. A missing file is not an error.
func (f *FileScope) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(f.filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the target directory and renames it into place.
func writeFileAtomic(ctx context.Context, path string, data []byte) error {
	// Create secure temp file in same directory for atomic rename
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(data); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, path); err != nil {
		return err
	}

	// Set secure file permissions (0600 = rw-------)
	return os.Chmod(path, 0600)
}
