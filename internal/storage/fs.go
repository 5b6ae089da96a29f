package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FS implements Provider backed by a single JSON file on the local file system.
// The revision of the document is the SHA-256 checksum of its bytes.
type FS struct {
	path string // absolute path to the data file

	mu   sync.Mutex
	seen string // checksum of the last bytes read or written, "" if none
}

// NewFS creates a new FS provider for the data file at path.
// The parent directory is created if needed; the file itself may not exist yet.
func NewFS(path string) (*FS, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return nil, fmt.Errorf("storage: data path is a directory: %s", abs)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	return &FS{path: abs}, nil
}

// Path returns the absolute path of the data file.
func (f *FS) Path() string {
	return f.path
}

// Read returns the raw bytes of the data file.
func (f *FS) Read(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.seen = ""
		}
		return nil, fmt.Errorf("storage: read %s: %w", f.path, err)
	}
	f.seen = checksum(data)
	return data, nil
}

// Write atomically replaces the data file: tmp file → fsync → rename.
func (f *FS) Write(_ context.Context, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := os.ReadFile(f.path)
	switch {
	case err == nil:
		if f.seen != "" && checksum(current) != f.seen {
			return ErrStale
		}
	case errors.Is(err, fs.ErrNotExist):
		if f.seen != "" {
			// Removed behind our back.
			return ErrStale
		}
	default:
		return fmt.Errorf("storage: read before write: %w", err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".nightingale-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	f.seen = checksum(content)
	return nil
}

// Close is a no-op for the file provider.
func (f *FS) Close() error {
	return nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ChangedOnDisk reports whether the data file differs from the bytes this
// provider last read or wrote. It is used to ignore watcher events caused by
// our own writes.
func (f *FS) ChangedOnDisk() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return f.seen != "", nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: read %s: %w", f.path, err)
	}
	return checksum(data) != f.seen, nil
}
