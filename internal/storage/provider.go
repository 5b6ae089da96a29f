// Package storage defines the byte-level backends that hold the case document.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrStale is returned by Write when the persisted document changed since the
// provider last read or wrote it. The caller must re-read before writing again.
var ErrStale = errors.New("storage: stale state")

// Provider stores exactly one document as opaque bytes.
//
// Read returns an error matching fs.ErrNotExist when no document has been
// written yet. Each successful Read or Write records the revision the provider
// has seen; a Write against a different persisted revision fails with ErrStale.
type Provider interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Storage drivers accepted by Open.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

// Open constructs the provider for driver rooted at path.
func Open(driver, path string) (Provider, error) {
	switch driver {
	case DriverFS, "":
		return NewFS(path)
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverBolt:
		return OpenBolt(path)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}
