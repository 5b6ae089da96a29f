package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	boltBucket      = []byte("document")
	boltBodyKey     = []byte("body")
	boltRevisionKey = []byte("revision")
)

// Bolt implements Provider on a bbolt file with one bucket holding the
// document body and a monotonically increasing revision.
type Bolt struct {
	db *bolt.DB

	mu   sync.Mutex
	seen uint64
}

// OpenBolt initializes the bbolt file and ensures the bucket exists.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("storage: open bolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: create bucket: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Read returns a copy of the stored document body.
func (b *Bolt) Read(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var (
		body     []byte
		revision uint64
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		raw := bucket.Get(boltBodyKey)
		if raw == nil {
			return fs.ErrNotExist
		}
		// Values are only valid for the life of the transaction.
		body = append([]byte(nil), raw...)
		revision = decodeRevision(bucket.Get(boltRevisionKey))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: bolt read: %w", err)
	}
	b.seen = revision
	return body, nil
}

// Write stores data if the persisted revision is still the one last seen.
func (b *Bolt) Write(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var next uint64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		current := decodeRevision(bucket.Get(boltRevisionKey))
		if b.seen != 0 && current != b.seen {
			return ErrStale
		}
		next = current + 1
		if err := bucket.Put(boltBodyKey, data); err != nil {
			return err
		}
		return bucket.Put(boltRevisionKey, encodeRevision(next))
	})
	if errors.Is(err, ErrStale) {
		return err
	}
	if err != nil {
		return fmt.Errorf("storage: bolt write: %w", err)
	}
	b.seen = next
	return nil
}

// Close closes the bolt database.
func (b *Bolt) Close() error {
	return b.db.Close()
}

func encodeRevision(rev uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, rev)
	return buf
}

func decodeRevision(raw []byte) uint64 {
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}
