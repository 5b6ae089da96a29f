// Package testutil provides shared test helpers for stores, clocks and ids.
package testutil

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/store"
)

// Epoch is the default starting time of a test Clock.
var Epoch = time.Date(2025, time.October, 5, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock stopped at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// IDs returns a generator producing prefix-1, prefix-2, ...
func IDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// MemoryStore returns a store over an empty in-memory provider.
func MemoryStore(t testing.TB, clock *Clock) (*store.Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	s := store.New(mem, store.WithClock(clock.Now))
	t.Cleanup(func() { _ = s.Close() })
	return s, mem
}

// FileStore returns a store over a JSON file in a temporary directory.
func FileStore(t testing.TB, clock *Clock) (*store.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.json")
	p, err := storage.NewFS(path)
	if err != nil {
		t.Fatal(err)
	}
	s := store.New(p, store.WithClock(clock.Now))
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

// Seed writes doc through s and fails the test on error.
func Seed(t testing.TB, s *store.Store, doc *models.NormalizedFileData) *models.NormalizedFileData {
	t.Helper()
	out, err := s.Write(t.Context(), doc)
	if err != nil {
		t.Fatalf("seed document: %v", err)
	}
	return out
}

// Case returns a minimal case for fixtures.
func Case(id, name, mcn, status string) models.Case {
	return models.Case{
		ID:        id,
		Name:      name,
		MCN:       mcn,
		Status:    status,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
		Person:    models.Person{Name: name},
	}
}
