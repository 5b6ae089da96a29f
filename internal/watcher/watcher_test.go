package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/store"
)

type recorder struct {
	mu      sync.Mutex
	reasons []store.Reason
	cases   int
}

func (r *recorder) observe(doc *models.NormalizedFileData, reason store.Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
	r.cases = len(doc.Cases)
}

func (r *recorder) external() (count, cases int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reason := range r.reasons {
		if reason == store.ReasonExternal {
			count++
		}
	}
	return count, r.cases
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func watchEnv(t *testing.T) (string, *store.Store, *recorder) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cases.json")
	p, err := storage.NewFS(path)
	if err != nil {
		t.Fatal(err)
	}
	s := store.New(p)
	if _, err := s.Write(context.Background(), store.Empty()); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	cancelSub := s.Subscribe(rec.observe)
	t.Cleanup(cancelSub)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Watch(ctx, path, 50*time.Millisecond, p, s, logger)
	time.Sleep(100 * time.Millisecond)
	return path, s, rec
}

func TestWatch_ExternalEditResyncs(t *testing.T) {
	path, _, rec := watchEnv(t)

	edited := store.Empty()
	edited.Cases = append(edited.Cases, models.Case{ID: "x", Name: "From elsewhere", Status: "Pending"})
	raw, err := store.Encode(edited)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		n, cases := rec.external()
		return n >= 1 && cases == 1
	}, "external edit was not reloaded")
}

func TestWatch_OwnWriteIgnored(t *testing.T) {
	_, s, rec := watchEnv(t)

	doc, err := s.Read(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	doc.Cases = append(doc.Cases, models.Case{ID: "mine", Name: "Mine", Status: "Pending"})
	if _, err := s.Write(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	time.Sleep(400 * time.Millisecond)
	if n, _ := rec.external(); n != 0 {
		t.Fatalf("own write triggered %d external reloads", n)
	}
}
