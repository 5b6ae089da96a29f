// Package watcher reloads the case document when another process edits it.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when Watch is given a non-positive debounce.
const DefaultDebounce = 250 * time.Millisecond

// ChangeDetector reports whether the file differs from what the process last
// read or wrote.
type ChangeDetector interface {
	ChangedOnDisk() (bool, error)
}

// Resyncer reloads the document and notifies its observers.
type Resyncer interface {
	Resync(ctx context.Context) error
}

// Watch watches the directory holding path and calls target.Resync after a
// burst of events on the file settles for debounce. Events caused by the
// process's own writes are ignored. It returns when ctx is done.
//
// The directory is watched rather than the file because atomic writes
// replace the file, which drops a watch on the old inode.
func Watch(ctx context.Context, path string, debounce time.Duration, detector ChangeDetector, target Resyncer, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
			return
		}
		timer.Reset(debounce)
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			changed, err := detector.ChangedOnDisk()
			if err != nil {
				logger.Warn("watcher: compare failed", slog.String("error", err.Error()))
				continue
			}
			if !changed {
				continue
			}
			if err := target.Resync(ctx); err != nil {
				logger.Warn("watcher: resync failed", slog.String("error", err.Error()))
				continue
			}
			logger.Info("watcher: external change loaded", slog.String("path", abs))

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
