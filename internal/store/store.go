// Package store is the read-modify-write transaction primitive over the case
// document. It reads the whole document, writes it back whole, and tells
// observers what the canonical state is after every attempt.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/apperr"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/taxonomy"
)

// Reason says why observers are being handed a document.
type Reason string

// Broadcast reasons.
const (
	ReasonWrite    Reason = "write"
	ReasonRollback Reason = "rollback"
	ReasonExternal Reason = "external"
)

var errEncode = errors.New("store: encode document")

// Observer receives the canonical document. The document is shared between
// observers and must not be modified.
type Observer func(doc *models.NormalizedFileData, reason Reason)

// Metrics records write outcomes. *metrics.Metrics satisfies it.
type Metrics interface {
	StoreWrite(outcome string, elapsed time.Duration)
}

// Store wraps a storage.Provider.
type Store struct {
	provider storage.Provider
	logger   *slog.Logger
	now      func() time.Time
	metrics  Metrics

	mu        sync.Mutex
	lastGood  *models.NormalizedFileData
	observers map[int]Observer
	nextObs   int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for write failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the clock used to stamp exported_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics records write outcomes.
func WithMetrics(m Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// New returns a Store over p.
func New(p storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider:  p,
		logger:    slog.Default(),
		now:       time.Now,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Empty returns the document used when nothing has been persisted yet.
func Empty() *models.NormalizedFileData {
	doc := &models.NormalizedFileData{
		Version:        models.CurrentVersion,
		CategoryConfig: taxonomy.DefaultConfig(),
	}
	doc.EnsureCollections()
	return doc
}

// Read loads the whole document. The caller owns the result.
func (s *Store) Read(ctx context.Context) (*models.NormalizedFileData, error) {
	data, err := s.provider.Read(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Empty(), nil
		}
		serr := classify(err)
		s.logger.Error("document read failed",
			slog.String("kind", serr.Kind.Error()),
			slog.String("error", err.Error()))
		return nil, serr
	}

	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	s.setLastGood(doc)
	return doc, nil
}

// Decode parses current-format document bytes. Any other shape yields an
// *apperr.LegacyFormatError.
func Decode(data []byte) (*models.NormalizedFileData, error) {
	shape, version, err := DetectShape(data)
	if err != nil {
		return nil, err
	}
	switch shape {
	case ShapeEmpty:
		return Empty(), nil
	case ShapeCurrent:
	default:
		return nil, &apperr.LegacyFormatError{Shape: string(shape), Version: version}
	}

	var doc models.NormalizedFileData
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("store: decode document: %w", err)
	}
	doc.EnsureCollections()
	doc.CategoryConfig = taxonomy.Normalize(doc.CategoryConfig)
	return &doc, nil
}

// Write persists doc as the new canonical document and returns what was
// written. doc itself is not modified.
//
// The category taxonomy is reconciled against the live data, total_cases and
// exported_at are recomputed and the activity log is sorted newest first. On
// failure observers are re-sent the last document known to be on disk.
func (s *Store) Write(ctx context.Context, doc *models.NormalizedFileData) (*models.NormalizedFileData, error) {
	start := time.Now()
	previous := s.snapshot()

	next := doc.Clone()
	next.EnsureCollections()
	next.Version = models.CurrentVersion
	next.CategoryConfig = taxonomy.Reconcile(next.CategoryConfig, taxonomy.Collect(next))
	next.TotalCases = len(next.Cases)
	next.ExportedAt = s.now().UTC()
	activity.Sort(next.ActivityLog)

	data, err := Encode(next)
	if err == nil {
		err = s.provider.Write(ctx, data)
	}
	if err != nil {
		serr := classify(err)
		s.logger.Error("document write failed",
			slog.String("kind", serr.Kind.Error()),
			slog.String("error", err.Error()))
		s.record("error", start)
		if previous != nil {
			s.broadcast(previous, ReasonRollback)
		}
		return nil, serr
	}

	s.record("ok", start)
	s.setLastGood(next)
	s.broadcast(next.Clone(), ReasonWrite)
	return next, nil
}

// Encode renders doc as indented JSON.
func Encode(doc *models.NormalizedFileData) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errEncode, err)
	}
	return data, nil
}

// Resync re-reads the document after an external change and hands it to
// observers.
func (s *Store) Resync(ctx context.Context) error {
	doc, err := s.Read(ctx)
	if err != nil {
		return err
	}
	s.broadcast(doc, ReasonExternal)
	return nil
}

// Subscribe registers o and returns a function that removes it.
func (s *Store) Subscribe(o Observer) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// Close closes the underlying provider.
func (s *Store) Close() error {
	return s.provider.Close()
}

func (s *Store) broadcast(doc *models.NormalizedFileData, reason Reason) {
	s.mu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mu.Unlock()

	for _, o := range observers {
		o(doc, reason)
	}
}

func (s *Store) snapshot() *models.NormalizedFileData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastGood.Clone()
}

func (s *Store) setLastGood(doc *models.NormalizedFileData) {
	c := doc.Clone()
	s.mu.Lock()
	s.lastGood = c
	s.mu.Unlock()
}

func (s *Store) record(outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.StoreWrite(outcome, time.Since(start))
	}
}

// classify rewrites a backend error into the caller-facing taxonomy.
func classify(err error) *apperr.StoreError {
	switch {
	case errors.Is(err, errEncode):
		return &apperr.StoreError{
			Kind:    apperr.ErrUnknownIO,
			Message: "the case data could not be saved because it is malformed",
			Err:     err,
		}
	case errors.Is(err, storage.ErrStale):
		return &apperr.StoreError{
			Kind:    apperr.ErrConcurrentModification,
			Message: "the case data changed since it was loaded; reload and try again",
			Err:     err,
		}
	case errors.Is(err, fs.ErrPermission):
		return &apperr.StoreError{
			Kind:    apperr.ErrPermissionDenied,
			Message: "permission to the case data file was denied",
			Err:     err,
		}
	default:
		return &apperr.StoreError{
			Kind:    apperr.ErrUnknownIO,
			Message: "the case data file could not be accessed",
			Err:     err,
		}
	}
}
