package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/alerts"
	"github.com/starford/nightingale/internal/caseservice"
	"github.com/starford/nightingale/internal/financialservice"
	"github.com/starford/nightingale/internal/metrics"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/noteservice"
	"github.com/starford/nightingale/internal/sse"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/store"
	"github.com/starford/nightingale/internal/writequeue"
)

// newApplication applies opts and checks that a config was given.
func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", out: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger installs the structured JSON logger as the default.
func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openProvider opens the configured storage backend, creating its directory.
func openProvider(cfg StorageConfig) (storage.Provider, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	p, err := storage.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Driver, err)
	}
	return p, nil
}

// services is the wired domain layer shared by every command.
type services struct {
	provider   storage.Provider
	store      *store.Store
	queue      *writequeue.Queue
	cases      *caseservice.Service
	notes      *noteservice.Service
	financials *financialservice.Service
	alerts     *alerts.Service
	resolver   *alerts.Resolver
	activity   *activity.Service
}

// openServices opens storage and builds the services on top of it.
// m and broker may be nil.
func openServices(cfg *Config, logger *slog.Logger, m *metrics.Metrics, broker *sse.Broker) (*services, error) {
	p, err := openProvider(cfg.Storage)
	if err != nil {
		return nil, err
	}

	st := store.New(p, store.WithLogger(logger), store.WithMetrics(m))

	queue := writequeue.New(
		writequeue.WithLogger(logger),
		writequeue.WithMetrics(m),
		writequeue.WithCallbacks(nil, func(key string, err error) {
			if broker != nil {
				broker.Publish(sse.Event{Type: "queue.failed", Data: map[string]string{
					"alertId": key,
					"error":   err.Error(),
				}})
			}
		}),
	)

	cases := caseservice.NewService(st, caseservice.WithLogger(logger))
	notes := noteservice.NewService(st, nil, nil)
	alertSvc := alerts.NewService(st, cases, alerts.WithLogger(logger), alerts.WithMetrics(m))

	return &services{
		provider:   p,
		store:      st,
		queue:      queue,
		cases:      cases,
		notes:      notes,
		financials: financialservice.NewService(st, nil, nil),
		alerts:     alertSvc,
		resolver:   alerts.NewResolver(alertSvc, notes, queue),
		activity:   activity.NewService(st, logger),
	}, nil
}

// checkDocument reads the document once so a legacy file is reported at
// startup instead of on the first request.
func (s *services) checkDocument(ctx context.Context, logger *slog.Logger) error {
	if _, err := s.store.Read(ctx); err != nil {
		logger.Error("case data could not be loaded", slog.String("error", err.Error()))
		return err
	}
	return nil
}

func (s *services) Close() error {
	return s.store.Close()
}

// summarize condenses a broadcast document for event subscribers.
func summarize(doc *models.NormalizedFileData, reason store.Reason) sse.DocumentSummary {
	open := 0
	for _, a := range doc.Alerts {
		if a.Status != models.AlertStatusResolved {
			open++
		}
	}
	return sse.DocumentSummary{
		Reason:          string(reason),
		ExportedAt:      doc.ExportedAt,
		TotalCases:      doc.TotalCases,
		OpenAlerts:      open,
		ActivityEntries: len(doc.ActivityLog),
	}
}
