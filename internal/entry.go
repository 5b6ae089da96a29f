// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/nightingale/internal/api"
	"github.com/starford/nightingale/internal/metrics"
	"github.com/starford/nightingale/internal/models"
	"github.com/starford/nightingale/internal/sse"
	"github.com/starford/nightingale/internal/storage"
	"github.com/starford/nightingale/internal/store"
	"github.com/starford/nightingale/internal/watcher"
)

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("storage_path", cfg.Storage.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.ReportThrottle)
	defer broker.Close()

	svc, err := openServices(cfg, logger, m, broker)
	if err != nil {
		return fmt.Errorf("init services: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("storage close failed", slog.String("error", err.Error()))
		}
	}()

	// A legacy document keeps the server up so the error reaches the UI.
	_ = svc.checkDocument(ctx, logger)

	unsubscribe := svc.store.Subscribe(func(doc *models.NormalizedFileData, reason store.Reason) {
		broker.PublishDocument(summarize(doc, reason))
	})
	defer unsubscribe()

	apiRouter := api.NewRouter(api.Services{
		Cases:      svc.cases,
		Notes:      svc.notes,
		Financials: svc.financials,
		Alerts:     svc.alerts,
		Resolver:   svc.resolver,
		Activity:   svc.activity,
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := svc.store.Read(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, `{"status":"unavailable","version":%q}`, app.version)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","version":%q}`, app.version)
	})

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload on edits made to the data file by other programs.
	if fsp, ok := svc.provider.(*storage.FS); ok && cfg.Watch.Enabled {
		g.Go(func() error {
			return watcher.Watch(gCtx, fsp.Path(), cfg.Watch.Debounce, fsp, svc.store, logger)
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Ends open event streams so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		drainQueue(svc, cfg.Queue.DrainTimeout, logger)

		// Stops the watcher when the shutdown came from a signal.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

// drainQueue waits up to timeout for queued alert writes to finish.
func drainQueue(svc *services, timeout time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		svc.queue.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("alert write queue did not drain", slog.Duration("timeout", timeout))
	}
}
