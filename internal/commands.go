package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/nightingale/internal/activity"
	"github.com/starford/nightingale/internal/mcpserver"
	"github.com/starford/nightingale/internal/migrate"
)

// MigrateOptions controls RunMigrate.
type MigrateOptions struct {
	// Input, when set, is a legacy file converted into the configured storage.
	// Otherwise the configured document is converted in place.
	Input  string
	DryRun bool
	// NoBackup skips copying the replaced document to <path>.bak.
	NoBackup bool
}

// RunMigrate converts a legacy document to the current format and prints a
// JSON summary of the conversion.
func RunMigrate(ctx context.Context, mo MigrateOptions, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	p, err := openProvider(app.config.Storage)
	if err != nil {
		return err
	}
	defer p.Close()

	ro := migrate.Options{DryRun: mo.DryRun}
	if mo.Input != "" {
		if ro.Source, err = os.ReadFile(mo.Input); err != nil {
			return fmt.Errorf("read %s: %w", mo.Input, err)
		}
	}
	if !mo.NoBackup {
		ro.BackupPath = app.config.Storage.Path + ".bak"
	}

	res, err := migrate.Run(ctx, p, migrate.NewConverter(time.Now(), nil), ro, logger)
	if err != nil {
		return err
	}
	return printJSON(app, res)
}

// RunReport prints the activity report of the UTC day of date.
func RunReport(ctx context.Context, date time.Time, format activity.Format, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	svc, err := openServices(app.config, logger, nil, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	out, err := svc.activity.ExportDailyReport(ctx, date, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, out)
	return err
}

// RunImportAlerts imports the alert CSV at path and prints the counts.
func RunImportAlerts(ctx context.Context, path string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	svc, err := openServices(app.config, logger, nil, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.alerts.ImportAlertsCSV(ctx, string(data))
	if err != nil {
		return err
	}
	logger.Info("alerts imported", slog.String("file", path))
	return printJSON(app, res)
}

// RunMCP serves the MCP tools over stdin/stdout until the client disconnects.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config)

	svc, err := openServices(app.config, logger, nil, nil)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := mcpserver.New(mcpserver.Services{
		Cases:    svc.cases,
		Notes:    svc.notes,
		Alerts:   svc.alerts,
		Activity: svc.activity,
	}, app.version)
	return srv.ServeStdio()
}

func printJSON(app *application, v any) error {
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
