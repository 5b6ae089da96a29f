package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/nightingale/internal"
	"github.com/starford/nightingale/internal/activity"
	pkgconfig "github.com/starford/nightingale/pkg/config"
)

var version = "dev"

func options(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("data"); p != "" {
		cfg.Storage.Path = p
	}

	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func migrateCmd(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMigrate(ctx, internal.MigrateOptions{
		Input:    cmd.String("in"),
		DryRun:   cmd.Bool("dry-run"),
		NoBackup: cmd.Bool("no-backup"),
	}, opts...)
}

func report(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	date := time.Now().UTC()
	if raw := cmd.String("date"); raw != "" {
		if date, err = time.Parse(time.DateOnly, raw); err != nil {
			return fmt.Errorf("--date %q: want YYYY-MM-DD", raw)
		}
	}
	format, err := activity.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	return internal.RunReport(ctx, date, format, opts...)
}

func importAlerts(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunImportAlerts(ctx, cmd.String("file"), opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	opts, err := options(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, opts...)
}

func main() {
	cmd := &cli.Command{
		Name:    "nightingale",
		Usage:   "Local-first case management with activity reports and alert reconciliation",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "data",
				Usage:   "Override storage.path from the config file",
				Sources: cli.EnvVars("NIGHTINGALE_DATA"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Convert a legacy data file to the current format",
				Action: migrateCmd,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "in", Usage: "Legacy file to import instead of converting the configured document in place"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Report what would be converted without writing"},
					&cli.BoolFlag{Name: "no-backup", Usage: "Do not copy the replaced document to <path>.bak"},
				},
			},
			{
				Name:   "report",
				Usage:  "Print the activity report of one day",
				Action: report,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "Day as YYYY-MM-DD (UTC), default today"},
					&cli.StringFlag{Name: "format", Value: "txt", Usage: "json, csv or txt"},
				},
			},
			{
				Name:   "import-alerts",
				Usage:  "Import an alert CSV export",
				Action: importAlerts,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "CSV file"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
