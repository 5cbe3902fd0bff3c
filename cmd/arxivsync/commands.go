package main

import (
	"fmt"

	"github.com/semmidev/arxivsync/internal/app"
	"github.com/semmidev/arxivsync/internal/config"
	"github.com/urfave/cli/v2"
)

func newCLI() *cli.App {
	return &cli.App{
		Name:  "arxivsync",
		Usage: "Mirror arXiv papers into an S3 bucket and prune them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"ARXIVSYNC_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override app.log_level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "Print the papers in the configured feed window",
				Flags:  feedFlags(),
				Action: runList,
			},
			{
				Name:  "sync",
				Usage: "Upload papers from the feed that are not yet stored",
				Flags: append(feedFlags(),
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Papers processed in parallel",
					},
				),
				Action: runSync,
			},
			{
				Name:  "purge",
				Usage: "Delete stored objects matching a prefix, age and key pattern",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "prefix", Usage: "Only consider keys under this prefix"},
					&cli.IntFlag{Name: "older-than-days", Usage: "Only delete objects last modified more than N days ago"},
					&cli.StringFlag{Name: "pattern", Usage: "Only delete keys matching this regular expression"},
					&cli.IntFlag{Name: "page-size", Usage: "Keys listed per page (max 1000)"},
					&cli.IntFlag{Name: "batch-size", Usage: "Keys per delete request (max 1000)"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Report matches without deleting"},
				},
				Action: runPurge,
			},
			{
				Name:   "serve",
				Usage:  "Run sync and purge on their cron schedules and expose /metrics",
				Action: runServe,
			},
		},
	}
}

func feedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "query", Usage: "arXiv search_query expression"},
		&cli.IntFlag{Name: "max-results", Usage: "Entries requested from the feed"},
		&cli.BoolFlag{Name: "last-24h", Usage: "Only keep entries published in the last 24 hours"},
	}
}

// loadConfig reads configuration, applies the command's flag overrides and validates
// the sections that command uses.
func loadConfig(c *cli.Context, cmd config.Command) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyOverrides(c, cfg)
	if err := cfg.ValidateFor(cmd); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadApp(c *cli.Context, cmd config.Command) (*app.App, error) {
	cfg, err := loadConfig(c, cmd)
	if err != nil {
		return nil, err
	}

	application, err := app.New(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize app: %w", err)
	}
	return application, nil
}

func applyOverrides(c *cli.Context, cfg *config.Config) {
	if c.IsSet("log-level") {
		cfg.App.LogLevel = c.String("log-level")
	}

	if c.IsSet("query") {
		cfg.Feed.SearchQuery = c.String("query")
	}
	if c.IsSet("max-results") {
		cfg.Feed.MaxResults = c.Int("max-results")
	}
	if c.IsSet("last-24h") {
		cfg.Feed.FilterLast24Hours = c.Bool("last-24h")
	}
	if c.IsSet("concurrency") {
		cfg.Sync.Concurrency = c.Int("concurrency")
	}

	if c.IsSet("prefix") {
		cfg.Purge.Prefix = c.String("prefix")
	}
	if c.IsSet("older-than-days") {
		cfg.Purge.OlderThanDays = c.Int("older-than-days")
	}
	if c.IsSet("pattern") {
		cfg.Purge.Pattern = c.String("pattern")
	}
	if c.IsSet("page-size") {
		cfg.Purge.PageSize = c.Int("page-size")
	}
	if c.IsSet("batch-size") {
		cfg.Purge.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("dry-run") {
		cfg.Purge.DryRun = c.Bool("dry-run")
	}
}

func runList(c *cli.Context) error {
	cfg, err := loadConfig(c, config.CommandList)
	if err != nil {
		return err
	}
	application, err := app.NewListing(cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	_, err = application.RunList(c.Context, c.App.Writer)
	return err
}

// runSync exits non-zero only when the feed cannot be fetched; per-paper failures are
// logged and reported.
func runSync(c *cli.Context) error {
	application, err := loadApp(c, config.CommandSync)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	_, err = application.RunSync(c.Context)
	return err
}

func runPurge(c *cli.Context) error {
	application, err := loadApp(c, config.CommandPurge)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	_, err = application.RunPurge(c.Context)
	return err
}

func runServe(c *cli.Context) error {
	application, err := loadApp(c, config.CommandServe)
	if err != nil {
		return err
	}
	defer application.Shutdown()

	return application.Serve(c.Context)
}
