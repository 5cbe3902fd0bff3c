package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/semmidev/arxivsync/internal/adapter/arxiv"
	"github.com/semmidev/arxivsync/internal/adapter/download"
	"github.com/semmidev/arxivsync/internal/adapter/notify"
	"github.com/semmidev/arxivsync/internal/adapter/storage"
	"github.com/semmidev/arxivsync/internal/config"
	"github.com/semmidev/arxivsync/internal/domain"
	"github.com/semmidev/arxivsync/internal/infrastructure/logger"
	"github.com/semmidev/arxivsync/internal/infrastructure/metrics"
	"github.com/semmidev/arxivsync/internal/infrastructure/scheduler"
	"github.com/semmidev/arxivsync/internal/usecase"
	"golang.org/x/time/rate"
)

var errNoStore = errors.New("app was built without an object store")

type App struct {
	config    *config.Config
	logger    *logger.Logger
	store     domain.ObjectStore
	ingest    *usecase.Ingest
	purge     *usecase.Purge
	list      *usecase.List
	notifier  domain.Notifier
	metrics   *metrics.Metrics
	scheduler *scheduler.Scheduler
	server    *StatusServer
	now       func() time.Time
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize logger
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	// Initialize object store
	store, err := newStore(ctx, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	log.Infof("✓ Object store: %s", describeStore(&cfg.Store))

	// One limiter paces both feed queries and PDF downloads
	limiter := newLimiter(cfg.Feed.RequestsPerSecond)
	httpClient := &http.Client{}

	source := newSource(httpClient, &cfg.Feed, limiter)
	fetcher := download.New(httpClient, download.Options{
		MaxBytes:  cfg.Sync.MaxPayloadBytes,
		Timeout:   cfg.Sync.DownloadTimeout,
		UserAgent: cfg.Feed.UserAgent,
		Limiter:   limiter,
	})

	// Initialize use cases
	syncLog := log.Named("sync")
	syncUC := usecase.NewSync(
		store,
		usecase.NewProber(store, syncLog),
		fetcher,
		usecase.NewKeyDeriver(cfg.Store.KeyPrefix),
		syncLog,
		cfg.Sync.Concurrency,
	)
	purgeUC := usecase.NewPurge(store, log.Named("purge"), usecase.PurgeOptions{
		PageSize:  cfg.Purge.PageSize,
		BatchSize: cfg.Purge.BatchSize,
		DryRun:    cfg.Purge.DryRun,
	})

	// Initialize notifier
	var notifier domain.Notifier = notify.Nop{}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegram(&cfg.Notify.Telegram)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifier: %v", err)
		} else {
			notifier = tg
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return &App{
		config:    cfg,
		logger:    log,
		store:     store,
		ingest:    usecase.NewIngest(source, syncUC, syncLog),
		purge:     purgeUC,
		list:      usecase.NewList(source),
		notifier:  notifier,
		metrics:   m,
		scheduler: scheduler.New(log.Named("scheduler")),
		now:       time.Now,
	}, nil
}

// NewListing wires only what the list command needs: no store, notifier or scheduler.
func NewListing(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	source := newSource(&http.Client{}, &cfg.Feed, newLimiter(cfg.Feed.RequestsPerSecond))
	return &App{
		config:    cfg,
		logger:    log,
		list:      usecase.NewList(source),
		notifier:  notify.Nop{},
		scheduler: scheduler.New(log.Named("scheduler")),
		now:       time.Now,
	}, nil
}

func newSource(httpClient *http.Client, cfg *config.FeedConfig, limiter *rate.Limiter) *arxiv.Client {
	return arxiv.NewClient(httpClient, arxiv.Options{
		BaseURL:   cfg.BaseURL,
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.Timeout,
		Limiter:   limiter,
	})
}

func newStore(ctx context.Context, cfg *config.StoreConfig) (domain.ObjectStore, error) {
	switch cfg.Type {
	case config.StoreTypeS3:
		return storage.NewS3(ctx, cfg)
	case config.StoreTypeLocal:
		return storage.NewLocal(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}

func describeStore(cfg *config.StoreConfig) string {
	if cfg.Type == config.StoreTypeLocal {
		return "local " + cfg.LocalPath
	}
	return fmt.Sprintf("s3://%s (%s)", cfg.Bucket, cfg.Region)
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func (a *App) query() domain.FeedQuery {
	return domain.FeedQuery{
		SearchQuery: a.config.Feed.SearchQuery,
		MaxResults:  a.config.Feed.MaxResults,
		SortBy:      a.config.Feed.SortBy,
		SortOrder:   a.config.Feed.SortOrder,
		Last24Hours: a.config.Feed.FilterLast24Hours,
	}
}

// RunSync fetches the configured feed window and copies new papers into the store.
// The error is non-nil only when the feed itself could not be fetched.
func (a *App) RunSync(ctx context.Context) (domain.SyncReport, error) {
	if a.ingest == nil {
		return domain.SyncReport{}, errNoStore
	}
	start := a.now()
	a.logger.Infof("=== Starting sync ===")

	report, err := a.ingest.Execute(ctx, a.query())
	a.metrics.RecordSync(report, a.now().Sub(start), err)
	a.notify(ctx, syncSummary(report, err))

	if err != nil {
		a.logger.Errorf("Sync failed: %v", err)
	}
	return report, err
}

// RunPurge deletes the objects matching the configured purge filter.
func (a *App) RunPurge(ctx context.Context) (domain.PurgeReport, error) {
	if a.purge == nil {
		return domain.PurgeReport{}, errNoStore
	}
	filter, err := domain.NewDeletionFilter(
		a.config.Purge.Prefix,
		a.config.Purge.OlderThanDays,
		a.config.Purge.Pattern,
		a.now(),
	)
	if err != nil {
		return domain.PurgeReport{}, err
	}

	start := a.now()
	a.logger.Infof("=== Starting purge ===")

	report, err := a.purge.Execute(ctx, filter)
	a.metrics.RecordPurge(report, a.now().Sub(start), err)
	a.notify(ctx, purgeSummary(filter, report, err))

	return report, err
}

// RunList prints the configured feed window to w.
func (a *App) RunList(ctx context.Context, w io.Writer) (int, error) {
	return a.list.Execute(ctx, a.query(), w)
}

// Serve runs the configured schedules and the status server until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	jobs := 0
	if spec := a.config.Schedule.Sync; spec != "" {
		if err := a.scheduler.AddJob("sync", spec, func(ctx context.Context) error {
			_, err := a.RunSync(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("failed to schedule sync: %w", err)
		}
		a.logger.Infof("✓ Scheduled sync: %s", spec)
		jobs++
	}
	if spec := a.config.Schedule.Purge; spec != "" {
		if err := a.scheduler.AddJob("purge", spec, func(ctx context.Context) error {
			_, err := a.RunPurge(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("failed to schedule purge: %w", err)
		}
		a.logger.Infof("✓ Scheduled purge: %s", spec)
		jobs++
	}
	if jobs == 0 {
		return fmt.Errorf("no schedules configured")
	}

	if addr := a.config.Metrics.Addr; addr != "" {
		a.server = NewStatusServer(addr, a.metrics.Handler(), a.logger.Named("http"))
		if err := a.server.Start(); err != nil {
			return err
		}
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started with %d job(s)", jobs)

	// Keep running until context is cancelled
	<-ctx.Done()
	return nil
}

func (a *App) notify(ctx context.Context, message string) {
	if err := a.notifier.Notify(ctx, message); err != nil {
		a.logger.Warnf("Failed to send notification: %v", err)
	}
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	a.scheduler.Stop()

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Errorf("%v", err)
		}
	}

	a.logger.Close()
}
