package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"LegalCorpus/internal/config"
	"LegalCorpus/internal/infrastructure/fetcher"
	"LegalCorpus/internal/infrastructure/storage"
	"LegalCorpus/internal/infrastructure/webhook"
	"LegalCorpus/internal/logging"
	"LegalCorpus/internal/ports"
	"LegalCorpus/internal/quality"
	"LegalCorpus/internal/registry"
	"LegalCorpus/internal/server"
	"LegalCorpus/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	scheduler *usecase.Scheduler
	server    *server.Server
}

// New builds a runnable application instance. The database schema is
// applied in Run, so New performs no I/O beyond opening the pool.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := storage.NewPostgresRepository(db)
	filter := quality.New(cfg.Quality)
	sources := registry.NewFileRegistry(cfg.Sources.File, baseLogger.With("component", "registry"))
	pages := fetcher.New(cfg.Fetch, nil)

	var notifier ports.Notifier
	if cfg.Alerts.Enabled {
		notifier = webhook.NewNotifier(cfg.Alerts.WebhookURL)
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:          pages,
		Store:            repo,
		Filter:           filter,
		RejectLowQuality: cfg.Quality.RejectLowQuality,
		Logger:           baseLogger.With("component", "pipeline"),
	})
	reporter := usecase.NewReporter(usecase.ReporterDeps{
		Store:  repo,
		RunLog: repo,
		Filter: filter,
		Config: cfg.Reporter,
		Logger: baseLogger.With("component", "reporter"),
	})
	scheduler := usecase.NewScheduler(usecase.SchedulerDeps{
		Pipeline: pipeline,
		Registry: sources,
		RunLog:   repo,
		Notifier: notifier,
		Reporter: reporter,
		Config:   cfg.Scheduler,
		Alerts:   cfg.Alerts,
		Logger:   baseLogger.With("component", "scheduler"),
	})

	srv := server.New(server.Deps{
		Scheduler: scheduler,
		Pipeline:  pipeline,
		Reporter:  reporter,
		Store:     repo,
		RunLog:    repo,
		Logger:    baseLogger.With("component", "server"),
	}, cfg.Server)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		scheduler: scheduler,
		server:    srv,
	}, nil
}

// Run applies the schema, arms the daily scheduler, and serves the admin
// API until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.db.Close()

	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if err := storage.Init(ctx, a.db); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	a.scheduler.Start(ctx)

	return a.server.Run(ctx)
}
