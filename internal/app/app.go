package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"newscrawler/internal/api"
	"newscrawler/internal/config"
	"newscrawler/internal/infrastructure/feed"
	"newscrawler/internal/infrastructure/mail"
	"newscrawler/internal/infrastructure/scheduler"
	"newscrawler/internal/infrastructure/storage"
	"newscrawler/internal/ports"
	"newscrawler/internal/usecase"
)

// Application wires configuration to use cases and owns the process
// lifecycle: cron-driven archive-then-collect, daily summary, HTTP API.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	repo      ports.ArticleRepository
	collector *usecase.Collector
	archiver  *usecase.Archiver
	summary   *usecase.Summary
	sched     ports.Scheduler
	server    *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, logger *slog.Logger) (*Application, error) {
	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	repo := storage.NewPostgresRepository(db)

	registry := feed.NewRegistry(nil, cfg.Feeds, logger.With("component", "registry"))
	fetcher := feed.NewFetcher(cfg.HTTP, cfg.Feeds.Source, logger.With("component", "fetcher"))
	collector := usecase.NewCollector(registry, fetcher, repo, logger.With("component", "collector"))
	archiver := usecase.NewArchiver(repo, cfg.Archive.ThresholdDays, logger.With("component", "archiver"))

	var summary *usecase.Summary
	if cfg.Mail.Enabled() {
		mailer := mail.NewSMTPMailer(cfg.Mail)
		summary = usecase.NewSummary(repo, mailer, cfg.Categories, cfg.Mail.WindowHour, logger.With("component", "summary"))
	}

	server := api.NewServer(repo, summary, cfg.Categories, cfg.API.DefaultLimit, logger.With("component", "api"))

	return &Application{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		repo:      repo,
		collector: collector,
		archiver:  archiver,
		summary:   summary,
		sched:     scheduler.NewCronScheduler(cfg.Scheduler.Location()),
		server: &http.Server{
			Addr:    cfg.API.Addr,
			Handler: server.Router(),
		},
	}, nil
}

// Run bootstraps the schema, runs one cycle immediately, then serves the
// API and the cron schedule until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.repo.Ensure(ctx); err != nil {
		return fmt.Errorf("bootstrap schema: %w", err)
	}

	if err := a.sched.Add(a.cfg.Scheduler.CollectSpec, func() { a.runCycle(context.Background()) }); err != nil {
		return fmt.Errorf("schedule collect job: %w", err)
	}
	if a.summary != nil {
		if err := a.sched.Add(a.cfg.Scheduler.SummarySpec, func() {
			if err := a.summary.SendDaily(context.Background()); err != nil {
				a.logger.Error("scheduled summary failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule summary job: %w", err)
		}
	}

	a.runCycle(ctx)
	a.sched.Start()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("api listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api shutdown failed", "error", err)
	}
	if err := a.sched.Stop(shutdownCtx); err != nil {
		a.logger.Error("scheduler shutdown failed", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("database close failed", "error", err)
	}
	return nil
}

// runCycle sequences archive then collect, so the active table is trimmed
// before new entries arrive. Both steps are fire-and-log; only the collect
// step's database-unreachable error aborts the cycle.
func (a *Application) runCycle(ctx context.Context) {
	if _, err := a.archiver.Run(ctx); err != nil {
		a.logger.Error("archive step failed", "error", err)
	}
	if _, err := a.collector.Collect(ctx); err != nil {
		a.logger.Error("collection cycle aborted", "error", err)
	}
}
