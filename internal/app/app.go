// Package app provides the top-level application lifecycle for the polyedge
// bot. It wires together all dependencies (stores, caches, market data
// clients, the opportunity pipeline, and maintenance jobs) and supervises
// the long-running goroutines.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyedge/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the
// pipeline goroutines and maintenance jobs, launches the enabled strategies,
// and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	if err := deps.WS.Connect(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return deps.Dispatcher.Run(gctx) })
	g.Go(func() error { return deps.Sweeper.Run(gctx) })
	g.Go(func() error { return deps.Feed.Run(gctx) })

	sched, err := a.startMaintenance(gctx, deps)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	defer sched.Stop()

	a.startStrategies(gctx, deps)

	err = g.Wait()
	deps.Registry.StopAll(context.Background())
	return err
}

// startMaintenance schedules the daily-loss reset and, when the archive is
// configured, the terminal-opportunity archive job.
func (a *App) startMaintenance(ctx context.Context, deps *Dependencies) (*cron.Cron, error) {
	sched := cron.New()

	if _, err := sched.AddFunc(a.cfg.Pipeline.LossResetCron, func() {
		deps.Inventory.ResetDailyLoss()
	}); err != nil {
		return nil, fmt.Errorf("schedule loss reset %q: %w", a.cfg.Pipeline.LossResetCron, err)
	}

	if deps.Archiver != nil {
		retention := a.cfg.Pipeline.ArchiveAfter.Duration
		if _, err := sched.AddFunc(a.cfg.Pipeline.ArchiveCron, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := deps.Archiver.ArchiveOpportunities(jobCtx, cutoff); err != nil {
				a.logger.Error("archive job failed", slog.String("error", err.Error()))
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule archive %q: %w", a.cfg.Pipeline.ArchiveCron, err)
		}
	}

	sched.Start()
	return sched, nil
}

// startStrategies launches every strategy enabled in the configuration. A
// strategy that fails to start is logged and skipped; the rest of the bot
// keeps running so the operator can fix and start it by hand.
func (a *App) startStrategies(ctx context.Context, deps *Dependencies) {
	for _, runner := range deps.Registry.List() {
		if !runner.Params().Enabled {
			continue
		}
		status := runner.Status()
		if err := runner.Start(ctx); err != nil {
			a.logger.Error("strategy failed to start",
				slog.String("strategy", string(status.Strategy)),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.Info("strategy started", slog.String("strategy", string(status.Strategy)))
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// IsShutdown reports whether err is the expected result of a cancelled run.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled)
}
