package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/polyedge/internal/blob/s3"
	"github.com/alanyoungcy/polyedge/internal/cache/redis"
	"github.com/alanyoungcy/polyedge/internal/config"
	"github.com/alanyoungcy/polyedge/internal/dispatch"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/executor"
	"github.com/alanyoungcy/polyedge/internal/feed"
	"github.com/alanyoungcy/polyedge/internal/inventory"
	"github.com/alanyoungcy/polyedge/internal/lifecycle"
	"github.com/alanyoungcy/polyedge/internal/platform/polymarket"
	"github.com/alanyoungcy/polyedge/internal/scanner"
	"github.com/alanyoungcy/polyedge/internal/service"
	"github.com/alanyoungcy/polyedge/internal/store/postgres"
	"github.com/alanyoungcy/polyedge/internal/strategy"
)

// Dependencies bundles every wired component the application runs. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Opportunities   domain.OpportunityStore
	StrategyConfigs domain.StrategyConfigStore
	Positions       domain.InventoryStore
	QueueStats      domain.QueueStatsStore

	// Market data and execution
	WS      *polymarket.WSClient
	Feed    *feed.BookFeed
	Books   domain.BookSource
	Gateway domain.OrderGateway

	// Core pipeline
	Lifecycle  *lifecycle.Manager
	Sweeper    *lifecycle.Sweeper
	Dispatcher *dispatch.Dispatcher
	Inventory  *inventory.Manager
	Registry   *strategy.Registry
	Operator   *service.Operator

	// Maintenance
	Archiver *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Opportunities = postgres.NewOpportunityStore(pool)
	deps.StrategyConfigs = postgres.NewStrategyConfigStore(pool)
	deps.Positions = postgres.NewInventoryStore(pool)
	deps.QueueStats = postgres.NewQueueStatsStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	marketCache := redis.NewMarketCache(redisClient)
	bookCache := redis.NewBookCache(redisClient)
	rateLimiter := redis.NewRateLimiter(redisClient)
	scanLock := redis.NewScanLock(redisClient)

	// --- S3 archive (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Opportunities, logger)
	}

	// --- Polymarket clients ---
	signer := &polymarket.HMACAuth{
		Address:    cfg.Auth.Address,
		Key:        cfg.Auth.ApiKey,
		Secret:     cfg.Auth.ApiSecret,
		Passphrase: cfg.Auth.Passphrase,
	}
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost, logger)
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, cfg.Polymarket.TickSize)
	restBooks := polymarket.NewBookClient(cfg.Polymarket.ClobHost)
	deps.Gateway = clob

	deps.WS = polymarket.NewWSClient(cfg.Polymarket.WsHost, 0, logger)
	closers = append(closers, func() { _ = deps.WS.Close() })
	deps.Feed = feed.NewBookFeed(deps.WS, bookCache, 0, logger)
	deps.Books = feed.NewCachedBookSource(bookCache, restBooks)

	// --- Core pipeline ---
	deps.Lifecycle = lifecycle.NewManager(deps.Opportunities, logger)
	deps.Inventory = inventory.NewManager(clob, deps.Positions, logger)
	if err := deps.Inventory.Restore(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %w", err)
	}

	deps.Registry = strategy.NewRegistry()
	params := deps.Registry.Params

	deps.Sweeper = lifecycle.NewSweeper(
		deps.Lifecycle,
		func(st domain.StrategyType) time.Duration { return params(st).MaxAge },
		cfg.Pipeline.SweepInterval.Duration,
		logger,
	)

	exec := executor.New(clob, deps.Inventory, params, logger)
	deps.Dispatcher = dispatch.New(dispatch.Dependencies{
		Lifecycle: deps.Lifecycle,
		Executor:  exec,
		Params:    params,
		Stats:     deps.QueueStats,
	}, logger)

	for st, p := range cfg.StrategyParams() {
		runner := strategy.NewRunner(st, p, strategy.Dependencies{
			Scanner:    scanner.New(string(st), gamma, rateLimiter, marketCache, scanLock, logger),
			Books:      deps.Books,
			Gateway:    clob,
			Lifecycle:  deps.Lifecycle,
			Dispatcher: deps.Dispatcher,
			Inventory:  deps.Inventory,
		}, logger)
		if err := deps.Registry.Register(runner); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: register %s: %w", st, err)
		}
	}
	applyStoredConfigs(ctx, deps.Registry, deps.StrategyConfigs, logger)

	deps.Operator = service.NewOperator(
		deps.Registry, deps.Lifecycle, deps.Dispatcher, deps.Inventory, deps.StrategyConfigs, logger,
	)

	return deps, cleanup, nil
}

// applyStoredConfigs layers persisted per-strategy parameters over the file
// configuration, so hot-reloaded settings survive a restart. A record that
// fails validation is skipped with a warning rather than blocking startup.
func applyStoredConfigs(ctx context.Context, registry *strategy.Registry, store domain.StrategyConfigStore, logger *slog.Logger) {
	records, err := store.List(ctx)
	if err != nil {
		logger.Warn("stored strategy configs unavailable", slog.String("error", err.Error()))
		return
	}
	for _, rec := range records {
		runner, err := registry.Get(rec.Strategy)
		if err != nil {
			continue
		}
		if err := runner.UpdateParams(rec.Params); err != nil {
			logger.Warn("stored strategy config rejected",
				slog.String("strategy", string(rec.Strategy)),
				slog.String("error", err.Error()),
			)
		}
	}
}
