// Package config defines the top-level configuration for the polyedge bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by EDGE_* environment variables.
type Config struct {
	Polymarket PolymarketConfig `toml:"polymarket"`
	Auth       AuthConfig       `toml:"auth"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Pipeline   PipelineConfig   `toml:"pipeline"`

	MintSplit      StrategyConfig `toml:"mint_split"`
	ArbitrageLong  StrategyConfig `toml:"arbitrage_long"`
	ArbitrageShort StrategyConfig `toml:"arbitrage_short"`
	MarketMaking   StrategyConfig `toml:"market_making"`

	LogLevel string `toml:"log_level"`
}

// PolymarketConfig holds Polymarket API endpoints and exchange parameters.
type PolymarketConfig struct {
	ClobHost  string  `toml:"clob_host"`
	GammaHost string  `toml:"gamma_host"`
	WsHost    string  `toml:"ws_host"`
	TickSize  float64 `toml:"tick_size"`
}

// AuthConfig holds the pre-provisioned CLOB API credentials.
type AuthConfig struct {
	Address    string `toml:"address"`
	ApiKey     string `toml:"api_key"`
	ApiSecret  string `toml:"api_secret"`
	Passphrase string `toml:"passphrase"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds background maintenance schedules.
type PipelineConfig struct {
	// ArchiveCron schedules the terminal-opportunity archive job.
	ArchiveCron string `toml:"archive_cron"`
	// ArchiveAfter is how long a terminal opportunity stays in Postgres
	// before it is eligible for archival.
	ArchiveAfter duration `toml:"archive_after"`
	// LossResetCron schedules the daily-loss counter reset, normally
	// midnight in the operator's timezone.
	LossResetCron string `toml:"loss_reset_cron"`
	// SweepInterval is how often the expiry sweeper runs.
	SweepInterval duration `toml:"sweep_interval"`
}

// StrategyConfig holds one strategy's TOML block. It mirrors
// domain.StrategyParams with TOML-friendly types.
type StrategyConfig struct {
	Enabled     bool `toml:"enabled"`
	AutoExecute bool `toml:"auto_execute"`

	ScanInterval    duration `toml:"scan_interval"`
	RefreshInterval duration `toml:"refresh_interval"`

	MinLiquidity float64 `toml:"min_liquidity"`
	MinVolume    float64 `toml:"min_volume"`
	Category     string  `toml:"category"`
	MinOutcomes  int     `toml:"min_outcomes"`
	MaxScanPages int     `toml:"max_scan_pages"`
	PageSize     int     `toml:"page_size"`

	MinSpread        float64 `toml:"min_spread"`
	MaxSlippage      float64 `toml:"max_slippage"`
	InvestmentAmount float64 `toml:"investment_amount"`
	MintAmount       float64 `toml:"mint_amount"`
	MinConfidence    string  `toml:"min_confidence"`

	SpreadPct     float64 `toml:"spread_pct"`
	QuoteSize     float64 `toml:"quote_size"`
	SkewThreshold float64 `toml:"skew_threshold"`
	MaxMarkets    int     `toml:"max_markets"`

	AutoMerge          bool    `toml:"auto_merge"`
	MergeThreshold     float64 `toml:"merge_threshold"`
	MaxPositionPerSide float64 `toml:"max_position_per_side"`
	MaxOpenPosition    float64 `toml:"max_open_position"`
	MaxDailyLoss       float64 `toml:"max_daily_loss"`

	QueueSize    int      `toml:"queue_size"`
	MaxRetries   int      `toml:"max_retries"`
	RetryBackoff duration `toml:"retry_backoff"`
	MaxAge       duration `toml:"max_age"`
	ExecTimeout  duration `toml:"exec_timeout"`
}

// ToParams converts the TOML block into domain parameters.
func (s StrategyConfig) ToParams() domain.StrategyParams {
	return domain.StrategyParams{
		Enabled:            s.Enabled,
		AutoExecute:        s.AutoExecute,
		ScanInterval:       s.ScanInterval.Duration,
		RefreshInterval:    s.RefreshInterval.Duration,
		MinLiquidity:       s.MinLiquidity,
		MinVolume:          s.MinVolume,
		Category:           s.Category,
		MinOutcomes:        s.MinOutcomes,
		MaxScanPages:       s.MaxScanPages,
		PageSize:           s.PageSize,
		MinSpread:          s.MinSpread,
		MaxSlippage:        s.MaxSlippage,
		InvestmentAmount:   s.InvestmentAmount,
		MintAmount:         s.MintAmount,
		MinConfidence:      domain.Confidence(strings.ToUpper(s.MinConfidence)),
		SpreadPct:          s.SpreadPct,
		QuoteSize:          s.QuoteSize,
		SkewThreshold:      s.SkewThreshold,
		MaxMarkets:         s.MaxMarkets,
		AutoMerge:          s.AutoMerge,
		MergeThreshold:     s.MergeThreshold,
		MaxPositionPerSide: s.MaxPositionPerSide,
		MaxOpenPosition:    s.MaxOpenPosition,
		MaxDailyLoss:       s.MaxDailyLoss,
		QueueSize:          s.QueueSize,
		MaxRetries:         s.MaxRetries,
		RetryBackoff:       s.RetryBackoff.Duration,
		MaxAge:             s.MaxAge.Duration,
		ExecTimeout:        s.ExecTimeout.Duration,
	}
}

// StrategyParams returns the parameter set for every strategy type.
func (c *Config) StrategyParams() map[domain.StrategyType]domain.StrategyParams {
	return map[domain.StrategyType]domain.StrategyParams{
		domain.StrategyMintSplit:      c.MintSplit.ToParams(),
		domain.StrategyArbitrageLong:  c.ArbitrageLong.ToParams(),
		domain.StrategyArbitrageShort: c.ArbitrageShort.ToParams(),
		domain.StrategyMarketMaking:   c.MarketMaking.ToParams(),
	}
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	baseStrategy := StrategyConfig{
		Enabled:       false,
		AutoExecute:   false,
		ScanInterval:  duration{60 * time.Second},
		MinLiquidity:  1000,
		MinVolume:     0,
		MinOutcomes:   2,
		MaxScanPages:  5,
		PageSize:      100,
		MinSpread:     0.02,
		MaxSlippage:   0.02,
		MinConfidence: "MEDIUM",
		QueueSize:     100,
		MaxRetries:    3,
		RetryBackoff:  duration{2 * time.Second},
		MaxAge:        duration{5 * time.Minute},
		ExecTimeout:   duration{30 * time.Second},
	}

	mintSplit := baseStrategy
	mintSplit.MintAmount = 100

	arbLong := baseStrategy
	arbLong.InvestmentAmount = 100

	arbShort := baseStrategy
	arbShort.InvestmentAmount = 100

	mm := baseStrategy
	mm.RefreshInterval = duration{10 * time.Second}
	mm.SpreadPct = 0.04
	mm.QuoteSize = 25
	mm.SkewThreshold = 0.3
	mm.MaxMarkets = 5
	mm.AutoMerge = true
	mm.MergeThreshold = 50
	mm.MaxPositionPerSide = 500
	mm.MaxOpenPosition = 800
	mm.MaxDailyLoss = 100

	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:  "https://clob.polymarket.com",
			GammaHost: "https://gamma-api.polymarket.com",
			WsHost:    "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			TickSize:  0.01,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polyedge",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyedge-archive",
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			ArchiveCron:   "0 3 * * *",
			ArchiveAfter:  duration{7 * 24 * time.Hour},
			LossResetCron: "0 0 * * *",
			SweepInterval: duration{30 * time.Second},
		},
		MintSplit:      mintSplit,
		ArbitrageLong:  arbLong,
		ArbitrageShort: arbShort,
		MarketMaking:   mm,
		LogLevel:       "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found. Per-strategy parameter
// validation happens separately when a strategy starts.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.TickSize <= 0 || c.Polymarket.TickSize >= 1 {
		errs = append(errs, fmt.Sprintf("polymarket: tick_size must be in (0,1), got %v", c.Polymarket.TickSize))
	}

	// Auth: all four fields must be set together, or all empty.
	set := 0
	for _, v := range []string{c.Auth.Address, c.Auth.ApiKey, c.Auth.ApiSecret, c.Auth.Passphrase} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 4 {
		errs = append(errs, "auth: address, api_key, api_secret, and passphrase must all be set together")
	}
	needsAuth := c.MintSplit.Enabled || c.ArbitrageLong.Enabled || c.ArbitrageShort.Enabled || c.MarketMaking.Enabled
	if needsAuth && set == 0 {
		errs = append(errs, "auth: credentials are required when any strategy is enabled")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Pipeline
	if c.Pipeline.SweepInterval.Duration <= 0 {
		errs = append(errs, "pipeline: sweep_interval must be > 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
