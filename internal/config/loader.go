package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EDGE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EDGE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "EDGE_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "EDGE_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "EDGE_POLYMARKET_WS_HOST")
	setFloat64(&cfg.Polymarket.TickSize, "EDGE_POLYMARKET_TICK_SIZE")

	// ── Auth ──
	setStr(&cfg.Auth.Address, "EDGE_AUTH_ADDRESS")
	setStr(&cfg.Auth.ApiKey, "EDGE_AUTH_API_KEY")
	setStr(&cfg.Auth.ApiSecret, "EDGE_AUTH_API_SECRET")
	setStr(&cfg.Auth.Passphrase, "EDGE_AUTH_PASSPHRASE")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "EDGE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "EDGE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EDGE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EDGE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EDGE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EDGE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EDGE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EDGE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EDGE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EDGE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "EDGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EDGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EDGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EDGE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EDGE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EDGE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "EDGE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EDGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EDGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "EDGE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EDGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EDGE_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "EDGE_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setStr(&cfg.Pipeline.ArchiveCron, "EDGE_PIPELINE_ARCHIVE_CRON")
	setDuration(&cfg.Pipeline.ArchiveAfter, "EDGE_PIPELINE_ARCHIVE_AFTER")
	setStr(&cfg.Pipeline.LossResetCron, "EDGE_PIPELINE_LOSS_RESET_CRON")
	setDuration(&cfg.Pipeline.SweepInterval, "EDGE_PIPELINE_SWEEP_INTERVAL")

	// ── Strategies ──
	applyStrategyEnv(&cfg.MintSplit, "EDGE_MINT_SPLIT")
	applyStrategyEnv(&cfg.ArbitrageLong, "EDGE_ARBITRAGE_LONG")
	applyStrategyEnv(&cfg.ArbitrageShort, "EDGE_ARBITRAGE_SHORT")
	applyStrategyEnv(&cfg.MarketMaking, "EDGE_MARKET_MAKING")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "EDGE_LOG_LEVEL")
}

// applyStrategyEnv applies the commonly overridden per-strategy variables.
// Less common tuning stays TOML-only.
func applyStrategyEnv(s *StrategyConfig, prefix string) {
	setBool(&s.Enabled, prefix+"_ENABLED")
	setBool(&s.AutoExecute, prefix+"_AUTO_EXECUTE")
	setDuration(&s.ScanInterval, prefix+"_SCAN_INTERVAL")
	setDuration(&s.RefreshInterval, prefix+"_REFRESH_INTERVAL")
	setFloat64(&s.MinLiquidity, prefix+"_MIN_LIQUIDITY")
	setFloat64(&s.MinSpread, prefix+"_MIN_SPREAD")
	setFloat64(&s.InvestmentAmount, prefix+"_INVESTMENT_AMOUNT")
	setFloat64(&s.MintAmount, prefix+"_MINT_AMOUNT")
	setFloat64(&s.MaxDailyLoss, prefix+"_MAX_DAILY_LOSS")
	setStr(&s.MinConfidence, prefix+"_MIN_CONFIDENCE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
