package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "unknown log_level",
		},
		{
			name:    "empty clob host",
			mutate:  func(c *Config) { c.Polymarket.ClobHost = "" },
			wantErr: "clob_host",
		},
		{
			name:    "tick size too large",
			mutate:  func(c *Config) { c.Polymarket.TickSize = 1 },
			wantErr: "tick_size",
		},
		{
			name: "partial auth credentials",
			mutate: func(c *Config) {
				c.Auth.ApiKey = "key"
				c.Auth.ApiSecret = "secret"
			},
			wantErr: "must all be set together",
		},
		{
			name:    "auth required when a strategy is enabled",
			mutate:  func(c *Config) { c.MintSplit.Enabled = true },
			wantErr: "credentials are required",
		},
		{
			name: "postgres missing host without dsn",
			mutate: func(c *Config) {
				c.Postgres.DSN = ""
				c.Postgres.Host = ""
			},
			wantErr: "postgres: host",
		},
		{
			name:    "postgres pool min exceeds max",
			mutate:  func(c *Config) { c.Postgres.PoolMinConns = 20 },
			wantErr: "pool_min_conns",
		},
		{
			name:    "empty redis addr",
			mutate:  func(c *Config) { c.Redis.Addr = "" },
			wantErr: "redis: addr",
		},
		{
			name: "s3 enabled without bucket",
			mutate: func(c *Config) {
				c.S3.Enabled = true
				c.S3.Bucket = ""
			},
			wantErr: "s3: bucket",
		},
		{
			name:    "non-positive sweep interval",
			mutate:  func(c *Config) { c.Pipeline.SweepInterval = duration{} },
			wantErr: "sweep_interval",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateDSNSkipsHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/polyedge"
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.Database = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "log_level")
	assert.ErrorContains(t, err, "redis: addr")
}

func TestToParamsUppercasesConfidence(t *testing.T) {
	s := StrategyConfig{
		MinConfidence: "medium",
		ScanInterval:  duration{time.Minute},
		MaxRetries:    3,
	}
	p := s.ToParams()
	assert.Equal(t, domain.ConfidenceMedium, p.MinConfidence)
	assert.Equal(t, time.Minute, p.ScanInterval)
	assert.Equal(t, 3, p.MaxRetries)
}

func TestStrategyParamsCoversAllTypes(t *testing.T) {
	cfg := Defaults()
	params := cfg.StrategyParams()
	require.Len(t, params, 4)
	for _, st := range []domain.StrategyType{
		domain.StrategyMintSplit,
		domain.StrategyArbitrageLong,
		domain.StrategyArbitrageShort,
		domain.StrategyMarketMaking,
	} {
		_, ok := params[st]
		assert.True(t, ok, "missing params for %s", st)
	}
	assert.InDelta(t, 100, params[domain.StrategyMintSplit].MintAmount, 1e-9)
	assert.InDelta(t, 0.04, params[domain.StrategyMarketMaking].SpreadPct, 1e-9)
}

func TestDurationUnmarshalText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	assert.Error(t, d.UnmarshalText([]byte("soon")))

	out, err := duration{5 * time.Minute}.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "5m0s", string(out))
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
log_level = "debug"

[polymarket]
tick_size = 0.001

[arbitrage_long]
enabled = true
scan_interval = "2m"
investment_amount = 250.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.InDelta(t, 0.001, cfg.Polymarket.TickSize, 1e-12)
	assert.True(t, cfg.ArbitrageLong.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.ArbitrageLong.ScanInterval.Duration)
	assert.InDelta(t, 250, cfg.ArbitrageLong.InvestmentAmount, 1e-9)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://clob.polymarket.com", cfg.Polymarket.ClobHost)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("EDGE_LOG_LEVEL", "warn")
	t.Setenv("EDGE_AUTH_ADDRESS", "0xabc")
	t.Setenv("EDGE_POSTGRES_PORT", "5433")
	t.Setenv("EDGE_REDIS_TLS_ENABLED", "true")
	t.Setenv("EDGE_PIPELINE_SWEEP_INTERVAL", "45s")
	t.Setenv("EDGE_MARKET_MAKING_ENABLED", "1")
	t.Setenv("EDGE_MARKET_MAKING_MAX_DAILY_LOSS", "250")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "0xabc", cfg.Auth.Address)
	assert.Equal(t, 5433, cfg.Postgres.Port)
	assert.True(t, cfg.Redis.TLSEnabled)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.SweepInterval.Duration)
	assert.True(t, cfg.MarketMaking.Enabled)
	assert.InDelta(t, 250, cfg.MarketMaking.MaxDailyLoss, 1e-9)
}

func TestEnvOverridesIgnoreMalformedValues(t *testing.T) {
	t.Setenv("EDGE_POSTGRES_PORT", "not-a-port")
	t.Setenv("EDGE_PIPELINE_SWEEP_INTERVAL", "whenever")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.SweepInterval.Duration)
}
