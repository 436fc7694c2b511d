package domain

import (
	"fmt"
	"time"
)

// StrategyParams holds the hot-reloadable thresholds and flags for one
// strategy. Read-mostly: runners take an atomic snapshot each tick, so a
// config update applies from the next tick onward.
type StrategyParams struct {
	Enabled     bool `json:"enabled"`
	AutoExecute bool `json:"auto_execute"`

	// Scan / refresh cadence.
	ScanInterval    time.Duration `json:"scan_interval"`
	RefreshInterval time.Duration `json:"refresh_interval"`

	// Admission filters for the scanner.
	MinLiquidity float64 `json:"min_liquidity"`
	MinVolume    float64 `json:"min_volume"`
	Category     string  `json:"category"`
	MinOutcomes  int     `json:"min_outcomes"`
	MaxScanPages int     `json:"max_scan_pages"`
	PageSize     int     `json:"page_size"`

	// Classification thresholds.
	MinSpread        float64    `json:"min_spread"`
	MaxSlippage      float64    `json:"max_slippage"`
	InvestmentAmount float64    `json:"investment_amount"`
	MintAmount       float64    `json:"mint_amount"`
	MinConfidence    Confidence `json:"min_confidence"`

	// Market-making quoting.
	SpreadPct     float64 `json:"spread_pct"`
	QuoteSize     float64 `json:"quote_size"`
	SkewThreshold float64 `json:"skew_threshold"`
	MaxMarkets    int     `json:"max_markets"`

	// Inventory / risk.
	AutoMerge          bool    `json:"auto_merge"`
	MergeThreshold     float64 `json:"merge_threshold"`
	MaxPositionPerSide float64 `json:"max_position_per_side"`
	MaxOpenPosition    float64 `json:"max_open_position"`
	MaxDailyLoss       float64 `json:"max_daily_loss"`

	// Execution pipeline.
	QueueSize    int           `json:"queue_size"`
	MaxRetries   int           `json:"max_retries"`
	RetryBackoff time.Duration `json:"retry_backoff"`
	MaxAge       time.Duration `json:"max_age"`
	ExecTimeout  time.Duration `json:"exec_timeout"`
}

// Validate rejects parameter combinations that would make a strategy
// misbehave rather than merely trade badly. A failed validation is a fatal
// configuration error: the strategy must not start.
func (p StrategyParams) Validate(strategy StrategyType) error {
	if p.MinSpread < 0 {
		return fmt.Errorf("strategy %s: min_spread must be >= 0, got %v", strategy, p.MinSpread)
	}
	if p.MaxSlippage < 0 || p.MaxSlippage >= 1 {
		return fmt.Errorf("strategy %s: max_slippage must be in [0,1), got %v", strategy, p.MaxSlippage)
	}
	if p.QueueSize < 1 {
		return fmt.Errorf("strategy %s: queue_size must be >= 1, got %d", strategy, p.QueueSize)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("strategy %s: max_retries must be >= 0, got %d", strategy, p.MaxRetries)
	}
	if p.MaxAge <= 0 {
		return fmt.Errorf("strategy %s: max_age must be > 0, got %v", strategy, p.MaxAge)
	}
	switch strategy {
	case StrategyMintSplit:
		if p.MintAmount <= 0 {
			return fmt.Errorf("strategy %s: mint_amount must be > 0, got %v", strategy, p.MintAmount)
		}
	case StrategyArbitrageLong, StrategyArbitrageShort:
		if p.InvestmentAmount <= 0 {
			return fmt.Errorf("strategy %s: investment_amount must be > 0, got %v", strategy, p.InvestmentAmount)
		}
	case StrategyMarketMaking:
		if p.SpreadPct <= 0 {
			return fmt.Errorf("strategy %s: spread_pct must be > 0, got %v", strategy, p.SpreadPct)
		}
		if p.QuoteSize <= 0 {
			return fmt.Errorf("strategy %s: quote_size must be > 0, got %v", strategy, p.QuoteSize)
		}
		if p.SkewThreshold <= 0 || p.SkewThreshold > 1 {
			return fmt.Errorf("strategy %s: skew_threshold must be in (0,1], got %v", strategy, p.SkewThreshold)
		}
	}
	return nil
}

// StrategyStatus is the operator-visible state of one strategy runner.
type StrategyStatus struct {
	Strategy     StrategyType `json:"strategy"`
	IsRunning    bool         `json:"is_running"`
	LastScanTime time.Time    `json:"last_scan_time"`
	ScanCount    int64        `json:"scan_count"`
	Detected     int64        `json:"detected"`
	Executed     int64        `json:"executed"`
	Errors       int64        `json:"errors"`
}
