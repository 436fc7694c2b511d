// Package scanner pulls market pages from the market data gateway and
// normalizes them into snapshots for classification.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

const (
	defaultPageSize  = 100
	defaultPageCap   = 20
	pageDelay        = 200 * time.Millisecond
	rateLimitRetries = 3
	rateLimitBackoff = 2 * time.Second
	cacheTTL         = 5 * time.Minute
)

// Scanner fetches and normalizes markets for one strategy's scan loop.
// A guard flag makes Scan a no-op while another scan by the same scanner is
// still running, so overlapping triggers never produce overlapping full
// scans.
type Scanner struct {
	name    string
	gateway domain.MarketDataGateway
	limiter domain.RateLimiter
	cache   domain.MarketCache // optional
	lock    domain.ScanLock    // optional, for multi-instance deployments
	logger  *slog.Logger

	inProgress atomic.Bool
	lastScan   atomic.Int64 // unix nanos
}

// New creates a Scanner. name keys the distributed scan lock, so scanners
// with different names never block each other. limiter paces page requests;
// cache and lock may be nil.
func New(name string, gateway domain.MarketDataGateway, limiter domain.RateLimiter, cache domain.MarketCache, lock domain.ScanLock, logger *slog.Logger) *Scanner {
	return &Scanner{
		name:    name,
		gateway: gateway,
		limiter: limiter,
		cache:   cache,
		lock:    lock,
		logger: logger.With(
			slog.String("component", "scanner"),
			slog.String("scan", name),
		),
	}
}

// LastScanTime returns when the previous scan finished.
func (s *Scanner) LastScanTime() time.Time {
	n := s.lastScan.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Scan pulls pages until the gateway is exhausted or the page budget is
// hit, returning normalized snapshots. Markets with malformed data are
// skipped and logged, never aborting the scan. Returns ErrScanInProgress
// when called while a previous scan is still running.
func (s *Scanner) Scan(ctx context.Context, params domain.StrategyParams) ([]domain.MarketSnapshot, error) {
	if !s.inProgress.CompareAndSwap(false, true) {
		s.logger.Info("scan trigger ignored, previous scan still running")
		return nil, domain.ErrScanInProgress
	}
	defer func() {
		s.inProgress.Store(false)
		s.lastScan.Store(time.Now().UnixNano())
	}()

	if s.lock != nil {
		release, err := s.lock.TryAcquire(ctx, "scan:"+s.name, time.Minute)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.logger.Info("scan lock held elsewhere, skipping")
				return nil, domain.ErrScanInProgress
			}
			return nil, fmt.Errorf("scanner: acquire lock: %w", err)
		}
		defer release()
	}

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageCap := params.MaxScanPages
	if pageCap <= 0 {
		pageCap = defaultPageCap
	}

	var snapshots []domain.MarketSnapshot
	skipped := 0
	for page := 0; page < pageCap; page++ {
		raw, err := s.fetchPage(ctx, domain.MarketQuery{
			Active:       true,
			Limit:        pageSize,
			Offset:       page * pageSize,
			LiquidityMin: params.MinLiquidity,
			VolumeMin:    params.MinVolume,
			Category:     params.Category,
		})
		if err != nil {
			if errors.Is(err, domain.ErrRateLimited) {
				// Retries exhausted: skip this page and keep the rest of
				// the scan alive.
				s.logger.Warn("page skipped after rate limit retries", slog.Int("page", page))
				continue
			}
			return snapshots, fmt.Errorf("scanner: page %d: %w", page, err)
		}
		if len(raw) == 0 {
			break
		}

		for _, m := range raw {
			snap, err := Normalize(m, params)
			if err != nil {
				skipped++
				s.logger.Debug("market skipped",
					slog.String("market", m.ConditionID),
					slog.String("reason", err.Error()),
				)
				continue
			}
			snapshots = append(snapshots, snap)
			s.cacheSnapshot(ctx, snap)
		}

		if len(raw) < pageSize {
			break
		}
		// Fixed delay between pages to stay under upstream rate limits.
		select {
		case <-ctx.Done():
			return snapshots, ctx.Err()
		case <-time.After(pageDelay):
		}
	}

	s.logger.Info("scan complete",
		slog.Int("markets", len(snapshots)),
		slog.Int("skipped", skipped),
	)
	return snapshots, nil
}

// fetchPage requests one page, waiting on the rate limiter first and
// backing off a bounded number of times on a rate-limit response.
func (s *Scanner) fetchPage(ctx context.Context, q domain.MarketQuery) ([]domain.RawMarket, error) {
	for attempt := 0; ; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx, "gamma", 5, time.Second); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}
		raw, err := s.gateway.ListMarkets(ctx, q)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) || attempt >= rateLimitRetries {
			return nil, err
		}
		delay := rateLimitBackoff << attempt
		s.logger.Warn("rate limited, backing off",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Normalize validates one raw market and computes its price sum. Any
// inconsistency (missing tokens, price/outcome count mismatch, prices
// outside [0,1]) yields a per-market error so the caller can skip it.
func Normalize(m domain.RawMarket, params domain.StrategyParams) (domain.MarketSnapshot, error) {
	if m.ConditionID == "" {
		return domain.MarketSnapshot{}, errors.New("missing condition id")
	}
	n := len(m.OutcomeLabels)
	if n < 2 {
		return domain.MarketSnapshot{}, fmt.Errorf("only %d outcomes", n)
	}
	if minOut := params.MinOutcomes; minOut > 2 && n < minOut {
		return domain.MarketSnapshot{}, fmt.Errorf("%d outcomes below configured minimum %d", n, minOut)
	}
	if len(m.OutcomePrices) != n || len(m.TokenIDs) != n {
		return domain.MarketSnapshot{}, fmt.Errorf("outcome/price/token count mismatch: %d/%d/%d", n, len(m.OutcomePrices), len(m.TokenIDs))
	}
	if !m.EnableOrderBook {
		return domain.MarketSnapshot{}, errors.New("orderbook disabled")
	}

	outcomes := make([]domain.Outcome, 0, n)
	var priceSum float64
	for i := 0; i < n; i++ {
		price := m.OutcomePrices[i]
		if price < 0 || price > 1 {
			return domain.MarketSnapshot{}, fmt.Errorf("outcome %q price %v out of range", m.OutcomeLabels[i], price)
		}
		if m.TokenIDs[i] == "" {
			return domain.MarketSnapshot{}, fmt.Errorf("outcome %q missing token id", m.OutcomeLabels[i])
		}
		outcomes = append(outcomes, domain.Outcome{
			TokenID: m.TokenIDs[i],
			Label:   m.OutcomeLabels[i],
			Price:   price,
		})
		priceSum += price
	}

	return domain.MarketSnapshot{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		Outcomes:    outcomes,
		PriceSum:    priceSum,
		Liquidity:   m.Liquidity,
		Volume:      m.Volume,
		Timestamp:   time.Now().UTC(),
	}, nil
}

func (s *Scanner) cacheSnapshot(ctx context.Context, snap domain.MarketSnapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, snap, cacheTTL); err != nil {
		s.logger.Debug("snapshot cache failed",
			slog.String("market", snap.ConditionID),
			slog.String("error", err.Error()),
		)
	}
}
