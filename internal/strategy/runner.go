// Package strategy owns the per-strategy timer loops. Each runner is the
// single writer for its strategy's mutable state; everything it shares is
// handed out as copies.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/polyedge/internal/classifier"
	"github.com/alanyoungcy/polyedge/internal/dispatch"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/executor"
	"github.com/alanyoungcy/polyedge/internal/inventory"
	"github.com/alanyoungcy/polyedge/internal/lifecycle"
	"github.com/alanyoungcy/polyedge/internal/scanner"
)

// Dependencies bundles the collaborators shared by all runners.
type Dependencies struct {
	Scanner    *scanner.Scanner
	Books      domain.BookSource
	Gateway    domain.OrderGateway
	Lifecycle  *lifecycle.Manager
	Dispatcher *dispatch.Dispatcher
	Inventory  *inventory.Manager
}

// Runner drives one strategy: a timer loop that scans (or refreshes
// quotes), classifies, and hands admissions to the dispatcher.
type Runner struct {
	strategy domain.StrategyType
	deps     Dependencies
	logger   *slog.Logger

	params atomic.Pointer[domain.StrategyParams]
	task   *ScheduledTask

	// Counters surfaced through Status.
	scans    atomic.Int64
	detected atomic.Int64
	executed atomic.Int64
	errs     atomic.Int64

	// Market-making state, owned exclusively by this runner's loop.
	mu      sync.Mutex
	quoters map[string]*executor.Quoter
}

// NewRunner creates a Runner with the given initial parameters.
func NewRunner(strategy domain.StrategyType, params domain.StrategyParams, deps Dependencies, logger *slog.Logger) *Runner {
	r := &Runner{
		strategy: strategy,
		deps:     deps,
		logger: logger.With(
			slog.String("component", "strategy_runner"),
			slog.String("strategy", string(strategy)),
		),
		quoters: make(map[string]*executor.Quoter),
	}
	r.params.Store(&params)
	r.task = NewScheduledTask(string(strategy), r.interval, r.tick, r.logger)
	return r
}

// Params returns the current parameter snapshot.
func (r *Runner) Params() domain.StrategyParams {
	return *r.params.Load()
}

// UpdateParams swaps in new parameters; they apply from the next tick.
func (r *Runner) UpdateParams(p domain.StrategyParams) error {
	if err := p.Validate(r.strategy); err != nil {
		return fmt.Errorf("strategy: update params: %w", err)
	}
	r.params.Store(&p)
	r.logger.Info("strategy parameters updated")
	return nil
}

func (r *Runner) interval() time.Duration {
	p := r.Params()
	if r.strategy == domain.StrategyMarketMaking {
		return p.RefreshInterval
	}
	return p.ScanInterval
}

// Start validates the configuration and launches the loop. An invalid
// configuration is a fatal startup error: the strategy does not start and
// no retry loop is spawned.
func (r *Runner) Start(ctx context.Context) error {
	p := r.Params()
	if !p.Enabled {
		return fmt.Errorf("strategy %s: disabled by configuration", r.strategy)
	}
	if err := p.Validate(r.strategy); err != nil {
		return fmt.Errorf("strategy %s: %w", r.strategy, err)
	}
	if r.task.Running() {
		return fmt.Errorf("strategy %s: %w", r.strategy, domain.ErrStrategyRunning)
	}
	r.task.Start(ctx)
	return nil
}

// Stop cancels the timer loop, waits for the in-progress tick, and makes a
// best-effort attempt to cancel this strategy's open orders. Opportunities
// already EXECUTING in the dispatcher run to completion.
func (r *Runner) Stop(ctx context.Context) error {
	if !r.task.Running() {
		return fmt.Errorf("strategy %s: %w", r.strategy, domain.ErrStrategyStopped)
	}
	r.task.Stop()

	if r.strategy == domain.StrategyMarketMaking {
		r.mu.Lock()
		quoters := make([]*executor.Quoter, 0, len(r.quoters))
		for _, q := range r.quoters {
			quoters = append(quoters, q)
		}
		r.quoters = make(map[string]*executor.Quoter)
		r.mu.Unlock()
		for _, q := range quoters {
			q.Shutdown(ctx)
		}
	}
	return nil
}

// Running reports whether the loop is active.
func (r *Runner) Running() bool {
	return r.task.Running()
}

// TriggerScan runs one tick immediately (operator action).
func (r *Runner) TriggerScan(ctx context.Context) {
	r.task.TriggerNow(ctx)
}

// Status returns the operator-facing snapshot for this strategy.
func (r *Runner) Status() domain.StrategyStatus {
	return domain.StrategyStatus{
		Strategy:     r.strategy,
		IsRunning:    r.task.Running(),
		LastScanTime: r.deps.Scanner.LastScanTime(),
		ScanCount:    r.scans.Load(),
		Detected:     r.detected.Load(),
		Executed:     r.executed.Load(),
		Errors:       r.errs.Load(),
	}
}

// tick is one loop iteration. No per-market error may abort the tick.
func (r *Runner) tick(ctx context.Context) {
	switch r.strategy {
	case domain.StrategyMarketMaking:
		r.refreshQuotes(ctx)
	default:
		r.scanAndClassify(ctx)
	}
}

// scanAndClassify is the single-shot strategy tick: scan, classify every
// snapshot, track detections, enqueue the ones eligible for execution.
func (r *Runner) scanAndClassify(ctx context.Context) {
	params := r.Params()
	snapshots, err := r.deps.Scanner.Scan(ctx, params)
	if err != nil {
		if errors.Is(err, domain.ErrScanInProgress) {
			return
		}
		r.errs.Add(1)
		r.logger.Warn("scan failed", slog.String("error", err.Error()))
		if len(snapshots) == 0 {
			return
		}
	}
	r.scans.Add(1)

	var admitted []domain.Opportunity
	for _, snap := range snapshots {
		result := r.classifySnapshot(ctx, snap, params)
		if result.Opportunity == nil {
			continue
		}
		opp := *result.Opportunity
		r.detected.Add(1)

		if err := r.deps.Lifecycle.Track(ctx, opp); err != nil {
			r.errs.Add(1)
			r.logger.Warn("track failed",
				slog.String("market", opp.ConditionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !params.AutoExecute {
			continue
		}
		if opp.Strategy == domain.StrategyMintSplit && !classifier.MeetsConfidence(opp.Confidence, params.MinConfidence) {
			r.logger.Info("auto-execution gated by confidence",
				slog.String("opp_id", opp.ID),
				slog.String("confidence", string(opp.Confidence)),
			)
			continue
		}
		admitted = append(admitted, opp)
	}

	if len(admitted) > 0 {
		n := r.deps.Dispatcher.EnqueueBatch(ctx, admitted)
		r.executed.Add(int64(n))
		r.logger.Info("opportunities enqueued",
			slog.Int("detected", len(admitted)),
			slog.Int("admitted", n),
		)
	}
}

// classifySnapshot runs the pure classifier, fetching book depth first when
// the strategy needs it. A book fetch failure skips the market.
func (r *Runner) classifySnapshot(ctx context.Context, snap domain.MarketSnapshot, params domain.StrategyParams) classifier.Result {
	var books map[string]domain.OrderBook
	if r.strategy == domain.StrategyMintSplit {
		books = make(map[string]domain.OrderBook, len(snap.Outcomes))
		for _, out := range snap.Outcomes {
			book, err := r.deps.Books.GetBook(ctx, out.TokenID)
			if err != nil {
				r.logger.Debug("book fetch failed, market skipped",
					slog.String("market", snap.ConditionID),
					slog.String("token", out.TokenID),
					slog.String("error", err.Error()),
				)
				return classifier.Result{Reason: "book unavailable"}
			}
			books[out.TokenID] = book
		}
	}
	return classifier.Classify(r.strategy, snap, books, params)
}

// refreshQuotes is the market-making tick: refresh the quoter set from the
// latest scan, then tick every quoter.
func (r *Runner) refreshQuotes(ctx context.Context) {
	params := r.Params()
	r.scans.Add(1)

	snapshots, err := r.deps.Scanner.Scan(ctx, params)
	if err != nil && !errors.Is(err, domain.ErrScanInProgress) {
		r.errs.Add(1)
		r.logger.Warn("market refresh scan failed", slog.String("error", err.Error()))
	}
	if len(snapshots) > 0 {
		r.selectMarkets(snapshots, params)
	}

	r.mu.Lock()
	quoters := make([]*executor.Quoter, 0, len(r.quoters))
	for _, q := range r.quoters {
		quoters = append(quoters, q)
	}
	r.mu.Unlock()

	for _, q := range quoters {
		if err := q.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.errs.Add(1)
		}
	}
}

// selectMarkets keeps quoters for the most liquid binary markets, up to the
// configured cap, and shuts down quoters for markets that fell out.
func (r *Runner) selectMarkets(snapshots []domain.MarketSnapshot, params domain.StrategyParams) {
	maxMarkets := params.MaxMarkets
	if maxMarkets <= 0 {
		maxMarkets = 5
	}
	sort.Slice(snapshots, func(i, j int) bool { return snapshots[i].Liquidity > snapshots[j].Liquidity })

	want := make(map[string]domain.MarketSnapshot)
	for _, snap := range snapshots {
		if len(want) >= maxMarkets {
			break
		}
		if snap.OutcomeCount() != 2 {
			continue
		}
		want[snap.ConditionID] = snap
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, q := range r.quoters {
		if _, keep := want[id]; !keep {
			// Cancel outside the tick would race the loop; Shutdown is
			// called from the owning loop so this is safe.
			q.Shutdown(context.Background())
			delete(r.quoters, id)
		}
	}
	for id, snap := range want {
		if _, ok := r.quoters[id]; ok {
			continue
		}
		legs := make([]executor.QuoteLeg, 0, len(snap.Outcomes))
		for _, out := range snap.Outcomes {
			legs = append(legs, executor.QuoteLeg{Outcome: out.Label, TokenID: out.TokenID})
		}
		r.quoters[id] = executor.NewQuoter(
			id,
			legs,
			r.deps.Books,
			r.deps.Gateway,
			r.deps.Inventory,
			func(domain.StrategyType) domain.StrategyParams { return r.Params() },
			r.logger,
		)
	}
}
