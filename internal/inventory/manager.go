// Package inventory tracks market-making positions and enforces the
// strategy's risk limits: skew, per-side and aggregate position caps,
// auto-merge of matched pairs, and the daily loss halt.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Merger performs the on-chain merge of matched outcome pairs. Satisfied by
// the order gateway.
type Merger interface {
	Merge(ctx context.Context, conditionID string, amount float64) (domain.TxResult, error)
}

// marketState is the mutable per-market inventory. Yes/No sizes never go
// negative.
type marketState struct {
	conditionID string
	yesTokenID  string
	noTokenID   string
	yes         float64
	no          float64
	yesCost     float64
	noCost      float64
	dailyLoss   float64
	halted      bool
}

// Manager owns all market-making inventory. It is mutated only by the
// market-making runner's goroutine plus the operator's reset call; every
// read hands out value copies.
type Manager struct {
	merger Merger
	store  domain.InventoryStore
	logger *slog.Logger

	mu      sync.Mutex
	markets map[string]*marketState
}

// NewManager creates a Manager. store may be nil; persistence failures are
// logged, never propagated.
func NewManager(merger Merger, store domain.InventoryStore, logger *slog.Logger) *Manager {
	return &Manager{
		merger:  merger,
		store:   store,
		logger:  logger.With(slog.String("component", "inventory")),
		markets: make(map[string]*marketState),
	}
}

// Restore loads persisted positions, typically at startup.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	positions, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("inventory: restore: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pos := range positions {
		st := m.stateLocked(pos.ConditionID)
		switch pos.Outcome {
		case "Yes":
			st.yes, st.yesCost, st.yesTokenID = pos.Size, pos.CostBasis, pos.TokenID
		case "No":
			st.no, st.noCost, st.noTokenID = pos.Size, pos.CostBasis, pos.TokenID
		}
	}
	m.logger.Info("inventory restored", slog.Int("positions", len(positions)))
	return nil
}

func (m *Manager) stateLocked(conditionID string) *marketState {
	st, ok := m.markets[conditionID]
	if !ok {
		st = &marketState{conditionID: conditionID}
		m.markets[conditionID] = st
	}
	return st
}

// RecordFill applies a confirmed fill to the market's inventory. A buy adds
// size and cost; a sell removes size, releases proportional cost basis, and
// books the realized gain or loss against the daily loss counter.
func (m *Manager) RecordFill(ctx context.Context, conditionID, outcome, tokenID string, side domain.OrderSide, price, size float64) error {
	if size <= 0 {
		return fmt.Errorf("inventory: record fill: size must be > 0, got %v", size)
	}

	m.mu.Lock()
	st := m.stateLocked(conditionID)
	pos, cost := &st.yes, &st.yesCost
	if outcome == "No" {
		pos, cost = &st.no, &st.noCost
		st.noTokenID = tokenID
	} else {
		st.yesTokenID = tokenID
	}

	var realized float64
	switch side {
	case domain.OrderSideBuy:
		*pos += size
		*cost += price * size
	case domain.OrderSideSell:
		if size > *pos {
			size = *pos
		}
		if *pos > 0 {
			avg := *cost / *pos
			realized = (price - avg) * size
			*cost -= avg * size
		}
		*pos -= size
		if *pos <= 0 {
			*pos, *cost = 0, 0
		}
	}
	if realized < 0 {
		st.dailyLoss += -realized
	}
	snap := m.snapshotLocked(st)
	m.mu.Unlock()

	m.logger.Info("fill recorded",
		slog.String("market", conditionID),
		slog.String("outcome", outcome),
		slog.String("side", string(side)),
		slog.Float64("price", price),
		slog.Float64("size", size),
		slog.Float64("realized", realized),
	)
	m.persist(ctx, snap)
	return nil
}

// Inventory returns a copy of the market's current inventory. Skew is
// always derived from the live positions, never cached.
func (m *Manager) Inventory(conditionID string) domain.MarketInventory {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.markets[conditionID]
	if !ok {
		return domain.MarketInventory{ConditionID: conditionID}
	}
	return m.snapshotLocked(st)
}

func (m *Manager) snapshotLocked(st *marketState) domain.MarketInventory {
	return domain.MarketInventory{
		ConditionID: st.conditionID,
		YesPosition: st.yes,
		NoPosition:  st.no,
		YesCost:     st.yesCost,
		NoCost:      st.noCost,
		DailyLoss:   st.dailyLoss,
		Halted:      st.halted,
	}
}

// CheckQuoting decides whether the given side of the market may be quoted
// under the configured limits. Returns ErrQuotingHalted after a daily-loss
// halt and ErrPositionLimit when a per-side or aggregate cap is hit.
func (m *Manager) CheckQuoting(conditionID string, side domain.OrderSide, outcome string, params domain.StrategyParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.stateLocked(conditionID)
	if params.MaxDailyLoss > 0 && st.dailyLoss >= params.MaxDailyLoss {
		st.halted = true
	}
	if st.halted {
		return fmt.Errorf("inventory: %s: %w (daily loss %.2f)", conditionID, domain.ErrQuotingHalted, st.dailyLoss)
	}

	// Buying accumulates the side; only buys are capped.
	if side != domain.OrderSideBuy {
		return nil
	}
	held := st.yes
	if outcome == "No" {
		held = st.no
	}
	if params.MaxPositionPerSide > 0 && held >= params.MaxPositionPerSide {
		return fmt.Errorf("inventory: %s %s: %w (held %.2f)", conditionID, outcome, domain.ErrPositionLimit, held)
	}
	if params.MaxOpenPosition > 0 {
		var total float64
		for _, other := range m.markets {
			total += other.yes + other.no
		}
		if total >= params.MaxOpenPosition {
			return fmt.Errorf("inventory: aggregate: %w (open %.2f)", domain.ErrPositionLimit, total)
		}
	}
	return nil
}

// MaybeMerge redeems matched yes/no pairs for collateral when auto-merge is
// enabled and the matched amount has reached the threshold. Both positions
// shrink by the merged amount, so skew strictly decreases (or the smaller
// side hits zero). Returns the merged amount, 0 when nothing was merged.
func (m *Manager) MaybeMerge(ctx context.Context, conditionID string, params domain.StrategyParams) (float64, error) {
	if !params.AutoMerge || m.merger == nil {
		return 0, nil
	}

	m.mu.Lock()
	st := m.stateLocked(conditionID)
	matched := st.yes
	if st.no < matched {
		matched = st.no
	}
	if matched < params.MergeThreshold || matched <= 0 {
		m.mu.Unlock()
		return 0, nil
	}
	m.mu.Unlock()

	res, err := m.merger.Merge(ctx, conditionID, matched)
	if err != nil {
		return 0, fmt.Errorf("inventory: merge %s: %w", conditionID, err)
	}
	if !res.Success {
		return 0, fmt.Errorf("inventory: merge %s rejected: %s", conditionID, res.Message)
	}

	m.mu.Lock()
	// Release proportional cost basis on both sides.
	if st.yes > 0 {
		st.yesCost -= st.yesCost / st.yes * matched
	}
	if st.no > 0 {
		st.noCost -= st.noCost / st.no * matched
	}
	st.yes -= matched
	st.no -= matched
	if st.yes <= 0 {
		st.yes, st.yesCost = 0, 0
	}
	if st.no <= 0 {
		st.no, st.noCost = 0, 0
	}
	snap := m.snapshotLocked(st)
	m.mu.Unlock()

	m.logger.Info("positions merged",
		slog.String("market", conditionID),
		slog.Float64("amount", matched),
		slog.String("tx_hash", res.TxHash),
	)
	m.persist(ctx, snap)
	return matched, nil
}

// ResetDailyLoss zeroes the loss counters and lifts halts. Called by the
// midnight cron and by the operator's manual reset.
func (m *Manager) ResetDailyLoss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.markets {
		st.dailyLoss = 0
		st.halted = false
	}
	m.logger.Info("daily loss counters reset")
}

// ResetMarket lifts the halt for one market (manual operator action).
func (m *Manager) ResetMarket(conditionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.markets[conditionID]; ok {
		st.dailyLoss = 0
		st.halted = false
	}
}

// Snapshot returns copies of every market's inventory.
func (m *Manager) Snapshot() []domain.MarketInventory {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.MarketInventory, 0, len(m.markets))
	for _, st := range m.markets {
		out = append(out, m.snapshotLocked(st))
	}
	return out
}

func (m *Manager) persist(ctx context.Context, inv domain.MarketInventory) {
	if m.store == nil {
		return
	}
	now := time.Now().UTC()
	m.mu.Lock()
	st := m.stateLocked(inv.ConditionID)
	yesToken, noToken := st.yesTokenID, st.noTokenID
	m.mu.Unlock()
	for _, pos := range []domain.InventoryPosition{
		{ConditionID: inv.ConditionID, Outcome: "Yes", TokenID: yesToken, Size: inv.YesPosition, CostBasis: inv.YesCost, UpdatedAt: now},
		{ConditionID: inv.ConditionID, Outcome: "No", TokenID: noToken, Size: inv.NoPosition, CostBasis: inv.NoCost, UpdatedAt: now},
	} {
		if err := m.store.Upsert(ctx, pos); err != nil {
			m.logger.Warn("inventory persist failed",
				slog.String("market", pos.ConditionID),
				slog.String("outcome", pos.Outcome),
				slog.String("error", err.Error()),
			)
		}
	}
}
