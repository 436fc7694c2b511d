package domain

import "time"

// InventoryPosition tracks held size and cost basis for one (market, outcome)
// pair of the market-making strategy. Sizes never go negative; they are
// mutated only on confirmed fills or merges.
type InventoryPosition struct {
	ConditionID string    `json:"condition_id"`
	Outcome     string    `json:"outcome"`
	TokenID     string    `json:"token_id"`
	Size        float64   `json:"size"`
	CostBasis   float64   `json:"cost_basis"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AvgPrice returns the volume-weighted average entry price, or 0 for an
// empty position.
func (p InventoryPosition) AvgPrice() float64 {
	if p.Size <= 0 {
		return 0
	}
	return p.CostBasis / p.Size
}

// MarketInventory is the read-only snapshot of one market's market-making
// inventory exposed to other components.
type MarketInventory struct {
	ConditionID string  `json:"condition_id"`
	YesPosition float64 `json:"yes_position"`
	NoPosition  float64 `json:"no_position"`
	YesCost     float64 `json:"yes_cost"`
	NoCost      float64 `json:"no_cost"`
	DailyLoss   float64 `json:"daily_loss"`
	Halted      bool    `json:"halted"`
}

// Total returns the combined held size across both sides.
func (m MarketInventory) Total() float64 {
	return m.YesPosition + m.NoPosition
}

// Skew returns the imbalance ratio |yes-no|/(yes+no), 0 when nothing is held.
func (m MarketInventory) Skew() float64 {
	total := m.Total()
	if total <= 0 {
		return 0
	}
	diff := m.YesPosition - m.NoPosition
	if diff < 0 {
		diff = -diff
	}
	return diff / total
}

// OverheldYes reports whether the yes side holds more than the no side.
func (m MarketInventory) OverheldYes() bool {
	return m.YesPosition > m.NoPosition
}
