package domain

import "time"

// Outcome is a single outcome leg of a market with its current best price.
type Outcome struct {
	TokenID string  `json:"token_id"`
	Label   string  `json:"label"`
	Price   float64 `json:"price"`
}

// MarketSnapshot is the normalized view of one market at scan time. It is
// immutable once produced by the scanner; a later scan of the same market
// supersedes it rather than mutating it.
type MarketSnapshot struct {
	ConditionID string    `json:"condition_id"`
	Question    string    `json:"question"`
	Outcomes    []Outcome `json:"outcomes"`
	PriceSum    float64   `json:"price_sum"`
	Liquidity   float64   `json:"liquidity"`
	Volume      float64   `json:"volume"`
	Timestamp   time.Time `json:"timestamp"`
}

// OutcomeCount returns the number of outcome legs.
func (m MarketSnapshot) OutcomeCount() int {
	return len(m.Outcomes)
}

// PriceLevel is one level of an orderbook side.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBook is the depth snapshot for a single token. Bids are sorted best
// (highest) first, asks best (lowest) first.
type OrderBook struct {
	TokenID   string       `json:"token_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the highest bid price, or 0 when the bid side is empty.
func (b OrderBook) BestBid() float64 {
	if len(b.Bids) == 0 {
		return 0
	}
	return b.Bids[0].Price
}

// BestAsk returns the lowest ask price, or 0 when the ask side is empty.
func (b OrderBook) BestAsk() float64 {
	if len(b.Asks) == 0 {
		return 0
	}
	return b.Asks[0].Price
}

// MidPrice returns the midpoint of the best bid and ask. A missing side on
// either book yields 0 so callers can treat the market as unquotable.
func (b OrderBook) MidPrice() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid <= 0 || ask <= 0 {
		return 0
	}
	return (bid + ask) / 2
}

// BidDepth sums the total size resting on the bid side.
func (b OrderBook) BidDepth() float64 {
	var total float64
	for _, lvl := range b.Bids {
		total += lvl.Size
	}
	return total
}
