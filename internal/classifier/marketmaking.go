package classifier

import "github.com/alanyoungcy/polyedge/internal/domain"

// Quote pair for one market-making tick. Skip is set when the book is too
// empty to quote against.
type QuotePair struct {
	Mid    float64
	Buy    float64
	Sell   float64
	Skip   bool
	Skewed bool
}

// Quote prices are clamped to the venue's valid band.
const (
	minQuotePrice = 0.01
	maxQuotePrice = 0.99
)

// Quotes computes the buy/sell quotes for one refresh tick of the
// market-making strategy. A zero best bid or ask means "no market": the mid
// collapses to a neutral 0.5 and quote placement is skipped for the tick.
//
// When inventory skew exceeds the configured threshold, both quotes are
// shifted toward the under-held side instead of being re-centered
// symmetrically: accumulating more of the over-held outcome is discouraged
// while unwinding it is made more attractive.
func Quotes(book domain.OrderBook, inv domain.MarketInventory, params domain.StrategyParams) QuotePair {
	bid, ask := book.BestBid(), book.BestAsk()
	if bid <= 0 || ask <= 0 {
		return QuotePair{Mid: 0.5, Skip: true}
	}

	mid := (bid + ask) / 2
	half := params.SpreadPct / 2
	q := QuotePair{
		Mid:  mid,
		Buy:  mid * (1 - half),
		Sell: mid * (1 + half),
	}

	skew := inv.Skew()
	if skew > params.SkewThreshold && inv.Total() > 0 {
		// Shift proportional to how far past the threshold we are, capped at
		// one full half-spread so the quotes never cross.
		excess := skew - params.SkewThreshold
		shift := mid * half * minF(excess/params.SkewThreshold, 1)
		if inv.OverheldYes() {
			// Over-held on yes: quote lower on both sides so the buy fills
			// less and the sell fills more.
			q.Buy -= shift
			q.Sell -= shift
		} else {
			q.Buy += shift
			q.Sell += shift
		}
		q.Skewed = true
	}

	q.Buy = clamp(q.Buy, minQuotePrice, maxQuotePrice)
	q.Sell = clamp(q.Sell, minQuotePrice, maxQuotePrice)
	return q
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
