// Package classifier turns market snapshots into opportunities. Every
// function here is pure: no I/O, no clocks beyond timestamping, so the
// strategy math can be tested exhaustively.
package classifier

import (
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Result is the outcome of classifying one market for one strategy.
// Opportunity is nil when the market does not qualify; Reason then carries
// a short human-readable explanation for debug logging.
type Result struct {
	Opportunity *domain.Opportunity
	Reason      string
}

// reject builds a no-opportunity result.
func reject(reason string) Result {
	return Result{Reason: reason}
}

// Classify evaluates one snapshot for the given strategy. Order-book depths
// are required for MINT_SPLIT (keyed by token ID) and ignored by the
// arbitrage strategies. MARKET_MAKING is not single-shot and is handled by
// Quotes instead.
func Classify(strategy domain.StrategyType, snap domain.MarketSnapshot, books map[string]domain.OrderBook, params domain.StrategyParams) Result {
	switch strategy {
	case domain.StrategyMintSplit:
		return MintSplit(snap, books, params)
	case domain.StrategyArbitrageLong, domain.StrategyArbitrageShort:
		res := Arbitrage(snap, params)
		// Arbitrage detects both directions; each runner only takes its own,
		// otherwise the long and short runners would emit duplicates for the
		// same market every scan.
		if res.Opportunity != nil && res.Opportunity.Strategy != strategy {
			return reject("price sum favors the opposite direction")
		}
		return res
	default:
		return reject("strategy not single-shot")
	}
}

// newOpportunity builds a PENDING opportunity shell shared by all
// strategies. Spread is the signed deviation of the price sum from 1;
// positive means under-priced.
func newOpportunity(strategy domain.StrategyType, snap domain.MarketSnapshot) domain.Opportunity {
	return domain.Opportunity{
		ID:          uuid.New().String(),
		ConditionID: snap.ConditionID,
		Question:    snap.Question,
		Strategy:    strategy,
		PriceSum:    snap.PriceSum,
		Spread:      1 - snap.PriceSum,
		Status:      domain.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}
