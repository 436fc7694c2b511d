package classifier

import (
	"fmt"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Arbitrage classifies a sum-to-one arbitrage over all outcome legs of the
// market. It generalizes to N outcomes; nothing here assumes a binary
// market.
//
// LONG: when priceSum < 1 - minSpread, buying one unit of every outcome
// costs priceSum per set while exactly one outcome redeems for $1, so
// investment/priceSum sets yield a profit of investment*(1-priceSum)/priceSum.
//
// SHORT: when priceSum > 1 + minSpread, selling one full set realizes
// priceSum against a $1 redemption liability, so profit is
// investment*(priceSum-1). Short requires already holding the inventory to
// sell; the executor enforces that.
//
// Both profits are gross of fees. The expected profit is fixed at creation
// time and never recomputed.
func Arbitrage(snap domain.MarketSnapshot, params domain.StrategyParams) Result {
	if len(snap.Outcomes) < 2 {
		return reject("fewer than two outcomes")
	}
	if snap.PriceSum <= 0 {
		return reject("non-positive price sum")
	}
	investment := params.InvestmentAmount
	if investment <= 0 {
		return reject("no investment amount configured")
	}

	switch {
	case snap.PriceSum < 1-params.MinSpread:
		opp := newOpportunity(domain.StrategyArbitrageLong, snap)
		opp.InvestmentAmount = investment
		opp.ExpectedProfit = investment * (1 - snap.PriceSum) / snap.PriceSum
		// One set costs priceSum, so investment buys investment/priceSum sets.
		sets := investment / snap.PriceSum
		opp.Tokens = buildLegs(snap, sets)
		return Result{Opportunity: &opp}

	case snap.PriceSum > 1+params.MinSpread:
		opp := newOpportunity(domain.StrategyArbitrageShort, snap)
		opp.InvestmentAmount = investment
		opp.ExpectedProfit = investment * (snap.PriceSum - 1)
		opp.Tokens = buildLegs(snap, investment)
		return Result{Opportunity: &opp}
	}
	return reject(fmt.Sprintf("price sum %.4f within spread band", snap.PriceSum))
}

func buildLegs(snap domain.MarketSnapshot, size float64) []domain.TokenLeg {
	legs := make([]domain.TokenLeg, 0, len(snap.Outcomes))
	for _, out := range snap.Outcomes {
		legs = append(legs, domain.TokenLeg{
			TokenID: out.TokenID,
			Outcome: out.Label,
			Price:   out.Price,
			Size:    size,
			Status:  "pending",
		})
	}
	return legs
}
