package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func binarySnapshot(yesPrice, noPrice float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		ConditionID: "cond-1",
		Question:    "Will it rain tomorrow?",
		Outcomes: []domain.Outcome{
			{TokenID: "tok-yes", Label: "Yes", Price: yesPrice},
			{TokenID: "tok-no", Label: "No", Price: noPrice},
		},
		PriceSum:  yesPrice + noPrice,
		Liquidity: 5000,
	}
}

func TestArbitrageLong(t *testing.T) {
	// Sum 0.95: buying a full set costs 0.95 and redeems for 1.00.
	snap := binarySnapshot(0.55, 0.40)
	params := domain.StrategyParams{MinSpread: 0.02, InvestmentAmount: 20}

	res := Arbitrage(snap, params)
	require.NotNil(t, res.Opportunity)
	opp := res.Opportunity

	assert.Equal(t, domain.StrategyArbitrageLong, opp.Strategy)
	assert.Equal(t, domain.StatusPending, opp.Status)
	assert.InDelta(t, 0.95, opp.PriceSum, 1e-9)
	assert.InDelta(t, 0.05, opp.Spread, 1e-9)
	// 20 / 0.95 sets redeeming $1 each: profit = 20 * 0.05 / 0.95.
	assert.InDelta(t, 20*(1-0.95)/0.95, opp.ExpectedProfit, 1e-9)

	require.Len(t, opp.Tokens, 2)
	for _, leg := range opp.Tokens {
		assert.InDelta(t, 20/0.95, leg.Size, 1e-9)
		assert.Equal(t, "pending", leg.Status)
	}
}

func TestArbitrageShort(t *testing.T) {
	// Sum 1.06: selling a full set realizes 1.06 against a $1 liability.
	snap := binarySnapshot(0.56, 0.50)
	params := domain.StrategyParams{MinSpread: 0.02, InvestmentAmount: 100}

	res := Arbitrage(snap, params)
	require.NotNil(t, res.Opportunity)
	opp := res.Opportunity

	assert.Equal(t, domain.StrategyArbitrageShort, opp.Strategy)
	assert.InDelta(t, 100*0.06, opp.ExpectedProfit, 1e-9)
	require.Len(t, opp.Tokens, 2)
	assert.InDelta(t, 100, opp.Tokens[0].Size, 1e-9)
}

func TestArbitrageWithinBand(t *testing.T) {
	tests := []struct {
		name string
		sum  float64
	}{
		{"exactly fair", 1.00},
		{"under but inside spread", 0.99},
		{"over but inside spread", 1.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := binarySnapshot(tt.sum/2, tt.sum/2)
			res := Arbitrage(snap, domain.StrategyParams{MinSpread: 0.02, InvestmentAmount: 100})
			assert.Nil(t, res.Opportunity)
			assert.Contains(t, res.Reason, "within spread band")
		})
	}
}

func TestArbitrageMultiOutcome(t *testing.T) {
	snap := domain.MarketSnapshot{
		ConditionID: "cond-3way",
		Outcomes: []domain.Outcome{
			{TokenID: "tok-a", Label: "A", Price: 0.30},
			{TokenID: "tok-b", Label: "B", Price: 0.30},
			{TokenID: "tok-c", Label: "C", Price: 0.30},
		},
		PriceSum: 0.90,
	}
	res := Arbitrage(snap, domain.StrategyParams{MinSpread: 0.02, InvestmentAmount: 90})
	require.NotNil(t, res.Opportunity)
	assert.Equal(t, domain.StrategyArbitrageLong, res.Opportunity.Strategy)
	require.Len(t, res.Opportunity.Tokens, 3)
	// 90 / 0.90 = 100 sets.
	assert.InDelta(t, 100, res.Opportunity.Tokens[0].Size, 1e-9)
	assert.InDelta(t, 10, res.Opportunity.ExpectedProfit, 1e-9)
}

func TestArbitrageRejections(t *testing.T) {
	single := domain.MarketSnapshot{
		Outcomes: []domain.Outcome{{TokenID: "tok", Label: "Yes", Price: 0.5}},
		PriceSum: 0.5,
	}
	res := Arbitrage(single, domain.StrategyParams{InvestmentAmount: 100})
	assert.Nil(t, res.Opportunity)

	res = Arbitrage(binarySnapshot(0.4, 0.4), domain.StrategyParams{MinSpread: 0.02})
	assert.Nil(t, res.Opportunity)
	assert.Contains(t, res.Reason, "investment")
}

func TestClassifyDispatch(t *testing.T) {
	snap := binarySnapshot(0.45, 0.45)
	params := domain.StrategyParams{MinSpread: 0.02, InvestmentAmount: 100}

	res := Classify(domain.StrategyArbitrageLong, snap, nil, params)
	require.NotNil(t, res.Opportunity)

	res = Classify(domain.StrategyMarketMaking, snap, nil, params)
	assert.Nil(t, res.Opportunity)
}

func TestClassifyKeepsArbitrageDirectionsApart(t *testing.T) {
	params := domain.StrategyParams{MinSpread: 0.02, InvestmentAmount: 100}

	// Sum 0.95 is a LONG market; the short runner must not pick it up.
	long := binarySnapshot(0.55, 0.40)
	res := Classify(domain.StrategyArbitrageLong, long, nil, params)
	require.NotNil(t, res.Opportunity)
	assert.Equal(t, domain.StrategyArbitrageLong, res.Opportunity.Strategy)

	res = Classify(domain.StrategyArbitrageShort, long, nil, params)
	assert.Nil(t, res.Opportunity)
	assert.Contains(t, res.Reason, "opposite direction")

	// Sum 1.06 flips it: only the short runner takes the market.
	short := binarySnapshot(0.56, 0.50)
	res = Classify(domain.StrategyArbitrageLong, short, nil, params)
	assert.Nil(t, res.Opportunity)

	res = Classify(domain.StrategyArbitrageShort, short, nil, params)
	require.NotNil(t, res.Opportunity)
	assert.Equal(t, domain.StrategyArbitrageShort, res.Opportunity.Strategy)
}
