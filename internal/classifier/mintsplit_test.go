package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func deepBook(tokenID string, price float64) domain.OrderBook {
	return domain.OrderBook{
		TokenID: tokenID,
		Bids:    []domain.PriceLevel{{Price: price, Size: 10_000}},
		Asks:    []domain.PriceLevel{{Price: price + 0.02, Size: 10_000}},
	}
}

func TestMintSplitProfitable(t *testing.T) {
	snap := binarySnapshot(0.60, 0.45)
	books := map[string]domain.OrderBook{
		"tok-yes": deepBook("tok-yes", 0.60),
		"tok-no":  deepBook("tok-no", 0.45),
	}
	params := domain.StrategyParams{MintAmount: 100, MaxSlippage: 0.02}

	res := MintSplit(snap, books, params)
	require.NotNil(t, res.Opportunity, res.Reason)
	opp := res.Opportunity

	assert.Equal(t, domain.StrategyMintSplit, opp.Strategy)
	assert.InDelta(t, 100, opp.InvestmentAmount, 1e-9)
	// Selling 100 of each leg at 0.60 and 0.45 returns 105 against a 100 mint.
	assert.InDelta(t, 5, opp.ExpectedProfit, 1e-9)
	// Zero slippage on deep books; liquidity 5000 lands in the medium band.
	assert.Equal(t, domain.ConfidenceMedium, opp.Confidence)
	require.Len(t, opp.Tokens, 2)
	assert.InDelta(t, 100, opp.Tokens[0].Size, 1e-9)
}

func TestMintSplitUnprofitable(t *testing.T) {
	snap := binarySnapshot(0.50, 0.45)
	books := map[string]domain.OrderBook{
		"tok-yes": deepBook("tok-yes", 0.50),
		"tok-no":  deepBook("tok-no", 0.45),
	}
	res := MintSplit(snap, books, domain.StrategyParams{MintAmount: 100, MaxSlippage: 0.02})
	assert.Nil(t, res.Opportunity)
	assert.Contains(t, res.Reason, "not positive")
}

func TestMintSplitSlippageCap(t *testing.T) {
	snap := binarySnapshot(0.60, 0.50)
	// Thin yes book: selling 100 walks from 0.60 down to 0.50.
	books := map[string]domain.OrderBook{
		"tok-yes": {
			TokenID: "tok-yes",
			Bids:    []domain.PriceLevel{{Price: 0.60, Size: 50}, {Price: 0.50, Size: 100}},
		},
		"tok-no": deepBook("tok-no", 0.50),
	}
	res := MintSplit(snap, books, domain.StrategyParams{MintAmount: 100, MaxSlippage: 0.02})
	assert.Nil(t, res.Opportunity)
	assert.Contains(t, res.Reason, "slippage")
}

func TestMintSplitMissingBook(t *testing.T) {
	snap := binarySnapshot(0.60, 0.45)
	books := map[string]domain.OrderBook{"tok-yes": deepBook("tok-yes", 0.60)}
	res := MintSplit(snap, books, domain.StrategyParams{MintAmount: 100, MaxSlippage: 0.02})
	assert.Nil(t, res.Opportunity)
	assert.Contains(t, res.Reason, "missing book")
}

func TestSimulateSell(t *testing.T) {
	book := domain.OrderBook{
		TokenID: "tok",
		Bids: []domain.PriceLevel{
			{Price: 0.60, Size: 50},
			{Price: 0.55, Size: 50},
		},
	}

	fill, err := SimulateSell(book, 100)
	require.NoError(t, err)
	assert.InDelta(t, 0.575, fill.AvgPrice, 1e-9)
	assert.InDelta(t, (0.60-0.575)/0.60, fill.Slippage, 1e-9)
	assert.Equal(t, 0.60, fill.BestBid)
}

func TestSimulateSellEmptyBook(t *testing.T) {
	_, err := SimulateSell(domain.OrderBook{TokenID: "tok"}, 100)
	assert.ErrorIs(t, err, domain.ErrEmptyBook)
}

func TestSimulateSellInsufficientDepth(t *testing.T) {
	book := domain.OrderBook{
		TokenID: "tok",
		Bids:    []domain.PriceLevel{{Price: 0.60, Size: 30}},
	}
	_, err := SimulateSell(book, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientDepth)
}

func TestConfidenceBands(t *testing.T) {
	tests := []struct {
		name      string
		liquidity float64
		slippage  float64
		want      domain.Confidence
	}{
		{"deep and tight", 20_000, 0.001, domain.ConfidenceHigh},
		{"deep but slippy", 20_000, 0.01, domain.ConfidenceMedium},
		{"medium depth", 3_000, 0.01, domain.ConfidenceMedium},
		{"thin", 500, 0.001, domain.ConfidenceLow},
		{"very slippy", 20_000, 0.05, domain.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, confidence(tt.liquidity, tt.slippage))
		})
	}
}

func TestMeetsConfidence(t *testing.T) {
	assert.True(t, MeetsConfidence(domain.ConfidenceHigh, domain.ConfidenceMedium))
	assert.True(t, MeetsConfidence(domain.ConfidenceMedium, domain.ConfidenceMedium))
	assert.False(t, MeetsConfidence(domain.ConfidenceLow, domain.ConfidenceMedium))
	// Empty minimum admits everything.
	assert.True(t, MeetsConfidence(domain.ConfidenceLow, ""))
}
