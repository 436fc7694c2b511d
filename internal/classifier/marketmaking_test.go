package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func mmParams() domain.StrategyParams {
	return domain.StrategyParams{
		SpreadPct:     0.04,
		SkewThreshold: 0.3,
	}
}

func TestQuotesSymmetric(t *testing.T) {
	book := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 0.48, Size: 100}},
		Asks: []domain.PriceLevel{{Price: 0.52, Size: 100}},
	}
	q := Quotes(book, domain.MarketInventory{}, mmParams())

	assert.False(t, q.Skip)
	assert.False(t, q.Skewed)
	assert.InDelta(t, 0.50, q.Mid, 1e-9)
	assert.InDelta(t, 0.50*0.98, q.Buy, 1e-9)
	assert.InDelta(t, 0.50*1.02, q.Sell, 1e-9)
	assert.Less(t, q.Buy, q.Sell)
}

func TestQuotesSkipOnEmptyBook(t *testing.T) {
	q := Quotes(domain.OrderBook{}, domain.MarketInventory{}, mmParams())
	assert.True(t, q.Skip)
	assert.InDelta(t, 0.5, q.Mid, 1e-9)

	oneSided := domain.OrderBook{Bids: []domain.PriceLevel{{Price: 0.48, Size: 10}}}
	assert.True(t, Quotes(oneSided, domain.MarketInventory{}, mmParams()).Skip)
}

func TestQuotesSkewShiftsDownWhenOverheldYes(t *testing.T) {
	book := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 0.48, Size: 100}},
		Asks: []domain.PriceLevel{{Price: 0.52, Size: 100}},
	}
	neutral := Quotes(book, domain.MarketInventory{}, mmParams())

	// 80/20 yes/no is a 0.6 skew, double the threshold.
	skewed := Quotes(book, domain.MarketInventory{YesPosition: 80, NoPosition: 20}, mmParams())

	assert.True(t, skewed.Skewed)
	assert.Less(t, skewed.Buy, neutral.Buy)
	assert.Less(t, skewed.Sell, neutral.Sell)
	// The shift caps at one half-spread, so the quotes never cross.
	assert.Less(t, skewed.Buy, skewed.Sell)
}

func TestQuotesSkewShiftsUpWhenOverheldNo(t *testing.T) {
	book := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 0.48, Size: 100}},
		Asks: []domain.PriceLevel{{Price: 0.52, Size: 100}},
	}
	neutral := Quotes(book, domain.MarketInventory{}, mmParams())
	skewed := Quotes(book, domain.MarketInventory{YesPosition: 20, NoPosition: 80}, mmParams())

	assert.True(t, skewed.Skewed)
	assert.Greater(t, skewed.Buy, neutral.Buy)
	assert.Greater(t, skewed.Sell, neutral.Sell)
}

func TestQuotesBelowThresholdNotSkewed(t *testing.T) {
	book := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 0.48, Size: 100}},
		Asks: []domain.PriceLevel{{Price: 0.52, Size: 100}},
	}
	// 60/40 is a 0.2 skew, below the 0.3 threshold.
	q := Quotes(book, domain.MarketInventory{YesPosition: 60, NoPosition: 40}, mmParams())
	assert.False(t, q.Skewed)
}

func TestQuotesClampedToValidBand(t *testing.T) {
	book := domain.OrderBook{
		Bids: []domain.PriceLevel{{Price: 0.005, Size: 100}},
		Asks: []domain.PriceLevel{{Price: 0.015, Size: 100}},
	}
	q := Quotes(book, domain.MarketInventory{}, mmParams())
	assert.GreaterOrEqual(t, q.Buy, 0.01)
	assert.LessOrEqual(t, q.Sell, 0.99)
}
