package classifier

import (
	"fmt"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// LegFill is the simulated result of selling one outcome leg into the book.
type LegFill struct {
	TokenID  string
	Outcome  string
	BestBid  float64
	AvgPrice float64
	Slippage float64
	Size     float64
}

// MintSplit evaluates minting a full outcome set and selling every leg into
// the current book depth. mintCost equals mintAmount: one unit of collateral
// mints one full set. The expected profit is the sum of size-weighted
// average sell proceeds minus the mint cost, gross of gas and fees.
func MintSplit(snap domain.MarketSnapshot, books map[string]domain.OrderBook, params domain.StrategyParams) Result {
	if len(snap.Outcomes) < 2 {
		return reject("fewer than two outcomes")
	}
	mintAmount := params.MintAmount
	if mintAmount <= 0 {
		return reject("no mint amount configured")
	}

	fills := make([]LegFill, 0, len(snap.Outcomes))
	var proceeds float64
	var worstSlippage float64
	for _, out := range snap.Outcomes {
		book, ok := books[out.TokenID]
		if !ok {
			return reject("missing book for token " + out.TokenID)
		}
		fill, err := SimulateSell(book, mintAmount)
		if err != nil {
			return reject(fmt.Sprintf("leg %s: %v", out.Label, err))
		}
		fill.Outcome = out.Label
		if fill.Slippage > params.MaxSlippage {
			return reject(fmt.Sprintf("leg %s slippage %.4f exceeds cap %.4f", out.Label, fill.Slippage, params.MaxSlippage))
		}
		if fill.Slippage > worstSlippage {
			worstSlippage = fill.Slippage
		}
		proceeds += fill.AvgPrice * mintAmount
		fills = append(fills, fill)
	}

	mintCost := mintAmount
	profit := proceeds - mintCost
	if profit <= 0 {
		return reject(fmt.Sprintf("expected profit %.4f not positive", profit))
	}

	opp := newOpportunity(domain.StrategyMintSplit, snap)
	opp.InvestmentAmount = mintCost
	opp.ExpectedProfit = profit
	opp.Confidence = confidence(snap.Liquidity, worstSlippage)
	opp.Tokens = make([]domain.TokenLeg, 0, len(fills))
	for _, fill := range fills {
		opp.Tokens = append(opp.Tokens, domain.TokenLeg{
			TokenID: fill.TokenID,
			Outcome: fill.Outcome,
			Price:   fill.AvgPrice,
			Size:    mintAmount,
			Status:  "pending",
		})
	}
	return Result{Opportunity: &opp}
}

// SimulateSell walks the bid side of the book computing the size-weighted
// average price of selling the given amount. Slippage is measured against
// the best bid: (best - avg) / best.
func SimulateSell(book domain.OrderBook, amount float64) (LegFill, error) {
	if len(book.Bids) == 0 {
		return LegFill{}, domain.ErrEmptyBook
	}
	best := book.Bids[0].Price
	if best <= 0 {
		return LegFill{}, domain.ErrEmptyBook
	}

	remaining := amount
	var notional float64
	for _, lvl := range book.Bids {
		if remaining <= 0 {
			break
		}
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		notional += take * lvl.Price
		remaining -= take
	}
	if remaining > 0 {
		return LegFill{}, fmt.Errorf("%w: %.2f of %.2f unfilled", domain.ErrInsufficientDepth, remaining, amount)
	}

	avg := notional / amount
	return LegFill{
		TokenID:  book.TokenID,
		BestBid:  best,
		AvgPrice: avg,
		Slippage: (best - avg) / best,
		Size:     amount,
	}, nil
}

// Confidence bands gating optional auto-execution. Thresholds follow the
// liquidity/slippage tiers used for manual review: deep books with near-zero
// slippage are safe to fire automatically, thin or slippy ones are not.
const (
	highLiquidityFloor   = 10_000.0
	mediumLiquidityFloor = 2_000.0
	highSlippageCeil     = 0.005
	mediumSlippageCeil   = 0.02
)

func confidence(liquidity, worstSlippage float64) domain.Confidence {
	switch {
	case liquidity >= highLiquidityFloor && worstSlippage <= highSlippageCeil:
		return domain.ConfidenceHigh
	case liquidity >= mediumLiquidityFloor && worstSlippage <= mediumSlippageCeil:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// MeetsConfidence reports whether got is at least the configured minimum
// tier. An empty minimum admits everything.
func MeetsConfidence(got, min domain.Confidence) bool {
	rank := func(c domain.Confidence) int {
		switch c {
		case domain.ConfidenceHigh:
			return 3
		case domain.ConfidenceMedium:
			return 2
		case domain.ConfidenceLow:
			return 1
		}
		return 0
	}
	return rank(got) >= rank(min)
}
