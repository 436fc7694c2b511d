package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/lifecycle"
)

func newStep(idx int, action, status, txHash, errMsg string) domain.ExecutionStep {
	return domain.ExecutionStep{
		Step:      idx,
		Action:    action,
		Status:    status,
		Timestamp: time.Now().UTC(),
		TxHash:    txHash,
		Error:     errMsg,
	}
}

// executeArbitrage places every leg concurrently: the legs are independent
// orders with no ordering dependency. Each leg gets a slippage-bounded
// limit price; the final status is derived from how many legs filled.
func (e *Executor) executeArbitrage(ctx context.Context, opp domain.Opportunity, params domain.StrategyParams, log *slog.Logger) (lifecycle.Outcome, error) {
	side := domain.OrderSideBuy
	if opp.Strategy == domain.StrategyArbitrageShort {
		side = domain.OrderSideSell
		// A short sells a full set, which only works against inventory we
		// already hold. Without it, fail before touching the gateway.
		if e.inventory != nil {
			inv := e.inventory.Inventory(opp.ConditionID)
			for _, leg := range opp.Tokens {
				held := inv.YesPosition
				if leg.Outcome == "No" {
					held = inv.NoPosition
				}
				if held < leg.Size {
					return lifecycle.Outcome{
						Status:       domain.StatusFailed,
						Tokens:       opp.Tokens,
						ErrorMessage: fmt.Sprintf("insufficient inventory for %s leg: hold %.2f, need %.2f", leg.Outcome, held, leg.Size),
					}, nil
				}
			}
		}
	}

	legs := make([]domain.TokenLeg, len(opp.Tokens))
	copy(legs, opp.Tokens)

	type legResult struct {
		idx int
		res domain.OrderResult
		err error
	}
	results := make([]legResult, len(legs))

	var wg sync.WaitGroup
	for i := range legs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			leg := legs[i]
			res, err := e.gateway.PlaceOrder(ctx, leg.TokenID, side, limitPrice(leg.Price, side, params.MaxSlippage), leg.Size)
			results[i] = legResult{idx: i, res: res, err: err}
		}(i)
	}
	wg.Wait()

	var steps []domain.ExecutionStep
	var proceeds, cost float64
	var lastErr string
	for _, r := range results {
		leg := &legs[r.idx]
		action := fmt.Sprintf("%s_%s", sideAction(side), leg.Outcome)
		switch {
		case r.err != nil:
			leg.Status = "failed"
			lastErr = r.err.Error()
			steps = append(steps, newStep(len(opp.Steps)+len(steps), action, "failed", "", r.err.Error()))
		case !r.res.Success:
			leg.Status = "rejected"
			lastErr = r.res.Message
			steps = append(steps, newStep(len(opp.Steps)+len(steps), action, "rejected", "", r.res.Message))
		default:
			leg.Status = "filled"
			leg.Filled = r.res.FilledSize
			if side == domain.OrderSideBuy {
				cost += r.res.FilledPrice * r.res.FilledSize
			} else {
				proceeds += r.res.FilledPrice * r.res.FilledSize
			}
			steps = append(steps, newStep(len(opp.Steps)+len(steps), action, "filled", "", ""))
		}
	}

	status := outcomeFromLegs(legs)
	actual := realizedArbProfit(opp, side, legs, proceeds, cost)
	if status != domain.StatusSuccess {
		log.Warn("arbitrage finished with unfilled legs",
			slog.String("status", string(status)),
			slog.String("last_error", lastErr),
		)
	}
	return lifecycle.Outcome{
		Status:       status,
		ActualProfit: actual,
		Tokens:       legs,
		Steps:        steps,
		ErrorMessage: lastErr,
	}, nil
}

// limitPrice bounds the order price by the slippage cap: buys may pay up to
// price*(1+maxSlippage), sells accept down to price*(1-maxSlippage).
func limitPrice(price float64, side domain.OrderSide, maxSlippage float64) float64 {
	if side == domain.OrderSideBuy {
		return price * (1 + maxSlippage)
	}
	return price * (1 - maxSlippage)
}

func sideAction(side domain.OrderSide) string {
	if side == domain.OrderSideBuy {
		return "buy"
	}
	return "sell"
}

// realizedArbProfit computes the gross realized result of a long or short
// set. A fully filled long set redeems for $1 per set; a short realizes its
// sale proceeds against the $1 redemption liability per set sold.
func realizedArbProfit(opp domain.Opportunity, side domain.OrderSide, legs []domain.TokenLeg, proceeds, cost float64) float64 {
	if side == domain.OrderSideBuy {
		// Redemption pays $1 per complete set; incomplete sets redeem
		// nothing yet, which PARTIAL accounting reflects as negative.
		sets := minFilled(legs)
		return sets - cost
	}
	sets := minFilled(legs)
	return proceeds - sets
}

func minFilled(legs []domain.TokenLeg) float64 {
	if len(legs) == 0 {
		return 0
	}
	min := legs[0].Filled
	for _, leg := range legs[1:] {
		if leg.Filled < min {
			min = leg.Filled
		}
	}
	return min
}
