package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/lifecycle"
)

// executeMintSplit mints one full outcome set, then sells each leg
// sequentially. The mint must succeed before any sell is attempted; after
// that, one leg's sell failure does not abort the remaining legs; we keep
// selling what we hold. Actual profit is realized proceeds minus the mint
// cost.
func (e *Executor) executeMintSplit(ctx context.Context, opp domain.Opportunity, params domain.StrategyParams, log *slog.Logger) (lifecycle.Outcome, error) {
	mintAmount := opp.InvestmentAmount
	var steps []domain.ExecutionStep
	appendStep := func(action, status, txHash, errMsg string) {
		steps = append(steps, newStep(len(opp.Steps)+len(steps), action, status, txHash, errMsg))
	}

	tx, err := e.gateway.Mint(ctx, opp.ConditionID, mintAmount, len(opp.Tokens))
	if err != nil {
		if domain.Transient(err) {
			return lifecycle.Outcome{}, fmt.Errorf("executor: mint %s: %w", opp.ID, err)
		}
		appendStep("mint", "failed", "", err.Error())
		return lifecycle.Outcome{
			Status:       domain.StatusFailed,
			Tokens:       opp.Tokens,
			Steps:        steps,
			ErrorMessage: fmt.Sprintf("mint failed: %v", err),
		}, nil
	}
	if !tx.Success {
		appendStep("mint", "failed", tx.TxHash, tx.Message)
		return lifecycle.Outcome{
			Status:       domain.StatusFailed,
			Tokens:       opp.Tokens,
			Steps:        steps,
			ErrorMessage: "mint rejected: " + tx.Message,
		}, nil
	}
	appendStep("mint", "confirmed", tx.TxHash, "")
	log.Info("mint confirmed", slog.String("tx_hash", tx.TxHash), slog.Float64("amount", mintAmount))

	legs := make([]domain.TokenLeg, len(opp.Tokens))
	copy(legs, opp.Tokens)

	var proceeds float64
	var lastErr string
	for i := range legs {
		leg := &legs[i]
		action := "sell_" + leg.Outcome
		res, err := e.gateway.PlaceOrder(ctx, leg.TokenID, domain.OrderSideSell, leg.Price, leg.Size)
		if err != nil {
			leg.Status = "failed"
			lastErr = err.Error()
			appendStep(action, "failed", "", err.Error())
			log.Warn("leg sell failed, continuing remaining legs",
				slog.String("outcome", leg.Outcome),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !res.Success {
			leg.Status = "rejected"
			lastErr = res.Message
			appendStep(action, "rejected", "", res.Message)
			continue
		}
		leg.Status = "filled"
		leg.Filled = res.FilledSize
		proceeds += res.FilledPrice * res.FilledSize
		appendStep(action, "filled", "", "")
	}

	// The minted set cost exactly mintAmount of collateral.
	outcome := lifecycle.Outcome{
		Status:       outcomeFromLegs(legs),
		ActualProfit: proceeds - mintAmount,
		Tokens:       legs,
		Steps:        steps,
		ErrorMessage: lastErr,
	}
	// The mint itself succeeded, so even with zero sells this is PARTIAL:
	// we hold the minted set and can unwind it by merging.
	if outcome.Status == domain.StatusFailed {
		outcome.Status = domain.StatusPartial
	}
	return outcome, nil
}
