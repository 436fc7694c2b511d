// Package executor turns queued opportunities into orders against the
// order gateway. Each strategy has its own playbook; all of them append
// execution steps as they go so the audit trail survives partial failures.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/inventory"
	"github.com/alanyoungcy/polyedge/internal/lifecycle"
)

// Executor executes opportunities synchronously, one at a time per queue
// worker.
type Executor struct {
	gateway   domain.OrderGateway
	inventory *inventory.Manager
	params    func(domain.StrategyType) domain.StrategyParams
	logger    *slog.Logger
}

// New creates an Executor. The inventory manager is only consulted for
// fills that affect market-making inventory; it may be nil in tests of the
// other strategies.
func New(gateway domain.OrderGateway, inv *inventory.Manager, params func(domain.StrategyType) domain.StrategyParams, logger *slog.Logger) *Executor {
	return &Executor{
		gateway:   gateway,
		inventory: inv,
		params:    params,
		logger:    logger.With(slog.String("component", "executor")),
	}
}

// Execute runs the strategy-specific playbook for one opportunity and
// reports the terminal outcome. Transient gateway errors bubble up so the
// dispatcher can retry with backoff; anything else is folded into the
// outcome.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity) (lifecycle.Outcome, error) {
	log := e.logger.With(
		slog.String("opp_id", opp.ID),
		slog.String("market", opp.ConditionID),
		slog.String("strategy", string(opp.Strategy)),
	)
	log.Info("executing opportunity", slog.Float64("expected_profit", opp.ExpectedProfit))

	params := e.params(opp.Strategy)
	switch opp.Strategy {
	case domain.StrategyMintSplit:
		return e.executeMintSplit(ctx, opp, params, log)
	case domain.StrategyArbitrageLong, domain.StrategyArbitrageShort:
		return e.executeArbitrage(ctx, opp, params, log)
	default:
		return lifecycle.Outcome{}, fmt.Errorf("executor: %s: strategy %s has no playbook", opp.ID, opp.Strategy)
	}
}

// outcomeFromLegs derives the terminal status from how many legs filled.
func outcomeFromLegs(legs []domain.TokenLeg) domain.OpportunityStatus {
	filled := 0
	for _, leg := range legs {
		if leg.Status == "filled" {
			filled++
		}
	}
	switch {
	case filled == len(legs) && filled > 0:
		return domain.StatusSuccess
	case filled > 0:
		return domain.StatusPartial
	default:
		return domain.StatusFailed
	}
}
