// Package service exposes the operator-facing control surface consumed by
// the external dashboard and REST layer.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyedge/internal/dispatch"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/inventory"
	"github.com/alanyoungcy/polyedge/internal/lifecycle"
	"github.com/alanyoungcy/polyedge/internal/strategy"
)

// Operator wires the operator operations onto the core components. All
// reads return copies; nothing here hands out live state.
type Operator struct {
	registry   *strategy.Registry
	lifecycle  *lifecycle.Manager
	dispatcher *dispatch.Dispatcher
	inventory  *inventory.Manager
	configs    domain.StrategyConfigStore // optional
	logger     *slog.Logger
}

// NewOperator creates an Operator.
func NewOperator(
	registry *strategy.Registry,
	lm *lifecycle.Manager,
	dispatcher *dispatch.Dispatcher,
	inv *inventory.Manager,
	configs domain.StrategyConfigStore,
	logger *slog.Logger,
) *Operator {
	return &Operator{
		registry:   registry,
		lifecycle:  lm,
		dispatcher: dispatcher,
		inventory:  inv,
		configs:    configs,
		logger:     logger.With(slog.String("component", "operator")),
	}
}

// StartStrategy starts the runner for the given strategy, optionally
// applying new parameters first. Configuration problems surface
// immediately; no retry loop is started for a strategy that cannot start.
func (o *Operator) StartStrategy(ctx context.Context, strategyType domain.StrategyType, params *domain.StrategyParams) error {
	runner, err := o.registry.Get(strategyType)
	if err != nil {
		return err
	}
	if params != nil {
		if err := runner.UpdateParams(*params); err != nil {
			return err
		}
		o.persistConfig(ctx, strategyType, *params)
	}
	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("operator: start %s: %w", strategyType, err)
	}
	o.logger.Info("strategy started", slog.String("strategy", string(strategyType)))
	return nil
}

// StopStrategy stops the runner. In-flight executions run to completion.
func (o *Operator) StopStrategy(ctx context.Context, strategyType domain.StrategyType) error {
	runner, err := o.registry.Get(strategyType)
	if err != nil {
		return err
	}
	if err := runner.Stop(ctx); err != nil {
		return fmt.Errorf("operator: stop %s: %w", strategyType, err)
	}
	o.logger.Info("strategy stopped", slog.String("strategy", string(strategyType)))
	return nil
}

// GetStatus reports one strategy's runtime status and opportunity counts.
func (o *Operator) GetStatus(strategyType domain.StrategyType) (domain.StrategyStatus, map[domain.OpportunityStatus]int64, error) {
	runner, err := o.registry.Get(strategyType)
	if err != nil {
		return domain.StrategyStatus{}, nil, err
	}
	return runner.Status(), o.lifecycle.Counts(strategyType), nil
}

// GetOpportunities lists tracked opportunities matching the filter.
func (o *Operator) GetOpportunities(f domain.OpportunityFilter) []domain.Opportunity {
	return o.lifecycle.List(f)
}

// CancelOpportunity cancels one non-terminal opportunity.
func (o *Operator) CancelOpportunity(ctx context.Context, id, reason string) error {
	return o.lifecycle.Cancel(ctx, id, reason)
}

// UpdateConfig hot-swaps a strategy's parameters; the running loop picks
// them up on its next tick.
func (o *Operator) UpdateConfig(ctx context.Context, strategyType domain.StrategyType, params domain.StrategyParams) error {
	runner, err := o.registry.Get(strategyType)
	if err != nil {
		return err
	}
	if err := runner.UpdateParams(params); err != nil {
		return err
	}
	o.persistConfig(ctx, strategyType, params)
	return nil
}

// QueueStatus returns the current snapshot of every execution queue.
func (o *Operator) QueueStatus() []domain.QueueStatus {
	return o.dispatcher.Status()
}

// InventorySnapshot returns every market's market-making inventory.
func (o *Operator) InventorySnapshot() []domain.MarketInventory {
	return o.inventory.Snapshot()
}

// ResetDailyLoss lifts a market's daily-loss quoting halt.
func (o *Operator) ResetDailyLoss(conditionID string) {
	o.inventory.ResetMarket(conditionID)
	o.logger.Info("daily loss reset", slog.String("market", conditionID))
}

func (o *Operator) persistConfig(ctx context.Context, strategyType domain.StrategyType, params domain.StrategyParams) {
	if o.configs == nil {
		return
	}
	err := o.configs.Upsert(ctx, domain.StrategyConfigRecord{
		Strategy: strategyType,
		Params:   params,
	})
	if err != nil {
		o.logger.Warn("config persist failed",
			slog.String("strategy", string(strategyType)),
			slog.String("error", err.Error()),
		)
	}
}
