package lifecycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// terminalRetention is how long a finished opportunity stays in the
// in-memory index for operator queries before the sweep evicts it. The
// Postgres store remains the audit record.
const terminalRetention = time.Hour

// Sweeper expires opportunities stuck in PENDING or QUEUED longer than
// their strategy's max age. It runs on its own timer, independent of the
// dispatcher, so an opportunity that was never dequeued still expires.
type Sweeper struct {
	manager  *Manager
	maxAge   func(domain.StrategyType) time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. maxAge resolves the per-strategy expiry
// budget so hot-reloaded config changes apply on the next sweep.
func NewSweeper(manager *Manager, maxAge func(domain.StrategyType) time.Duration, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		manager:  manager,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger.With(slog.String("component", "lifecycle_sweep")),
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("lifecycle sweeper started", slog.Duration("interval", s.interval))
	defer s.logger.Info("lifecycle sweeper stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce expires every overdue PENDING/QUEUED opportunity. Exposed for
// tests and the operator interface.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := time.Now().UTC()
	expired := 0

	s.manager.mu.Lock()
	var overdue []string
	for id, opp := range s.manager.opps {
		if opp.Status != domain.StatusPending && opp.Status != domain.StatusQueued {
			continue
		}
		budget := s.maxAge(opp.Strategy)
		if budget <= 0 {
			budget = 5 * time.Minute
		}
		if now.Sub(opp.CreatedAt) > budget {
			overdue = append(overdue, id)
		}
	}
	s.manager.mu.Unlock()

	for _, id := range overdue {
		if err := s.expire(ctx, id); err != nil {
			s.logger.Warn("expire failed", slog.String("opp_id", id), slog.String("error", err.Error()))
			continue
		}
		expired++
	}
	if expired > 0 {
		s.logger.Info("expired stale opportunities", slog.Int("count", expired))
	}

	if evicted := s.manager.EvictTerminal(now.Add(-terminalRetention)); evicted > 0 {
		s.logger.Debug("evicted terminal opportunities", slog.Int("count", evicted))
	}
	return expired
}

func (s *Sweeper) expire(ctx context.Context, id string) error {
	return s.manager.transition(ctx, id, domain.StatusExpired, func(opp *domain.Opportunity) error {
		now := time.Now().UTC()
		opp.CompletedAt = &now
		s.manager.releaseInFlight(opp.ConditionID, id)
		return nil
	})
}
