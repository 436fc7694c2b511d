// Package lifecycle owns the opportunity state machine. All status
// transitions go through the Manager so the per-market in-flight uniqueness
// rule is enforced in exactly one place.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// Manager tracks every opportunity from creation to its terminal state and
// arbitrates status transitions. Reads hand out deep copies; the internal
// map is mutated only under the manager's own lock.
type Manager struct {
	store  domain.OpportunityStore
	logger *slog.Logger

	mu   sync.Mutex
	opps map[string]*domain.Opportunity
	// inflight maps conditionID -> opportunity ID for QUEUED/EXECUTING
	// opportunities. At most one entry per market.
	inflight map[string]string
}

// NewManager creates a Manager. The store may be nil in tests; persistence
// failures are logged and never block a transition.
func NewManager(store domain.OpportunityStore, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger.With(slog.String("component", "lifecycle")),
		opps:     make(map[string]*domain.Opportunity),
		inflight: make(map[string]string),
	}
}

// Track registers a freshly classified opportunity. It must be PENDING.
func (m *Manager) Track(ctx context.Context, opp domain.Opportunity) error {
	if opp.Status != domain.StatusPending {
		return fmt.Errorf("lifecycle: track %s: initial status must be PENDING, got %s", opp.ID, opp.Status)
	}
	m.mu.Lock()
	if _, ok := m.opps[opp.ID]; ok {
		m.mu.Unlock()
		return fmt.Errorf("lifecycle: track %s: %w", opp.ID, domain.ErrAlreadyExists)
	}
	stored := opp.Clone()
	m.opps[opp.ID] = &stored
	m.mu.Unlock()

	m.persist(ctx, stored, true)
	return nil
}

// MarkQueued transitions PENDING -> QUEUED, enforcing that no other
// opportunity for the same market is already in flight.
func (m *Manager) MarkQueued(ctx context.Context, id string) error {
	return m.transition(ctx, id, domain.StatusQueued, func(opp *domain.Opportunity) error {
		if holder, ok := m.inflight[opp.ConditionID]; ok && holder != id {
			return fmt.Errorf("lifecycle: queue %s: %w (held by %s)", id, domain.ErrDuplicateInFlight, holder)
		}
		m.inflight[opp.ConditionID] = id
		now := time.Now().UTC()
		opp.QueuedAt = &now
		return nil
	})
}

// MarkExecuting transitions QUEUED -> EXECUTING when a worker dequeues the
// opportunity. An expired or cancelled opportunity fails the transition, so
// it can never start executing after the sweep caught it.
func (m *Manager) MarkExecuting(ctx context.Context, id string) error {
	return m.transition(ctx, id, domain.StatusExecuting, func(opp *domain.Opportunity) error {
		now := time.Now().UTC()
		opp.StartedAt = &now
		return nil
	})
}

// Outcome is the executor's final report for one opportunity.
type Outcome struct {
	Status       domain.OpportunityStatus // SUCCESS, PARTIAL or FAILED
	ActualProfit float64
	Tokens       []domain.TokenLeg
	Steps        []domain.ExecutionStep
	ErrorMessage string
	RetryCount   int
}

// Complete transitions EXECUTING to the given terminal outcome and records
// the realized result.
func (m *Manager) Complete(ctx context.Context, id string, out Outcome) error {
	switch out.Status {
	case domain.StatusSuccess, domain.StatusPartial, domain.StatusFailed:
	default:
		return fmt.Errorf("lifecycle: complete %s: %s is not an execution outcome", id, out.Status)
	}
	return m.transition(ctx, id, out.Status, func(opp *domain.Opportunity) error {
		now := time.Now().UTC()
		opp.CompletedAt = &now
		opp.ActualProfit = out.ActualProfit
		opp.ErrorMessage = out.ErrorMessage
		opp.RetryCount = out.RetryCount
		if out.Tokens != nil {
			opp.Tokens = out.Tokens
		}
		if out.Steps != nil {
			opp.Steps = append(opp.Steps, out.Steps...)
		}
		m.releaseInFlight(opp.ConditionID, id)
		return nil
	})
}

// Cancel moves any non-terminal opportunity to CANCELLED (operator action).
func (m *Manager) Cancel(ctx context.Context, id, reason string) error {
	return m.transition(ctx, id, domain.StatusCancelled, func(opp *domain.Opportunity) error {
		now := time.Now().UTC()
		opp.CompletedAt = &now
		opp.ErrorMessage = reason
		m.releaseInFlight(opp.ConditionID, id)
		return nil
	})
}

// releaseInFlight drops the market's claim only when this opportunity holds
// it. A PENDING duplicate leaving the system must not release another
// opportunity's QUEUED/EXECUTING claim. Callers hold m.mu.
func (m *Manager) releaseInFlight(conditionID, id string) {
	if holder, ok := m.inflight[conditionID]; ok && holder == id {
		delete(m.inflight, conditionID)
	}
}

// transition applies the state machine check, runs apply under the lock,
// then persists outside it.
func (m *Manager) transition(ctx context.Context, id string, to domain.OpportunityStatus, apply func(*domain.Opportunity) error) error {
	m.mu.Lock()
	opp, ok := m.opps[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("lifecycle: %s: %w", id, domain.ErrNotFound)
	}
	from := opp.Status
	if !domain.CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("lifecycle: %s: %w: %s -> %s", id, domain.ErrInvalidTransition, from, to)
	}
	if err := apply(opp); err != nil {
		m.mu.Unlock()
		return err
	}
	opp.Status = to
	snapshot := opp.Clone()
	m.mu.Unlock()

	m.logger.Info("opportunity transition",
		slog.String("opp_id", id),
		slog.String("market", snapshot.ConditionID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	m.persist(ctx, snapshot, false)
	return nil
}

// EvictTerminal drops terminal opportunities that completed before cutoff
// from the in-memory index, bounding the working set of a long-running
// process. The store keeps the full record.
func (m *Manager) EvictTerminal(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, opp := range m.opps {
		if !opp.Status.Terminal() {
			continue
		}
		done := opp.CreatedAt
		if opp.CompletedAt != nil {
			done = *opp.CompletedAt
		}
		if done.Before(cutoff) {
			delete(m.opps, id)
			evicted++
		}
	}
	return evicted
}

// HasInFlight reports whether some opportunity for the market is QUEUED or
// EXECUTING.
func (m *Manager) HasInFlight(conditionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.inflight[conditionID]
	return ok
}

// Get returns a copy of the opportunity.
func (m *Manager) Get(id string) (domain.Opportunity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	opp, ok := m.opps[id]
	if !ok {
		return domain.Opportunity{}, false
	}
	return opp.Clone(), true
}

// List returns copies of tracked opportunities matching the filter, newest
// first.
func (m *Manager) List(f domain.OpportunityFilter) []domain.Opportunity {
	m.mu.Lock()
	out := make([]domain.Opportunity, 0, len(m.opps))
	for _, opp := range m.opps {
		if f.Strategy != "" && opp.Strategy != f.Strategy {
			continue
		}
		if f.Status != "" && opp.Status != f.Status {
			continue
		}
		if f.ConditionID != "" && opp.ConditionID != f.ConditionID {
			continue
		}
		if f.Since != nil && opp.CreatedAt.Before(*f.Since) {
			continue
		}
		out = append(out, opp.Clone())
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// Counts returns how many tracked opportunities are in each status for the
// given strategy ("" for all).
func (m *Manager) Counts(strategy domain.StrategyType) map[domain.OpportunityStatus]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.OpportunityStatus]int64)
	for _, opp := range m.opps {
		if strategy != "" && opp.Strategy != strategy {
			continue
		}
		counts[opp.Status]++
	}
	return counts
}

// persist writes through to the store, logging failures instead of
// propagating: losing an audit write must not stall the pipeline.
func (m *Manager) persist(ctx context.Context, opp domain.Opportunity, create bool) {
	if m.store == nil {
		return
	}
	var err error
	if create {
		err = m.store.Create(ctx, opp)
	} else {
		err = m.store.Update(ctx, opp)
	}
	if err != nil {
		m.logger.Warn("opportunity persist failed",
			slog.String("opp_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}
