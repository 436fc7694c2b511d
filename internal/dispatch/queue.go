// Package dispatch owns the per-strategy execution queues and their
// workers. Admission control lives here; the in-flight uniqueness rule it
// consults lives in the lifecycle manager.
package dispatch

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// queue is one bounded FIFO of opportunity IDs with its counters.
type queue struct {
	name    string
	ch      chan domain.Opportunity
	maxSize int

	running   atomic.Bool
	processed atomic.Int64
	errors    atomic.Int64

	// pending counts items admitted but not yet finished processing.
	pending atomic.Int64
}

func newQueue(name string, size int) *queue {
	if size < 1 {
		size = 1
	}
	return &queue{
		name:    name,
		ch:      make(chan domain.Opportunity, size),
		maxSize: size,
	}
}

func (q *queue) status() domain.QueueStatus {
	state := domain.QueueStateStopped
	if q.running.Load() {
		state = domain.QueueStateRunning
	}
	return domain.QueueStatus{
		Name:           q.name,
		Size:           len(q.ch),
		Pending:        int(q.pending.Load()),
		MaxSize:        q.maxSize,
		State:          state,
		ProcessedCount: q.processed.Load(),
		ErrorCount:     q.errors.Load(),
	}
}

// queues is the set of per-strategy queues.
type queues struct {
	mu sync.Mutex
	m  map[domain.StrategyType]*queue
}

func (qs *queues) get(strategy domain.StrategyType, size int) *queue {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if qs.m == nil {
		qs.m = make(map[domain.StrategyType]*queue)
	}
	q, ok := qs.m[strategy]
	if !ok {
		q = newQueue(string(strategy), size)
		qs.m[strategy] = q
	}
	return q
}

func (qs *queues) all() []*queue {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	out := make([]*queue, 0, len(qs.m))
	for _, q := range qs.m {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// sortByProfit orders a batch of opportunities most profitable first, used
// when enqueueing the results of a full scan.
func sortByProfit(opps []domain.Opportunity) {
	sort.Slice(opps, func(i, j int) bool {
		return opps[i].ExpectedProfit > opps[j].ExpectedProfit
	})
}
