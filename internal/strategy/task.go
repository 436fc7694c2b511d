package strategy

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ScheduledTask runs a tick function on an interval with an explicit
// overlap guard: a tick that is still running when the timer fires again
// causes the new firing to be skipped, not queued. Start and Stop are
// idempotent.
type ScheduledTask struct {
	name     string
	interval func() time.Duration
	tick     func(ctx context.Context)
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running atomic.Bool
	ticking atomic.Bool
}

// NewScheduledTask creates a task. interval is resolved before every sleep
// so hot-reloaded cadence changes take effect on the next tick.
func NewScheduledTask(name string, interval func() time.Duration, tick func(ctx context.Context), logger *slog.Logger) *ScheduledTask {
	return &ScheduledTask{
		name:     name,
		interval: interval,
		tick:     tick,
		logger:   logger.With(slog.String("task", name)),
	}
}

// Start launches the loop. Starting an already running task is a no-op.
func (t *ScheduledTask) Start(parent context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running.Load() {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running.Store(true)

	go func() {
		defer close(t.done)
		defer t.running.Store(false)
		t.logger.Info("scheduled task started")
		defer t.logger.Info("scheduled task stopped")

		for {
			interval := t.interval()
			if interval <= 0 {
				interval = time.Minute
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval):
			}
			t.runTick(ctx)
		}
	}()
}

// runTick executes one tick under the overlap guard. The tick itself runs
// inline in the loop goroutine, so the guard only trips when an external
// TriggerNow overlaps the loop.
func (t *ScheduledTask) runTick(ctx context.Context) {
	if !t.ticking.CompareAndSwap(false, true) {
		t.logger.Info("tick overlap, skipping")
		return
	}
	defer t.ticking.Store(false)
	t.tick(ctx)
}

// TriggerNow runs one tick immediately (operator-initiated scan). Skipped
// with a log line when a tick is already in progress.
func (t *ScheduledTask) TriggerNow(ctx context.Context) {
	t.runTick(ctx)
}

// Stop cancels the loop and waits for the in-progress tick, if any, to
// finish. A tick already running is allowed to complete rather than being
// aborted mid-flight.
func (t *ScheduledTask) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (t *ScheduledTask) Running() bool {
	return t.running.Load()
}
