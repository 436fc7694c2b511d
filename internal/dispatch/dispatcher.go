package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/lifecycle"
)

// Executor runs one opportunity to its terminal outcome. Implemented by the
// executor package; faked in tests.
type Executor interface {
	Execute(ctx context.Context, opp domain.Opportunity) (lifecycle.Outcome, error)
}

// Params resolves the live strategy parameters so hot-reloaded retry and
// queue settings take effect without restarting workers.
type Params func(domain.StrategyType) domain.StrategyParams

// Dispatcher admits opportunities into per-strategy bounded queues and
// drains them with one worker per queue. Workers call the executor
// synchronously, so each strategy's executions are serialized.
type Dispatcher struct {
	deps   *Dependencies
	logger *slog.Logger
	queues queues
}

// Dependencies bundles what the dispatcher needs to run.
type Dependencies struct {
	Lifecycle *lifecycle.Manager
	Executor  Executor
	Params    Params
	Stats     domain.QueueStatsStore // optional
}

// New creates a Dispatcher.
func New(deps Dependencies, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		deps:   &deps,
		logger: logger.With(slog.String("component", "dispatcher")),
	}
}

// Enqueue admits one opportunity. On a full queue or a duplicate in-flight
// market the opportunity is rejected and stays PENDING; the caller decides
// whether to drop or retry on a later scan.
func (d *Dispatcher) Enqueue(ctx context.Context, opp domain.Opportunity) error {
	params := d.deps.Params(opp.Strategy)
	q := d.queues.get(opp.Strategy, params.QueueSize)

	if len(q.ch) >= q.maxSize {
		d.logger.Warn("queue full, rejecting opportunity",
			slog.String("queue", q.name),
			slog.String("opp_id", opp.ID),
		)
		return fmt.Errorf("dispatch: enqueue %s: %w", opp.ID, domain.ErrQueueFull)
	}

	// MarkQueued enforces the per-market uniqueness rule atomically.
	if err := d.deps.Lifecycle.MarkQueued(ctx, opp.ID); err != nil {
		return fmt.Errorf("dispatch: enqueue %s: %w", opp.ID, err)
	}

	select {
	case q.ch <- opp:
		q.pending.Add(1)
		return nil
	default:
		// Only the strategy's own loop enqueues, so this should not happen;
		// if it does, the sweep expires the stuck QUEUED entry.
		d.logger.Error("queue overflow after admission",
			slog.String("queue", q.name),
			slog.String("opp_id", opp.ID),
		)
		return fmt.Errorf("dispatch: enqueue %s: %w", opp.ID, domain.ErrQueueFull)
	}
}

// EnqueueBatch admits a scan's worth of opportunities most profitable
// first. Individual rejections are logged and skipped.
func (d *Dispatcher) EnqueueBatch(ctx context.Context, opps []domain.Opportunity) int {
	sortByProfit(opps)
	admitted := 0
	for _, opp := range opps {
		if err := d.Enqueue(ctx, opp); err != nil {
			if errors.Is(err, domain.ErrQueueFull) || errors.Is(err, domain.ErrDuplicateInFlight) {
				d.logger.Debug("batch admission rejected",
					slog.String("opp_id", opp.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			d.logger.Warn("batch admission failed",
				slog.String("opp_id", opp.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		admitted++
	}
	return admitted
}

// Run starts one worker per known strategy queue and blocks until the
// context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, strategy := range domain.StrategyTypes {
		params := d.deps.Params(strategy)
		q := d.queues.get(strategy, params.QueueSize)
		g.Go(func() error { return d.runWorker(gctx, q) })
	}
	return g.Wait()
}

// runWorker drains one queue FIFO, executing each item synchronously.
func (d *Dispatcher) runWorker(ctx context.Context, q *queue) error {
	q.running.Store(true)
	defer q.running.Store(false)

	log := d.logger.With(slog.String("queue", q.name))
	log.Info("queue worker started", slog.Int("capacity", q.maxSize))
	defer log.Info("queue worker stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case opp := <-q.ch:
			d.processItem(ctx, q, opp)
			q.pending.Add(-1)
			d.recordStats(ctx, q)
		}
	}
}

// processItem moves one opportunity QUEUED -> EXECUTING -> terminal,
// retrying transient execution failures with exponential backoff. No error
// here may kill the worker loop.
func (d *Dispatcher) processItem(ctx context.Context, q *queue, opp domain.Opportunity) {
	log := d.logger.With(
		slog.String("queue", q.name),
		slog.String("opp_id", opp.ID),
		slog.String("market", opp.ConditionID),
	)

	if err := d.deps.Lifecycle.MarkExecuting(ctx, opp.ID); err != nil {
		// Expired or cancelled while waiting in the queue: drop silently by
		// design, the lifecycle manager already accounted for it.
		log.Info("skipping dequeued opportunity", slog.String("error", err.Error()))
		return
	}

	params := d.deps.Params(opp.Strategy)
	outcome, err := d.executeWithRetry(ctx, opp, params, log)
	if err != nil {
		outcome = lifecycle.Outcome{
			Status:       domain.StatusFailed,
			ErrorMessage: err.Error(),
			RetryCount:   params.MaxRetries,
		}
	}

	if err := d.deps.Lifecycle.Complete(ctx, opp.ID, outcome); err != nil {
		log.Error("complete transition failed", slog.String("error", err.Error()))
	}

	q.processed.Add(1)
	if outcome.Status != domain.StatusSuccess {
		q.errors.Add(1)
	}
}

// executeWithRetry invokes the executor, retrying transient failures up to
// the configured limit with exponential backoff.
func (d *Dispatcher) executeWithRetry(ctx context.Context, opp domain.Opportunity, params domain.StrategyParams, log *slog.Logger) (lifecycle.Outcome, error) {
	backoff := params.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		execCtx := ctx
		var cancel context.CancelFunc
		if params.ExecTimeout > 0 {
			execCtx, cancel = context.WithTimeout(ctx, params.ExecTimeout)
		}
		outcome, err := d.deps.Executor.Execute(execCtx, opp)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			outcome.RetryCount = attempt
			return outcome, nil
		}
		lastErr = err

		if !domain.Transient(err) || attempt >= params.MaxRetries {
			return lifecycle.Outcome{}, fmt.Errorf("dispatch: execute %s after %d attempts: %w", opp.ID, attempt+1, lastErr)
		}

		delay := backoff << attempt
		log.Warn("transient execution failure, backing off",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return lifecycle.Outcome{}, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Status returns the current snapshot of every queue.
func (d *Dispatcher) Status() []domain.QueueStatus {
	qs := d.queues.all()
	out := make([]domain.QueueStatus, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.status())
	}
	return out
}

func (d *Dispatcher) recordStats(ctx context.Context, q *queue) {
	if d.deps.Stats == nil {
		return
	}
	if err := d.deps.Stats.Record(ctx, q.status()); err != nil {
		d.logger.Debug("queue stats record failed",
			slog.String("queue", q.name),
			slog.String("error", err.Error()),
		)
	}
}
