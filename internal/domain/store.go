package domain

import (
	"context"
	"time"
)

// OpportunityStore persists opportunities as audit records. The core only
// creates and updates; deletion is left to an external retention job.
type OpportunityStore interface {
	Create(ctx context.Context, opp Opportunity) error
	Update(ctx context.Context, opp Opportunity) error
	GetByID(ctx context.Context, id string) (Opportunity, error)
	List(ctx context.Context, f OpportunityFilter) ([]Opportunity, error)
	CountByStatus(ctx context.Context, strategy StrategyType) (map[OpportunityStatus]int64, error)
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]Opportunity, error)
}

// StrategyConfigRecord is a persisted per-strategy configuration.
type StrategyConfigRecord struct {
	Strategy  StrategyType
	Params    StrategyParams
	UpdatedAt time.Time
}

// StrategyConfigStore persists hot-reloadable strategy configurations.
type StrategyConfigStore interface {
	Get(ctx context.Context, strategy StrategyType) (StrategyConfigRecord, error)
	Upsert(ctx context.Context, rec StrategyConfigRecord) error
	List(ctx context.Context) ([]StrategyConfigRecord, error)
}

// InventoryStore persists market-making inventory positions so a restart
// resumes from the last confirmed fills.
type InventoryStore interface {
	Upsert(ctx context.Context, pos InventoryPosition) error
	ListByMarket(ctx context.Context, conditionID string) ([]InventoryPosition, error)
	List(ctx context.Context) ([]InventoryPosition, error)
}

// QueueStatsStore records periodic queue status samples for operators.
type QueueStatsStore interface {
	Record(ctx context.Context, status QueueStatus) error
	Latest(ctx context.Context) ([]QueueStatus, error)
}

// MarketCache caches normalized market snapshots between scans.
type MarketCache interface {
	Set(ctx context.Context, snap MarketSnapshot, ttl time.Duration) error
	Get(ctx context.Context, conditionID string) (MarketSnapshot, error)
}

// BookCache caches orderbook snapshots pushed by the price feed.
type BookCache interface {
	Set(ctx context.Context, book OrderBook, ttl time.Duration) error
	Get(ctx context.Context, tokenID string) (OrderBook, error)
}

// RateLimiter paces calls against upstream APIs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// ScanLock guards against overlapping full scans of the same strategy when
// multiple bot instances share a venue. TryAcquire returns ErrLockHeld when
// another holder owns the lock.
type ScanLock interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
