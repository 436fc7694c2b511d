package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// MarketCache implements domain.MarketCache using JSON-serialized snapshots
// with a per-entry TTL.
//
// Key schema:
//
//	scan:market:{conditionID} - JSON-encoded MarketSnapshot
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(conditionID string) string {
	return "scan:market:" + conditionID
}

// Set stores a snapshot with the given TTL.
func (mc *MarketCache) Set(ctx context.Context, snap domain.MarketSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", snap.ConditionID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(snap.ConditionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", snap.ConditionID, err)
	}
	return nil
}

// Get retrieves a snapshot by condition ID. It returns domain.ErrNotFound
// when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, conditionID string) (domain.MarketSnapshot, error) {
	data, err := mc.rdb.Get(ctx, marketKey(conditionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketSnapshot{}, domain.ErrNotFound
		}
		return domain.MarketSnapshot{}, fmt.Errorf("redis: get market %s: %w", conditionID, err)
	}

	var snap domain.MarketSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("redis: unmarshal market %s: %w", conditionID, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
