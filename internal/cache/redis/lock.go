package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// unlockLua deletes a lock key only if its value matches the caller's unique
// token, so one holder cannot release another holder's lock.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// ScanLock implements domain.ScanLock using Redis SETNX with a TTL and a
// Lua-based conditional unlock. It keeps concurrent bot instances from
// running overlapping scans against the same venue.
type ScanLock struct {
	rdb      *redis.Client
	unlockSc *redis.Script
}

// NewScanLock creates a ScanLock backed by the given Client.
func NewScanLock(c *Client) *ScanLock {
	return &ScanLock{
		rdb:      c.Underlying(),
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// TryAcquire attempts to obtain the lock for the given key with the
// specified TTL. On success it returns a release function that must be
// called to free the lock; the function is safe to call multiple times.
//
// It returns domain.ErrLockHeld when the lock is held by another party.
func (l *ScanLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := l.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true

		// Background context so release succeeds even when the caller's
		// context is already cancelled.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{lk}, token).Err()
	}

	return release, nil
}

// Compile-time interface check.
var _ domain.ScanLock = (*ScanLock)(nil)
