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

// BookCache implements domain.BookCache using JSON-serialized book snapshots
// with a per-entry TTL. The feed overwrites entries on every WebSocket
// update; a stale entry simply expires.
//
// Key schema:
//
//	book:{tokenID} - JSON-encoded OrderBook
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.Underlying()}
}

func bookKey(tokenID string) string {
	return "book:" + tokenID
}

// Set stores a book snapshot with the given TTL.
func (bc *BookCache) Set(ctx context.Context, book domain.OrderBook, ttl time.Duration) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s: %w", book.TokenID, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(book.TokenID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book %s: %w", book.TokenID, err)
	}
	return nil
}

// Get retrieves a book snapshot by token ID. It returns domain.ErrNotFound
// when the key does not exist.
func (bc *BookCache) Get(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	data, err := bc.rdb.Get(ctx, bookKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderBook{}, domain.ErrNotFound
		}
		return domain.OrderBook{}, fmt.Errorf("redis: get book %s: %w", tokenID, err)
	}

	var book domain.OrderBook
	if err := json.Unmarshal(data, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("redis: unmarshal book %s: %w", tokenID, err)
	}
	return book, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
