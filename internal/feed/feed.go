// Package feed bridges the real-time WebSocket book stream into the book
// cache. One consumer goroutine drains the stream; readers go through the
// cache and never touch the connection.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/platform/polymarket"
)

// BookFeed consumes book snapshots from the WebSocket client and writes them
// to the cache. Cache write failures are logged and dropped; the next
// snapshot for the token supersedes the lost one.
type BookFeed struct {
	ws     *polymarket.WSClient
	cache  domain.BookCache
	ttl    time.Duration
	logger *slog.Logger

	mu         sync.Mutex
	subscribed map[string]struct{}
}

// NewBookFeed creates a BookFeed. ttl bounds how long a cached snapshot
// stays valid; 30 seconds when zero.
func NewBookFeed(ws *polymarket.WSClient, cache domain.BookCache, ttl time.Duration, logger *slog.Logger) *BookFeed {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BookFeed{
		ws:         ws,
		cache:      cache,
		ttl:        ttl,
		logger:     logger.With(slog.String("component", "book_feed")),
		subscribed: make(map[string]struct{}),
	}
}

// Subscribe adds tokens to the live subscription set. Already-subscribed
// tokens are skipped.
func (f *BookFeed) Subscribe(tokenIDs []string) error {
	f.mu.Lock()
	fresh := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if _, ok := f.subscribed[id]; ok {
			continue
		}
		fresh = append(fresh, id)
	}
	f.mu.Unlock()

	if len(fresh) == 0 {
		return nil
	}
	if err := f.ws.Subscribe(fresh); err != nil {
		return err
	}

	f.mu.Lock()
	for _, id := range fresh {
		f.subscribed[id] = struct{}{}
	}
	f.mu.Unlock()
	return nil
}

// Run drains the stream until the context is cancelled. It is the single
// consumer of the WebSocket book channel.
func (f *BookFeed) Run(ctx context.Context) error {
	f.logger.Info("book feed started")
	defer f.logger.Info("book feed stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case book := <-f.ws.Books():
			if err := f.cache.Set(ctx, book, f.ttl); err != nil {
				f.logger.Debug("book cache write failed",
					slog.String("token", book.TokenID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
