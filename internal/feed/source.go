package feed

import (
	"context"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// CachedBookSource serves book reads from the feed-maintained cache and
// falls back to the REST source on a miss. It implements domain.BookSource.
type CachedBookSource struct {
	cache    domain.BookCache
	fallback domain.BookSource
}

// NewCachedBookSource creates a CachedBookSource.
func NewCachedBookSource(cache domain.BookCache, fallback domain.BookSource) *CachedBookSource {
	return &CachedBookSource{cache: cache, fallback: fallback}
}

// GetBook returns the cached snapshot when present. Misses and cache errors
// both fall through to the fallback; the REST source is the authority.
func (s *CachedBookSource) GetBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	book, err := s.cache.Get(ctx, tokenID)
	if err == nil && (len(book.Bids) > 0 || len(book.Asks) > 0) {
		return book, nil
	}
	return s.fallback.GetBook(ctx, tokenID)
}
