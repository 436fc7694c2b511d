package scanner

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wellFormed(conditionID string) domain.RawMarket {
	return domain.RawMarket{
		ConditionID:     conditionID,
		Question:        "Will X happen?",
		OutcomeLabels:   []string{"Yes", "No"},
		OutcomePrices:   []float64{0.55, 0.40},
		TokenIDs:        []string{"tok-yes-" + conditionID, "tok-no-" + conditionID},
		Liquidity:       5000,
		Volume:          10_000,
		EnableOrderBook: true,
	}
}

// pagedGateway serves scripted pages and records the queries it saw.
type pagedGateway struct {
	mu      sync.Mutex
	pages   [][]domain.RawMarket
	queries []domain.MarketQuery
}

func (g *pagedGateway) ListMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.RawMarket, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	page := len(g.queries)
	g.queries = append(g.queries, q)
	if page >= len(g.pages) {
		return nil, nil
	}
	return g.pages[page], nil
}

func TestNormalize(t *testing.T) {
	params := domain.StrategyParams{}

	t.Run("valid market", func(t *testing.T) {
		snap, err := Normalize(wellFormed("cond-1"), params)
		require.NoError(t, err)
		assert.Equal(t, "cond-1", snap.ConditionID)
		assert.InDelta(t, 0.95, snap.PriceSum, 1e-9)
		require.Len(t, snap.Outcomes, 2)
		assert.Equal(t, "Yes", snap.Outcomes[0].Label)
	})

	t.Run("missing condition id", func(t *testing.T) {
		m := wellFormed("")
		_, err := Normalize(m, params)
		assert.Error(t, err)
	})

	t.Run("single outcome", func(t *testing.T) {
		m := wellFormed("cond-1")
		m.OutcomeLabels = m.OutcomeLabels[:1]
		m.OutcomePrices = m.OutcomePrices[:1]
		m.TokenIDs = m.TokenIDs[:1]
		_, err := Normalize(m, params)
		assert.Error(t, err)
	})

	t.Run("count mismatch", func(t *testing.T) {
		m := wellFormed("cond-1")
		m.OutcomePrices = m.OutcomePrices[:1]
		_, err := Normalize(m, params)
		assert.ErrorContains(t, err, "mismatch")
	})

	t.Run("price out of range", func(t *testing.T) {
		m := wellFormed("cond-1")
		m.OutcomePrices[0] = 1.5
		_, err := Normalize(m, params)
		assert.ErrorContains(t, err, "out of range")
	})

	t.Run("missing token id", func(t *testing.T) {
		m := wellFormed("cond-1")
		m.TokenIDs[1] = ""
		_, err := Normalize(m, params)
		assert.ErrorContains(t, err, "missing token id")
	})

	t.Run("orderbook disabled", func(t *testing.T) {
		m := wellFormed("cond-1")
		m.EnableOrderBook = false
		_, err := Normalize(m, params)
		assert.ErrorContains(t, err, "orderbook disabled")
	})

	t.Run("below configured outcome minimum", func(t *testing.T) {
		p := params
		p.MinOutcomes = 3
		_, err := Normalize(wellFormed("cond-1"), p)
		assert.ErrorContains(t, err, "below configured minimum")
	})
}

func TestScanSkipsMalformedMarkets(t *testing.T) {
	broken := wellFormed("cond-broken")
	broken.TokenIDs = broken.TokenIDs[:1]

	gw := &pagedGateway{pages: [][]domain.RawMarket{
		{wellFormed("cond-1"), broken, wellFormed("cond-2")},
	}}
	s := New("test", gw, nil, nil, nil, testLogger())

	snaps, err := s.Scan(context.Background(), domain.StrategyParams{PageSize: 10, MaxScanPages: 3})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "cond-1", snaps[0].ConditionID)
	assert.Equal(t, "cond-2", snaps[1].ConditionID)
}

func TestScanPaginatesUntilShortPage(t *testing.T) {
	gw := &pagedGateway{pages: [][]domain.RawMarket{
		{wellFormed("cond-1"), wellFormed("cond-2")},
		{wellFormed("cond-3")},
	}}
	s := New("test", gw, nil, nil, nil, testLogger())

	snaps, err := s.Scan(context.Background(), domain.StrategyParams{
		PageSize:     2,
		MaxScanPages: 5,
		MinLiquidity: 1000,
	})
	require.NoError(t, err)
	assert.Len(t, snaps, 3)

	// The short second page ended the scan; no third request.
	require.Len(t, gw.queries, 2)
	assert.Equal(t, 0, gw.queries[0].Offset)
	assert.Equal(t, 2, gw.queries[1].Offset)
	assert.InDelta(t, 1000, gw.queries[0].LiquidityMin, 1e-9)
	assert.True(t, gw.queries[0].Active)
}

func TestScanHonorsPageCap(t *testing.T) {
	full := []domain.RawMarket{wellFormed("cond-1"), wellFormed("cond-2")}
	gw := &pagedGateway{pages: [][]domain.RawMarket{full, full, full, full}}
	s := New("test", gw, nil, nil, nil, testLogger())

	_, err := s.Scan(context.Background(), domain.StrategyParams{PageSize: 2, MaxScanPages: 2})
	require.NoError(t, err)
	assert.Len(t, gw.queries, 2)
}

func TestScanOverlapGuard(t *testing.T) {
	gw := &pagedGateway{}
	s := New("test", gw, nil, nil, nil, testLogger())
	s.inProgress.Store(true)

	_, err := s.Scan(context.Background(), domain.StrategyParams{})
	assert.ErrorIs(t, err, domain.ErrScanInProgress)
	assert.Empty(t, gw.queries)
}

type heldLock struct{}

func (heldLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestScanSkipsWhenLockHeldElsewhere(t *testing.T) {
	gw := &pagedGateway{}
	s := New("test", gw, nil, nil, heldLock{}, testLogger())

	_, err := s.Scan(context.Background(), domain.StrategyParams{})
	assert.ErrorIs(t, err, domain.ErrScanInProgress)
	assert.Empty(t, gw.queries)
}

func TestLastScanTime(t *testing.T) {
	gw := &pagedGateway{pages: [][]domain.RawMarket{{wellFormed("cond-1")}}}
	s := New("test", gw, nil, nil, nil, testLogger())
	assert.True(t, s.LastScanTime().IsZero())

	_, err := s.Scan(context.Background(), domain.StrategyParams{PageSize: 10, MaxScanPages: 1})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), s.LastScanTime(), time.Minute)
}
