package executor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/inventory"
)

type quotePlaced struct {
	orderID string
	tokenID string
	side    domain.OrderSide
	price   float64
	size    float64
}

// quoteGateway assigns sequential order IDs and lets the test script which
// orders are still open on the next tick.
type quoteGateway struct {
	mu      sync.Mutex
	seq     int
	placed  []quotePlaced
	open    []domain.Order
	cancels []string
	merges  []float64
}

func (g *quoteGateway) PlaceOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size float64) (domain.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	id := fmt.Sprintf("q-%d", g.seq)
	g.placed = append(g.placed, quotePlaced{id, tokenID, side, price, size})
	return domain.OrderResult{OrderID: id, Success: true}, nil
}

func (g *quoteGateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, orderID)
	return nil
}

func (g *quoteGateway) ListOpenOrders(ctx context.Context) ([]domain.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open, nil
}

func (g *quoteGateway) Mint(ctx context.Context, conditionID string, amount float64, outcomeCount int) (domain.TxResult, error) {
	return domain.TxResult{Success: true}, nil
}

func (g *quoteGateway) Merge(ctx context.Context, conditionID string, amount float64) (domain.TxResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.merges = append(g.merges, amount)
	return domain.TxResult{TxHash: "0xmerge", Success: true}, nil
}

type staticBooks map[string]domain.OrderBook

func (b staticBooks) GetBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	book, ok := b[tokenID]
	if !ok {
		return domain.OrderBook{}, domain.ErrNotFound
	}
	return book, nil
}

func midBook(tokenID string) domain.OrderBook {
	return domain.OrderBook{
		TokenID: tokenID,
		Bids:    []domain.PriceLevel{{Price: 0.48, Size: 500}},
		Asks:    []domain.PriceLevel{{Price: 0.52, Size: 500}},
	}
}

func quoterParams() domain.StrategyParams {
	return domain.StrategyParams{
		SpreadPct:      0.04,
		QuoteSize:      25,
		SkewThreshold:  0.3,
		AutoMerge:      true,
		MergeThreshold: 20,
	}
}

func bothLegs() []QuoteLeg {
	return []QuoteLeg{
		{Outcome: "Yes", TokenID: "tok-yes"},
		{Outcome: "No", TokenID: "tok-no"},
	}
}

func TestQuoterTickQuotesBothOutcomes(t *testing.T) {
	gw := &quoteGateway{}
	inv := inventory.NewManager(gw, nil, testLogger())
	books := staticBooks{"tok-yes": midBook("tok-yes"), "tok-no": midBook("tok-no")}
	q := NewQuoter("cond-1", bothLegs(), books, gw, inv, fixedParams(quoterParams()), testLogger())

	require.NoError(t, q.Tick(context.Background()))

	require.Len(t, gw.placed, 4, "both sides of both outcome tokens get a quote")
	sides := make(map[string][]quotePlaced)
	for _, p := range gw.placed {
		sides[p.tokenID] = append(sides[p.tokenID], p)
	}
	for _, tokenID := range []string{"tok-yes", "tok-no"} {
		require.Len(t, sides[tokenID], 2)
		for _, p := range sides[tokenID] {
			if p.side == domain.OrderSideBuy {
				assert.InDelta(t, 0.49, p.price, 1e-9)
			} else {
				assert.InDelta(t, 0.51, p.price, 1e-9)
			}
			assert.InDelta(t, 25, p.size, 1e-9)
		}
	}
}

func TestQuoterFillsAccumulateBothSidesAndMerge(t *testing.T) {
	gw := &quoteGateway{}
	inv := inventory.NewManager(gw, nil, testLogger())
	books := staticBooks{"tok-yes": midBook("tok-yes"), "tok-no": midBook("tok-no")}
	q := NewQuoter("cond-1", bothLegs(), books, gw, inv, fixedParams(quoterParams()), testLogger())
	ctx := context.Background()

	require.NoError(t, q.Tick(ctx))
	require.Len(t, gw.placed, 4)

	// Both buys vanish from the open list (fully filled); both sells stay
	// open untouched.
	for _, p := range gw.placed {
		if p.side == domain.OrderSideSell {
			gw.open = append(gw.open, domain.Order{ID: p.orderID, Filled: 0})
		}
	}

	require.NoError(t, q.Tick(ctx))

	// 25 Yes and 25 No filled: the matched 25 cleared the merge threshold
	// and was redeemed for collateral in the same tick.
	require.Len(t, gw.merges, 1)
	assert.InDelta(t, 25, gw.merges[0], 1e-9)
	mi := inv.Inventory("cond-1")
	assert.InDelta(t, 0, mi.YesPosition, 1e-9)
	assert.InDelta(t, 0, mi.NoPosition, 1e-9)
}

func TestQuoterSkewShiftsLegsInOppositeDirections(t *testing.T) {
	gw := &quoteGateway{}
	inv := inventory.NewManager(gw, nil, testLogger())
	ctx := context.Background()
	// Heavily over-held on Yes: skew 1.0, well past the 0.3 threshold.
	require.NoError(t, inv.RecordFill(ctx, "cond-1", "Yes", "tok-yes", domain.OrderSideBuy, 0.50, 100))

	books := staticBooks{"tok-yes": midBook("tok-yes"), "tok-no": midBook("tok-no")}
	q := NewQuoter("cond-1", bothLegs(), books, gw, inv, fixedParams(quoterParams()), testLogger())
	require.NoError(t, q.Tick(ctx))

	byKey := make(map[string]float64)
	for _, p := range gw.placed {
		byKey[p.tokenID+"/"+string(p.side)] = p.price
	}
	// The Yes token quotes shift down to shed the over-held side; the No
	// token sees the mirror image and shifts up.
	assert.InDelta(t, 0.48, byKey["tok-yes/"+string(domain.OrderSideBuy)], 1e-9)
	assert.InDelta(t, 0.50, byKey["tok-yes/"+string(domain.OrderSideSell)], 1e-9)
	assert.InDelta(t, 0.50, byKey["tok-no/"+string(domain.OrderSideBuy)], 1e-9)
	assert.InDelta(t, 0.52, byKey["tok-no/"+string(domain.OrderSideSell)], 1e-9)
}
