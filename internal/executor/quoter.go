package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyedge/internal/classifier"
	"github.com/alanyoungcy/polyedge/internal/domain"
	"github.com/alanyoungcy/polyedge/internal/inventory"
)

// QuoteLeg names one outcome token the quoter makes a market on.
type QuoteLeg struct {
	Outcome string
	TokenID string
}

// quoteKey identifies one resting quote: which outcome, which side.
type quoteKey struct {
	outcome string
	side    domain.OrderSide
}

// restingOrder is one of our own quotes currently on the book.
type restingOrder struct {
	orderID string
	outcome string
	tokenID string
	side    domain.OrderSide
	price   float64
	size    float64
	filled  float64
}

// Quoter is the standing market-making loop for one market. Unlike the
// single-shot strategies it never terminates an opportunity: every refresh
// tick recomputes quotes from each leg's live book and the shared
// inventory, cancels the previous tick's resting orders, and places new
// ones. Both outcome tokens are quoted so inventory accumulates on both
// sides and matched pairs become mergeable. A partial failure in a tick
// (one quote rejected) is logged and retried on the next tick.
type Quoter struct {
	conditionID string
	legs        []QuoteLeg
	books       domain.BookSource
	gateway     domain.OrderGateway
	inventory   *inventory.Manager
	params      func(domain.StrategyType) domain.StrategyParams
	logger      *slog.Logger

	resting map[quoteKey]*restingOrder
}

// NewQuoter creates a Quoter for one market.
func NewQuoter(conditionID string, legs []QuoteLeg, books domain.BookSource, gateway domain.OrderGateway, inv *inventory.Manager, params func(domain.StrategyType) domain.StrategyParams, logger *slog.Logger) *Quoter {
	return &Quoter{
		conditionID: conditionID,
		legs:        legs,
		books:       books,
		gateway:     gateway,
		inventory:   inv,
		params:      params,
		logger: logger.With(
			slog.String("component", "quoter"),
			slog.String("market", conditionID),
		),
		resting: make(map[quoteKey]*restingOrder),
	}
}

// Tick runs one refresh cycle. Errors per quote are logged and swallowed so
// the loop owner can keep ticking; only context cancellation propagates.
func (q *Quoter) Tick(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	params := q.params(domain.StrategyMarketMaking)

	q.reconcileFills(ctx)

	inv := q.inventory.Inventory(q.conditionID)
	for _, leg := range q.legs {
		book, err := q.books.GetBook(ctx, leg.TokenID)
		if err != nil {
			q.logger.Warn("book fetch failed, skipping leg",
				slog.String("outcome", leg.Outcome),
				slog.String("error", err.Error()),
			)
			continue
		}

		quotes := classifier.Quotes(book, legInventory(inv, leg.Outcome), params)
		if quotes.Skip {
			q.logger.Debug("no market, skipping quote placement", slog.String("outcome", leg.Outcome))
			q.cancelLeg(ctx, leg.Outcome)
			continue
		}
		if quotes.Skewed {
			q.logger.Info("skew-adjusted quotes",
				slog.String("outcome", leg.Outcome),
				slog.Float64("skew", inv.Skew()),
				slog.Float64("buy", quotes.Buy),
				slog.Float64("sell", quotes.Sell),
			)
		}

		q.cancelLeg(ctx, leg.Outcome)
		q.placeQuote(ctx, leg, domain.OrderSideBuy, quotes.Buy, params)
		q.placeQuote(ctx, leg, domain.OrderSideSell, quotes.Sell, params)
	}

	if _, err := q.inventory.MaybeMerge(ctx, q.conditionID, params); err != nil {
		q.logger.Warn("auto merge failed", slog.String("error", err.Error()))
	}
	return nil
}

// legInventory returns the inventory as one leg's token sees it. The No
// token's book prices the No outcome, so the over-held side flips: holding
// too much Yes means quoting the No token higher, not lower.
func legInventory(inv domain.MarketInventory, outcome string) domain.MarketInventory {
	if outcome != "Yes" {
		inv.YesPosition, inv.NoPosition = inv.NoPosition, inv.YesPosition
		inv.YesCost, inv.NoCost = inv.NoCost, inv.YesCost
	}
	return inv
}

// reconcileFills compares our resting orders against the gateway's open
// order list. An order that disappeared filled completely; one still open
// may have filled partially. Confirmed fills feed the inventory manager.
func (q *Quoter) reconcileFills(ctx context.Context) {
	if len(q.resting) == 0 {
		return
	}
	open, err := q.gateway.ListOpenOrders(ctx)
	if err != nil {
		q.logger.Warn("open orders fetch failed", slog.String("error", err.Error()))
		return
	}
	byID := make(map[string]domain.Order, len(open))
	for _, o := range open {
		byID[o.ID] = o
	}

	for key, rest := range q.resting {
		cur, stillOpen := byID[rest.orderID]
		filledNow := rest.size
		if stillOpen {
			filledNow = cur.Filled
		}
		delta := filledNow - rest.filled
		if delta > 0 {
			if err := q.inventory.RecordFill(ctx, q.conditionID, rest.outcome, rest.tokenID, rest.side, rest.price, delta); err != nil {
				q.logger.Warn("fill record failed", slog.String("error", err.Error()))
			}
		}
		rest.filled = filledNow
		if !stillOpen {
			delete(q.resting, key)
		}
	}
}

// cancelLeg makes a best-effort cancel of one outcome's resting quotes.
func (q *Quoter) cancelLeg(ctx context.Context, outcome string) {
	for key, rest := range q.resting {
		if key.outcome != outcome {
			continue
		}
		q.cancelOne(ctx, key, rest)
	}
}

// cancelResting makes a best-effort cancel of every resting quote.
func (q *Quoter) cancelResting(ctx context.Context) {
	for key, rest := range q.resting {
		q.cancelOne(ctx, key, rest)
	}
}

func (q *Quoter) cancelOne(ctx context.Context, key quoteKey, rest *restingOrder) {
	if err := q.gateway.CancelOrder(ctx, rest.orderID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		q.logger.Warn("cancel failed, will retry next tick",
			slog.String("outcome", key.outcome),
			slog.String("side", string(key.side)),
			slog.String("order_id", rest.orderID),
			slog.String("error", err.Error()),
		)
		return
	}
	delete(q.resting, key)
}

// placeQuote places one side of one leg's quote if inventory limits allow.
func (q *Quoter) placeQuote(ctx context.Context, leg QuoteLeg, side domain.OrderSide, price float64, params domain.StrategyParams) {
	if err := q.inventory.CheckQuoting(q.conditionID, side, leg.Outcome, params); err != nil {
		q.logger.Debug("quoting suppressed",
			slog.String("outcome", leg.Outcome),
			slog.String("side", string(side)),
			slog.String("reason", err.Error()),
		)
		return
	}
	res, err := q.gateway.PlaceOrder(ctx, leg.TokenID, side, price, params.QuoteSize)
	if err != nil {
		q.logger.Warn("quote placement failed, retrying next tick",
			slog.String("outcome", leg.Outcome),
			slog.String("side", string(side)),
			slog.String("error", err.Error()),
		)
		return
	}
	if !res.Success {
		q.logger.Warn("quote rejected, retrying next tick",
			slog.String("outcome", leg.Outcome),
			slog.String("side", string(side)),
			slog.String("message", res.Message),
		)
		return
	}
	q.resting[quoteKey{outcome: leg.Outcome, side: side}] = &restingOrder{
		orderID: res.OrderID,
		outcome: leg.Outcome,
		tokenID: leg.TokenID,
		side:    side,
		price:   price,
		size:    params.QuoteSize,
		filled:  res.FilledSize,
	}
	q.logger.Debug("quote placed",
		slog.String("outcome", leg.Outcome),
		slog.String("side", string(side)),
		slog.Float64("price", price),
		slog.Float64("size", params.QuoteSize),
	)
}

// Shutdown cancels any remaining resting orders (best effort, used when the
// strategy stops).
func (q *Quoter) Shutdown(ctx context.Context) {
	q.cancelResting(ctx)
	if len(q.resting) > 0 {
		q.logger.Warn("resting orders left after shutdown", slog.Int("count", len(q.resting)))
	}
}

// String implements fmt.Stringer for debug logging.
func (q *Quoter) String() string {
	return fmt.Sprintf("Quoter(%s)", q.conditionID)
}
