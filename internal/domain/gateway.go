package domain

import (
	"context"
	"time"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Order is an open order as reported by the order gateway.
type Order struct {
	ID        string    `json:"id"`
	TokenID   string    `json:"token_id"`
	Side      OrderSide `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Filled    float64   `json:"filled"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderResult is the outcome of placing a single order.
type OrderResult struct {
	OrderID     string  `json:"order_id"`
	Success     bool    `json:"success"`
	FilledSize  float64 `json:"filled_size"`
	FilledPrice float64 `json:"filled_price"`
	Message     string  `json:"message,omitempty"`
	ShouldRetry bool    `json:"should_retry"`
}

// TxResult is the outcome of an on-chain mint or merge. Settlement finality
// is treated as opaque: callers only see success/failure and a tx hash.
type TxResult struct {
	TxHash  string `json:"tx_hash"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// MarketQuery filters a ListMarkets call against the market data gateway.
type MarketQuery struct {
	Active       bool
	Closed       bool
	Limit        int
	Offset       int
	LiquidityMin float64
	VolumeMin    float64
	Category     string
	TagID        string
}

// RawMarket is one market record as returned by the market data gateway,
// already normalized from the loosely-typed upstream encoding. The scanner
// converts it into a MarketSnapshot.
type RawMarket struct {
	ConditionID     string
	Question        string
	OutcomeLabels   []string
	OutcomePrices   []float64
	TokenIDs        []string
	Liquidity       float64
	Volume          float64
	EnableOrderBook bool
}

// MarketDataGateway supplies paginated market snapshots.
type MarketDataGateway interface {
	ListMarkets(ctx context.Context, q MarketQuery) ([]RawMarket, error)
}

// BookSource supplies order-book depth per token.
type BookSource interface {
	GetBook(ctx context.Context, tokenID string) (OrderBook, error)
}

// OrderGateway places and cancels orders and performs the on-chain
// mint (split) and merge operations.
type OrderGateway interface {
	PlaceOrder(ctx context.Context, tokenID string, side OrderSide, price, size float64) (OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
	ListOpenOrders(ctx context.Context) ([]Order, error)
	Mint(ctx context.Context, conditionID string, amount float64, outcomeCount int) (TxResult, error)
	Merge(ctx context.Context, conditionID string, amount float64) (TxResult, error)
}
