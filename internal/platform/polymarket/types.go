package polymarket

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number or a numeric string. Gamma sends
// liquidity and volume either way depending on the endpoint.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// decodeStringArray parses Gamma's doubly-encoded array fields, where a JSON
// string holds another JSON array: "[\"Yes\",\"No\"]".
func decodeStringArray(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(encoded), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	ConditionID     string    `json:"conditionId"`
	Slug            string    `json:"slug"`
	Active          flexBool  `json:"active"`
	Closed          flexBool  `json:"closed"`
	Outcomes        string    `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices   string    `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.5\",\"0.5\"]"
	ClobTokenIDs    string    `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	Liquidity       flexFloat `json:"liquidityNum"`
	Volume          flexFloat `json:"volumeNum"`
	Category        string    `json:"category"`
	EnableOrderBook bool      `json:"enableOrderBook"`
	NegRisk         bool      `json:"negRisk"`
	EndDateISO      string    `json:"endDateIso"`
}

// ToRawMarket converts a Gamma APIMarket into the normalized domain record
// the scanner consumes. Fields the API sends doubly-encoded are decoded here;
// a malformed array yields an error rather than a partial record.
func (m *APIMarket) ToRawMarket() (domain.RawMarket, error) {
	labels, err := decodeStringArray(m.Outcomes)
	if err != nil {
		return domain.RawMarket{}, err
	}
	priceStrs, err := decodeStringArray(m.OutcomePrices)
	if err != nil {
		return domain.RawMarket{}, err
	}
	tokenIDs, err := decodeStringArray(m.ClobTokenIDs)
	if err != nil {
		return domain.RawMarket{}, err
	}

	prices := make([]float64, 0, len(priceStrs))
	for _, s := range priceStrs {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.RawMarket{}, err
		}
		prices = append(prices, p)
	}

	return domain.RawMarket{
		ConditionID:     m.ConditionID,
		Question:        m.Question,
		OutcomeLabels:   labels,
		OutcomePrices:   prices,
		TokenIDs:        tokenIDs,
		Liquidity:       float64(m.Liquidity),
		Volume:          float64(m.Volume),
		EnableOrderBook: m.EnableOrderBook,
	}, nil
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIPriceLevel is a single bid/ask level in CLOB book responses.
type APIPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// APIBook is a full orderbook snapshot from GET /book.
type APIBook struct {
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market"`
	Bids      []APIPriceLevel `json:"bids"`
	Asks      []APIPriceLevel `json:"asks"`
	Timestamp string          `json:"timestamp"`
	Hash      string          `json:"hash"`
}

// ToDomainBook converts an APIBook to a domain.OrderBook with bids sorted
// best (highest) first and asks best (lowest) first. The CLOB does not
// guarantee level ordering, so it is enforced here.
func (b *APIBook) ToDomainBook() domain.OrderBook {
	book := domain.OrderBook{
		TokenID:   b.AssetID,
		Bids:      parseLevels(b.Bids),
		Asks:      parseLevels(b.Asks),
		Timestamp: parseWSTimestamp(b.Timestamp),
	}
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })
	return book
}

func parseLevels(levels []APIPriceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		p, perr := strconv.ParseFloat(lvl.Price, 64)
		s, serr := strconv.ParseFloat(lvl.Size, 64)
		if perr != nil || serr != nil || s <= 0 {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}

func parseWSTimestamp(raw string) time.Time {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	return time.Now()
}

// APIOrder represents an order as returned by the CLOB API.
type APIOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"` // "BUY" or "SELL"
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	CreatedAt    string `json:"created_at"`
}

// ToDomainOrder converts an APIOrder to a domain.Order.
func (a *APIOrder) ToDomainOrder() domain.Order {
	o := domain.Order{
		ID:      a.ID,
		TokenID: a.AssetID,
		Status:  a.Status,
	}
	switch a.Side {
	case "BUY":
		o.Side = domain.OrderSideBuy
	case "SELL":
		o.Side = domain.OrderSideSell
	}
	o.Price, _ = strconv.ParseFloat(a.Price, 64)
	o.Size, _ = strconv.ParseFloat(a.OriginalSize, 64)
	o.Filled, _ = strconv.ParseFloat(a.SizeMatched, 64)
	if t, err := time.Parse(time.RFC3339, a.CreatedAt); err == nil {
		o.CreatedAt = t
	}
	return o
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	TakingSize  string `json:"takingAmount,omitempty"`
	MakingSize  string `json:"makingAmount,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// --------------------------------------------------------------------------
// WebSocket DTOs
// --------------------------------------------------------------------------

// WSCommand is the JSON payload sent to the WebSocket to subscribe.
type WSCommand struct {
	Type    string   `json:"type"` // "subscribe" or "unsubscribe"
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}

// WSBookMessage is a full orderbook snapshot delivered over WebSocket. The
// wire shape matches APIBook with an event envelope.
type WSBookMessage struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market"`
	Bids      []APIPriceLevel `json:"bids"`
	Asks      []APIPriceLevel `json:"asks"`
	Timestamp string          `json:"timestamp"`
}

// ToDomainBook converts the WS snapshot to a domain.OrderBook.
func (m *WSBookMessage) ToDomainBook() domain.OrderBook {
	book := APIBook{
		AssetID:   m.AssetID,
		Market:    m.Market,
		Bids:      m.Bids,
		Asks:      m.Asks,
		Timestamp: m.Timestamp,
	}
	return book.ToDomainBook()
}
