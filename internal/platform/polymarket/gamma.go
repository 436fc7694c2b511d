// Package polymarket holds the REST and WebSocket adapters for the
// Polymarket Gamma and CLOB APIs. Everything upstream-shaped stays in this
// package; callers only see domain types.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery and metadata. It implements
// domain.MarketDataGateway.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, logger *slog.Logger) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "gamma")),
	}
}

// ListMarkets returns one page of markets matching the query. Records whose
// doubly-encoded fields fail to decode are logged and skipped rather than
// failing the page.
func (g *GammaClient) ListMarkets(ctx context.Context, q domain.MarketQuery) ([]domain.RawMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	if q.Active {
		params.Set("active", "true")
	}
	params.Set("closed", strconv.FormatBool(q.Closed))
	if q.LiquidityMin > 0 {
		params.Set("liquidity_num_min", strconv.FormatFloat(q.LiquidityMin, 'f', -1, 64))
	}
	if q.VolumeMin > 0 {
		params.Set("volume_num_min", strconv.FormatFloat(q.VolumeMin, 'f', -1, 64))
	}
	if q.TagID != "" {
		params.Set("tag_id", q.TagID)
	}

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	markets := make([]domain.RawMarket, 0, len(apiMarkets))
	for i := range apiMarkets {
		m := &apiMarkets[i]
		if q.Category != "" && m.Category != q.Category {
			continue
		}
		raw, err := m.ToRawMarket()
		if err != nil {
			g.logger.Debug("malformed market skipped",
				slog.String("market", m.ConditionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		markets = append(markets, raw)
	}

	return markets, nil
}

// GetMarket returns a single market by its condition ID.
func (g *GammaClient) GetMarket(ctx context.Context, conditionID string) (domain.RawMarket, error) {
	params := url.Values{}
	params.Set("condition_ids", conditionID)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return domain.RawMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", conditionID, err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return domain.RawMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}
	if len(apiMarkets) == 0 {
		return domain.RawMarket{}, fmt.Errorf("polymarket/gamma: market %s: %w", conditionID, domain.ErrNotFound)
	}

	raw, err := apiMarkets[0].ToRawMarket()
	if err != nil {
		return domain.RawMarket{}, fmt.Errorf("polymarket/gamma: decode market %s: %w", conditionID, err)
	}
	return raw, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
