package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// RequestSigner produces the authentication headers for CLOB API requests.
// Key derivation and signature schemes live behind this interface; the
// client only attaches whatever headers the signer hands back.
type RequestSigner interface {
	SignRequest(method, path, body string) (map[string]string, error)
}

// ClobClient is the REST client for the Polymarket CLOB (Central Limit
// Order Book) API. It handles order placement, cancellation, queries, and
// the relayed split/merge operations. It implements domain.OrderGateway.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	signer     RequestSigner
	tickSize   decimal.Decimal
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// tickSize is the price grid orders are rounded onto; 0.01 when zero.
func NewClobClient(baseURL string, signer RequestSigner, tickSize float64) *ClobClient {
	if tickSize <= 0 {
		tickSize = 0.01
	}
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		tickSize: decimal.NewFromFloat(tickSize),
	}
}

// roundToTick snaps a price onto the exchange tick grid. Buys round down
// and sells round up so the rounded price is never more aggressive than
// the caller's limit.
func (c *ClobClient) roundToTick(price float64, side domain.OrderSide) float64 {
	d := decimal.NewFromFloat(price).Div(c.tickSize)
	if side == domain.OrderSideBuy {
		d = d.Floor()
	} else {
		d = d.Ceil()
	}
	f, _ := d.Mul(c.tickSize).Float64()
	return f
}

// PlaceOrder submits a limit order and returns the result. The order is
// rejected by the API rather than validated client-side; a rejection comes
// back as an error with the result's message attached.
func (c *ClobClient) PlaceOrder(ctx context.Context, tokenID string, side domain.OrderSide, price, size float64) (domain.OrderResult, error) {
	limit := c.roundToTick(price, side)

	body := map[string]any{
		"tokenID": tokenID,
		"side":    string(side),
		"price":   decimal.NewFromFloat(limit).String(),
		"size":    decimal.NewFromFloat(size).Round(2).String(),
		"type":    "GTC",
	}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: post order: %w", err)
	}

	var apiResult APIOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.OrderResult{}, fmt.Errorf("polymarket/clob: decode order result: %w", err)
	}

	result := domain.OrderResult{
		OrderID:     apiResult.OrderID,
		Success:     apiResult.Success,
		Message:     apiResult.ErrorMsg,
		ShouldRetry: apiResult.ShouldRetry,
	}
	if apiResult.Success {
		result.FilledSize, _ = decimalOrZero(apiResult.TakingSize)
		result.FilledPrice = limit
	} else {
		if apiResult.ShouldRetry {
			return result, fmt.Errorf("polymarket/clob: order rejected: %s: %w", apiResult.ErrorMsg, domain.ErrOrderRetryable)
		}
		return result, fmt.Errorf("polymarket/clob: order rejected: %s", apiResult.ErrorMsg)
	}

	return result, nil
}

// CancelOrder cancels a single order by its ID.
func (c *ClobClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]any{"orderID": orderID}

	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodDelete, "/order", body)
	if err != nil {
		return fmt.Errorf("polymarket/clob: cancel order %s: %w", orderID, err)
	}

	var result struct {
		Success  bool   `json:"success"`
		ErrorMsg string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("polymarket/clob: decode cancel response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("polymarket/clob: cancel failed: %s", result.ErrorMsg)
	}

	return nil
}

// ListOpenOrders returns all open orders for the authenticated account.
func (c *ClobClient) ListOpenOrders(ctx context.Context) ([]domain.Order, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodGet, "/orders", nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: list open orders: %w", err)
	}

	var apiOrders []APIOrder
	if err := json.Unmarshal(respBody, &apiOrders); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(apiOrders))
	for i := range apiOrders {
		orders = append(orders, apiOrders[i].ToDomainOrder())
	}

	return orders, nil
}

// Mint splits collateral into one full set of outcome tokens per unit via
// the relayed split operation. Settlement is opaque: success means the
// relayer accepted the transaction, not that it is final on chain.
func (c *ClobClient) Mint(ctx context.Context, conditionID string, amount float64, outcomeCount int) (domain.TxResult, error) {
	body := map[string]any{
		"conditionID":  conditionID,
		"amount":       decimal.NewFromFloat(amount).Round(2).String(),
		"outcomeCount": outcomeCount,
	}
	return c.relayedTx(ctx, "/relayer/split", body, "mint")
}

// Merge recombines complete sets of outcome tokens back into collateral.
func (c *ClobClient) Merge(ctx context.Context, conditionID string, amount float64) (domain.TxResult, error) {
	body := map[string]any{
		"conditionID": conditionID,
		"amount":      decimal.NewFromFloat(amount).Round(2).String(),
	}
	return c.relayedTx(ctx, "/relayer/merge", body, "merge")
}

func (c *ClobClient) relayedTx(ctx context.Context, path string, body map[string]any, op string) (domain.TxResult, error) {
	respBody, err := c.doAuthenticatedRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return domain.TxResult{}, fmt.Errorf("polymarket/clob: %s: %w", op, err)
	}

	var result struct {
		Success         bool   `json:"success"`
		TransactionHash string `json:"transactionHash"`
		ErrorMsg        string `json:"errorMsg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return domain.TxResult{}, fmt.Errorf("polymarket/clob: decode %s response: %w", op, err)
	}

	return domain.TxResult{
		TxHash:  result.TransactionHash,
		Success: result.Success,
		Message: result.ErrorMsg,
	}, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func decimalOrZero(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

// doAuthenticatedRequest builds, signs, sends, and reads an HTTP request
// against the CLOB API. It returns the raw response body.
func (c *ClobClient) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.signer != nil {
		headers, err := c.signer.SignRequest(method, path, bodyStr)
		if err != nil {
			return nil, fmt.Errorf("sign request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
