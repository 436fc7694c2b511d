package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// BookClient fetches orderbook depth from the CLOB REST API. The book
// endpoint is unauthenticated. It implements domain.BookSource.
type BookClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBookClient creates a book client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewBookClient(baseURL string) *BookClient {
	return &BookClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetBook returns the current depth snapshot for one token.
func (b *BookClient) GetBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/book?"+params.Encode(), nil)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/books: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/books: get book %s: %w", tokenID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/books: read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/books: get book %s: %w", tokenID, err)
	}

	var apiBook APIBook
	if err := json.Unmarshal(body, &apiBook); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/books: decode book: %w", err)
	}
	if apiBook.AssetID == "" {
		apiBook.AssetID = tokenID
	}

	return apiBook.ToDomainBook(), nil
}
