package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CoinGeckoFeed reads spot prices from a CoinGecko-compatible simple/price endpoint.
type CoinGeckoFeed struct {
	baseURL    string
	vsCurrency string
	httpClient *http.Client
}

func NewCoinGeckoFeed(baseURL string) *CoinGeckoFeed {
	return &CoinGeckoFeed{
		baseURL:    strings.TrimRight(baseURL, "/"),
		vsCurrency: "usd",
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (f *CoinGeckoFeed) SpotPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", asset)
	q.Set("vs_currencies", f.vsCurrency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price feed status: %d", resp.StatusCode)
	}

	var body map[string]map[string]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode response: %w", err)
	}

	price, ok := body[asset][f.vsCurrency]
	if !ok || !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("price feed: no %s/%s price", asset, f.vsCurrency)
	}
	return price, nil
}
