package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
)

const yahooQuoteBaseURL = "https://query1.finance.yahoo.com/v7/finance/quote"

// Yahoo is a Yahoo Finance quote client, used as a keyless fallback
// behind Alpha Vantage
type Yahoo struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewYahoo creates a new Yahoo Finance provider
func NewYahoo(timeout time.Duration, log zerolog.Logger) *Yahoo {
	return &Yahoo{
		baseURL: yahooQuoteBaseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("provider", "yahoo").Logger(),
	}
}

// Name identifies the provider in configuration and logs
func (c *Yahoo) Name() string {
	return "yahoo"
}

// yahooQuoteResponse represents the response from the Yahoo Finance quote API
type yahooQuoteResponse struct {
	QuoteResponse struct {
		Result []map[string]interface{} `json:"result"`
		Error  interface{}              `json:"error"`
	} `json:"quoteResponse"`
}

// Lookup fetches the latest price for a symbol
func (c *Yahoo) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)

	params := url.Values{}
	params.Set("symbols", symbol)
	params.Set("fields", "symbol,regularMarketPrice,currentPrice")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Quote{}, transientErr(c.Name(), err)
	}

	// Yahoo rejects requests without a browser-looking agent
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Quote{}, transientErr(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.log.Warn().Str("symbol", symbol).Msg("Yahoo Finance rate limit exceeded")
		return domain.Quote{}, rateLimitedErr(c.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return domain.Quote{}, transientErr(c.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	var result yahooQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Quote{}, transientErr(c.Name(), fmt.Errorf("unparseable response: %w", err))
	}

	if result.QuoteResponse.Error != nil {
		return domain.Quote{}, transientErr(c.Name(), fmt.Errorf("api error: %v", result.QuoteResponse.Error))
	}

	if len(result.QuoteResponse.Result) == 0 {
		return domain.Quote{}, notFoundErr(c.Name(), symbol)
	}

	info := result.QuoteResponse.Result[0]

	// Prefer currentPrice, fall back to regularMarketPrice
	price := getFloat64(info, "currentPrice")
	if price == nil || *price <= 0 {
		price = getFloat64(info, "regularMarketPrice")
	}
	if price == nil || *price <= 0 {
		return domain.Quote{}, notFoundErr(c.Name(), symbol)
	}

	c.log.Debug().Str("symbol", symbol).Float64("price", *price).Msg("Quote fetched")

	return domain.Quote{Symbol: symbol, Price: *price}, nil
}

// getFloat64 safely extracts a numeric field from a decoded JSON object
func getFloat64(m map[string]interface{}, key string) *float64 {
	if val, ok := m[key]; ok && val != nil {
		switch v := val.(type) {
		case float64:
			return &v
		case int:
			f := float64(v)
			return &f
		case int64:
			f := float64(v)
			return &f
		}
	}
	return nil
}
