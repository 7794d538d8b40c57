package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantage is an Alpha Vantage GLOBAL_QUOTE client
type AlphaVantage struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewAlphaVantage creates a new Alpha Vantage provider
func NewAlphaVantage(apiKey string, timeout time.Duration, log zerolog.Logger) *AlphaVantage {
	return &AlphaVantage{
		apiKey:  apiKey,
		baseURL: alphaVantageBaseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log.With().Str("provider", "alphavantage").Logger(),
	}
}

// Name identifies the provider in configuration and logs
func (c *AlphaVantage) Name() string {
	return "alphavantage"
}

// alphaVantageResponse is the GLOBAL_QUOTE payload. The "Information"
// field doubles as the rate-limit marker on the free tier.
type alphaVantageResponse struct {
	Information string            `json:"Information"`
	GlobalQuote map[string]string `json:"Global Quote"`
}

// Lookup fetches the latest price for a symbol
func (c *AlphaVantage) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Quote{}, transientErr(c.Name(), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Quote{}, transientErr(c.Name(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Quote{}, transientErr(c.Name(), err)
	}

	// The rate-limit marker must be recognized regardless of status code
	var payload alphaVantageResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.Quote{}, transientErr(c.Name(), fmt.Errorf("unparseable response: %w", err))
	}

	if strings.Contains(strings.ToLower(payload.Information), "rate limit") {
		c.log.Warn().Str("symbol", symbol).Msg("Alpha Vantage rate limit exceeded")
		return domain.Quote{}, rateLimitedErr(c.Name(), fmt.Errorf("rate limit: %s", payload.Information))
	}

	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, transientErr(c.Name(), fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	priceStr, ok := payload.GlobalQuote["05. price"]
	if len(payload.GlobalQuote) == 0 || !ok {
		return domain.Quote{}, notFoundErr(c.Name(), symbol)
	}

	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price <= 0 {
		return domain.Quote{}, notFoundErr(c.Name(), symbol)
	}

	c.log.Debug().Str("symbol", symbol).Float64("price", price).Msg("Quote fetched")

	return domain.Quote{Symbol: symbol, Price: price}, nil
}
