package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/papertrader/internal/domain"
	"github.com/finvault/papertrader/internal/modules/portfolio"
)

type mockLedger struct {
	record *domain.Transaction
	err    error
}

func (m *mockLedger) Buy(ctx context.Context, accountID int64, symbol string, shares int64) (*domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *mockLedger) Sell(ctx context.Context, accountID int64, symbol string, shares int64) (*domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.record, nil
}

func (m *mockLedger) History(accountID int64, limit int) ([]domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.record == nil {
		return nil, nil
	}
	return []domain.Transaction{*m.record}, nil
}

type mockPortfolio struct {
	snapshot portfolio.Snapshot
	err      error
}

func (m *mockPortfolio) Snapshot(ctx context.Context, accountID int64) (portfolio.Snapshot, error) {
	return m.snapshot, m.err
}

type mockQuotes struct {
	quote domain.Quote
	err   error
}

func (m *mockQuotes) Lookup(ctx context.Context, symbol string, allowStale bool) (domain.Quote, error) {
	return m.quote, m.err
}

func newTestServer(ledger LedgerService, view PortfolioService, quotes QuoteService) *Server {
	return New(Config{
		Port:      0,
		Log:       zerolog.Nop(),
		Ledger:    ledger,
		Portfolio: view,
		Quotes:    quotes,
	})
}

func doRequest(t *testing.T, srv *Server, method, path, account string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if account != "" {
		req.Header.Set("X-Account-ID", account)
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHandleQuote(t *testing.T) {
	srv := newTestServer(&mockLedger{}, &mockPortfolio{}, &mockQuotes{
		quote: domain.Quote{Symbol: "AAPL", Price: 150.25},
	})

	w := doRequest(t, srv, "GET", "/api/quote/AAPL", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var quote domain.Quote
	require.NoError(t, json.NewDecoder(w.Body).Decode(&quote))
	assert.Equal(t, 150.25, quote.Price)
}

func TestHandleQuote_RateLimited(t *testing.T) {
	srv := newTestServer(&mockLedger{}, &mockPortfolio{}, &mockQuotes{err: domain.ErrRateLimited})

	w := doRequest(t, srv, "GET", "/api/quote/AAPL", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestHandleBuy(t *testing.T) {
	srv := newTestServer(&mockLedger{
		record: &domain.Transaction{ID: 1, AccountID: 7, Kind: domain.TradeBuy, Symbol: "AAPL", Price: 150, Shares: 10},
	}, &mockPortfolio{}, &mockQuotes{})

	w := doRequest(t, srv, "POST", "/api/buy", "7", tradeRequest{Symbol: "AAPL", Shares: 10})
	assert.Equal(t, http.StatusOK, w.Code)

	var record domain.Transaction
	require.NoError(t, json.NewDecoder(w.Body).Decode(&record))
	assert.Equal(t, domain.TradeBuy, record.Kind)
}

func TestHandleBuy_MissingAccount(t *testing.T) {
	srv := newTestServer(&mockLedger{}, &mockPortfolio{}, &mockQuotes{})

	w := doRequest(t, srv, "POST", "/api/buy", "", tradeRequest{Symbol: "AAPL", Shares: 10})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleBuy_DomainErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"insufficient funds", domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{"invalid shares", domain.ErrInvalidShares, http.StatusBadRequest},
		{"unknown symbol", domain.ErrSymbolNotFound, http.StatusNotFound},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"quotes down", domain.ErrQuoteUnavailable, http.StatusBadGateway},
		{"conflict", domain.ErrTransactionConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&mockLedger{err: tt.err}, &mockPortfolio{}, &mockQuotes{})

			w := doRequest(t, srv, "POST", "/api/buy", "7", tradeRequest{Symbol: "AAPL", Shares: 10})
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestHandleSell_InsufficientShares(t *testing.T) {
	srv := newTestServer(&mockLedger{err: domain.ErrInsufficientShares}, &mockPortfolio{}, &mockQuotes{})

	w := doRequest(t, srv, "POST", "/api/sell", "7", tradeRequest{Symbol: "AAPL", Shares: 10})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestHandlePortfolio(t *testing.T) {
	srv := newTestServer(&mockLedger{}, &mockPortfolio{
		snapshot: portfolio.Snapshot{
			Lines:      []portfolio.Line{{Symbol: "AAPL", Shares: 10, Price: 150, Total: 1500}},
			Cash:       8500,
			GrandTotal: 10000,
		},
	}, &mockQuotes{})

	w := doRequest(t, srv, "GET", "/api/portfolio", "7", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var snapshot portfolio.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snapshot))
	assert.Equal(t, 10000.0, snapshot.GrandTotal)
}

func TestHandleHistory(t *testing.T) {
	srv := newTestServer(&mockLedger{}, &mockPortfolio{}, &mockQuotes{})

	w := doRequest(t, srv, "GET", "/api/history", "7", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]\n", w.Body.String(), "empty history renders as an empty array")

	w = doRequest(t, srv, "GET", "/api/history?limit=abc", "7", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(&mockLedger{}, &mockPortfolio{}, &mockQuotes{})

	w := doRequest(t, srv, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
