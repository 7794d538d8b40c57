package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlphaVantageAgainst(t *testing.T, handler http.HandlerFunc) *AlphaVantage {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewAlphaVantage("test-key", 2*time.Second, zerolog.Nop())
	client.baseURL = srv.URL
	return client
}

func TestAlphaVantage_Lookup(t *testing.T) {
	client := newAlphaVantageAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GLOBAL_QUOTE", r.URL.Query().Get("function"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Global Quote": {"01. symbol": "AAPL", "05. price": "150.2500"}}`))
	})

	quote, err := client.Lookup(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 150.25, quote.Price)
}

func TestAlphaVantage_RateLimitMarker(t *testing.T) {
	client := newAlphaVantageAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		// Alpha Vantage reports quota exhaustion with HTTP 200
		w.Write([]byte(`{"Information": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	})

	_, err := client.Lookup(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, FailRateLimited, failureKind(err))
}

func TestAlphaVantage_UnknownSymbol(t *testing.T) {
	client := newAlphaVantageAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {}}`))
	})

	_, err := client.Lookup(context.Background(), "NOSUCH")
	require.Error(t, err)
	assert.Equal(t, FailNotFound, failureKind(err))
}

func TestAlphaVantage_ZeroPriceIsNotFound(t *testing.T) {
	client := newAlphaVantageAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {"05. price": "0.0000"}}`))
	})

	_, err := client.Lookup(context.Background(), "ZERO")
	require.Error(t, err)
	assert.Equal(t, FailNotFound, failureKind(err))
}

func TestAlphaVantage_UnparseableResponseIsTransient(t *testing.T) {
	client := newAlphaVantageAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := client.Lookup(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, FailTransient, failureKind(err))
}

func TestAlphaVantage_ServerErrorIsTransient(t *testing.T) {
	client := newAlphaVantageAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "boom"}`, http.StatusInternalServerError)
	})

	_, err := client.Lookup(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, FailTransient, failureKind(err))
}

func TestYahoo_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		w.Write([]byte(`{"quoteResponse": {"result": [{"symbol": "AAPL", "regularMarketPrice": 150.25}], "error": null}}`))
	}))
	defer srv.Close()

	client := NewYahoo(2*time.Second, zerolog.Nop())
	client.baseURL = srv.URL

	quote, err := client.Lookup(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, 150.25, quote.Price)
}

func TestYahoo_EmptyResultIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"quoteResponse": {"result": [], "error": null}}`))
	}))
	defer srv.Close()

	client := NewYahoo(2*time.Second, zerolog.Nop())
	client.baseURL = srv.URL

	_, err := client.Lookup(context.Background(), "NOSUCH")
	require.Error(t, err)
	assert.Equal(t, FailNotFound, failureKind(err))
}

func TestYahoo_TooManyRequestsIsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewYahoo(2*time.Second, zerolog.Nop())
	client.baseURL = srv.URL

	_, err := client.Lookup(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, FailRateLimited, failureKind(err))
}
