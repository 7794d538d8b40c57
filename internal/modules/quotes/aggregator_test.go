package quotes

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finvault/papertrader/internal/database"
	"github.com/finvault/papertrader/internal/domain"
)

// stubProvider scripts one provider in the fallback chain
type stubProvider struct {
	name  string
	quote domain.Quote
	err   error
	calls int
	seen  []string
}

func (p *stubProvider) Name() string {
	return p.name
}

func (p *stubProvider) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	p.calls++
	p.seen = append(p.seen, symbol)
	if p.err != nil {
		return domain.Quote{}, p.err
	}
	return p.quote, nil
}

func setupCache(t *testing.T) *CacheRepository {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.Schema)
	require.NoError(t, err)

	return NewCacheRepository(db, zerolog.Nop())
}

func newTestAggregator(t *testing.T, providers []Provider, ttl time.Duration) (*Aggregator, *CacheRepository) {
	t.Helper()
	cache := setupCache(t)
	agg := NewAggregator(cache, providers, ttl, zerolog.Nop())
	return agg, cache
}

func TestLookup_FreshCacheSkipsProviders(t *testing.T) {
	provider := &stubProvider{name: "p1", err: transientErr("p1", assert.AnError)}
	agg, cache := newTestAggregator(t, []Provider{provider}, time.Minute)

	require.NoError(t, cache.Put(domain.Quote{Symbol: "AAPL", Price: 150}, time.Now()))

	quote, err := agg.Lookup(context.Background(), "AAPL", false)
	require.NoError(t, err)
	assert.Equal(t, 150.0, quote.Price)
	assert.Equal(t, 0, provider.calls, "fresh cache hit must make zero provider calls")
}

func TestLookup_FirstSuccessWinsAndPopulatesCache(t *testing.T) {
	p1 := &stubProvider{name: "p1", err: transientErr("p1", assert.AnError)}
	p2 := &stubProvider{name: "p2", quote: domain.Quote{Symbol: "X", Price: 150}}
	p3 := &stubProvider{name: "p3", quote: domain.Quote{Symbol: "X", Price: 999}}
	agg, cache := newTestAggregator(t, []Provider{p1, p2, p3}, time.Minute)

	quote, err := agg.Lookup(context.Background(), "X", false)
	require.NoError(t, err)
	assert.Equal(t, 150.0, quote.Price)
	assert.Equal(t, 1, p1.calls)
	assert.Equal(t, 1, p2.calls)
	assert.Equal(t, 0, p3.calls, "providers after the first success must not be tried")

	cached, err := cache.Get("X")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 150.0, cached.Price)
}

func TestLookup_CacheRoundTrip(t *testing.T) {
	provider := &stubProvider{name: "p1", quote: domain.Quote{Symbol: "MSFT", Price: 410.5}}
	agg, _ := newTestAggregator(t, []Provider{provider}, time.Minute)

	first, err := agg.Lookup(context.Background(), "MSFT", false)
	require.NoError(t, err)

	second, err := agg.Lookup(context.Background(), "MSFT", false)
	require.NoError(t, err)

	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, 1, provider.calls, "second lookup within TTL must be served from cache")
}

func TestLookup_NormalizesSymbol(t *testing.T) {
	provider := &stubProvider{name: "p1", quote: domain.Quote{Symbol: "AAPL", Price: 150}}
	agg, _ := newTestAggregator(t, []Provider{provider}, time.Minute)

	_, err := agg.Lookup(context.Background(), "  aapl ", false)
	require.NoError(t, err)
	require.Len(t, provider.seen, 1)
	assert.Equal(t, "AAPL", provider.seen[0])
}

func TestLookup_AllRateLimited(t *testing.T) {
	p1 := &stubProvider{name: "p1", err: rateLimitedErr("p1", assert.AnError)}
	p2 := &stubProvider{name: "p2", err: rateLimitedErr("p2", assert.AnError)}
	agg, _ := newTestAggregator(t, []Provider{p1, p2}, time.Minute)

	_, err := agg.Lookup(context.Background(), "Y", false)
	assert.ErrorIs(t, err, domain.ErrRateLimited, "rate limiting must not be downgraded to not-found")
}

func TestLookup_NotFoundBeatsUnavailable(t *testing.T) {
	p1 := &stubProvider{name: "p1", err: transientErr("p1", assert.AnError)}
	p2 := &stubProvider{name: "p2", err: notFoundErr("p2", "NOPE")}
	agg, _ := newTestAggregator(t, []Provider{p1, p2}, time.Minute)

	_, err := agg.Lookup(context.Background(), "NOPE", false)
	assert.ErrorIs(t, err, domain.ErrSymbolNotFound)
}

func TestLookup_AllTransientIsUnavailable(t *testing.T) {
	p1 := &stubProvider{name: "p1", err: transientErr("p1", assert.AnError)}
	agg, _ := newTestAggregator(t, []Provider{p1}, time.Minute)

	_, err := agg.Lookup(context.Background(), "Z", false)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestLookup_StaleFallback(t *testing.T) {
	provider := &stubProvider{name: "p1", err: transientErr("p1", assert.AnError)}
	agg, cache := newTestAggregator(t, []Provider{provider}, time.Minute)

	// Entry well past the TTL
	require.NoError(t, cache.Put(domain.Quote{Symbol: "AAPL", Price: 149}, time.Now().Add(-time.Hour)))

	quote, err := agg.Lookup(context.Background(), "AAPL", true)
	require.NoError(t, err)
	assert.Equal(t, 149.0, quote.Price)

	// The same lookup without stale fallback must fail instead
	_, err = agg.Lookup(context.Background(), "AAPL", false)
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestLookup_EmptySymbol(t *testing.T) {
	agg, _ := newTestAggregator(t, nil, time.Minute)

	_, err := agg.Lookup(context.Background(), "   ", false)
	assert.ErrorIs(t, err, domain.ErrInvalidSymbol)
}
