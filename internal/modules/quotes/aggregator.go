package quotes

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
)

// Aggregator composes the quote cache and an ordered list of providers
// into a single lookup. Provider-level failures never cross this
// boundary individually; only the aggregate outcome does.
type Aggregator struct {
	cache     *CacheRepository
	providers []Provider
	ttl       time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewAggregator creates a new quote aggregator. Providers are tried in
// the order given; first success wins.
func NewAggregator(cache *CacheRepository, providers []Provider, ttl time.Duration, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		cache:     cache,
		providers: providers,
		ttl:       ttl,
		log:       log.With().Str("service", "quote_aggregator").Logger(),
		now:       time.Now,
	}
}

// Lookup resolves the latest price for a symbol.
//
// A cache entry younger than the TTL is returned without any provider
// call. Otherwise providers are consulted in priority order and the
// first success refreshes the cache. When every provider fails,
// allowStale decides whether an expired cache entry may still be
// returned; money-moving callers must pass false.
func (a *Aggregator) Lookup(ctx context.Context, symbol string, allowStale bool) (domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.Quote{}, domain.ErrInvalidSymbol
	}

	cached, err := a.cache.Get(symbol)
	if err != nil {
		// A broken cache read degrades to a provider call, it does not
		// fail the lookup
		a.log.Warn().Err(err).Str("symbol", symbol).Msg("Cache read failed")
		cached = nil
	}

	if cached != nil && a.now().Sub(cached.ObservedAt) <= a.ttl {
		return cached.Quote, nil
	}

	var sawRateLimit, sawNotFound bool

	for _, provider := range a.providers {
		if ctx.Err() != nil {
			break
		}

		quote, err := provider.Lookup(ctx, symbol)
		if err == nil {
			observedAt := a.now()
			if putErr := a.cache.Put(quote, observedAt); putErr != nil {
				a.log.Error().Err(putErr).Str("symbol", symbol).Msg("Failed to refresh quote cache")
			}
			return quote, nil
		}

		kind := failureKind(err)
		a.log.Debug().
			Err(err).
			Str("symbol", symbol).
			Str("provider", provider.Name()).
			Str("kind", string(kind)).
			Msg("Provider lookup failed")

		switch kind {
		case FailRateLimited:
			sawRateLimit = true
		case FailNotFound:
			sawNotFound = true
		}
	}

	if cached != nil && allowStale {
		a.log.Warn().
			Str("symbol", symbol).
			Time("observed_at", cached.ObservedAt).
			Msg("All providers failed, serving stale quote")
		return cached.Quote, nil
	}

	// Rate limiting is never silently downgraded; callers show a
	// distinct try-again-later message
	switch {
	case sawRateLimit:
		return domain.Quote{}, domain.ErrRateLimited
	case sawNotFound:
		return domain.Quote{}, domain.ErrSymbolNotFound
	default:
		return domain.Quote{}, domain.ErrQuoteUnavailable
	}
}
