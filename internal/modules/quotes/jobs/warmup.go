package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/events"
	"github.com/finvault/papertrader/internal/modules/quotes"
)

// SymbolSource lists the symbols worth keeping warm in the quote cache
type SymbolSource interface {
	DistinctSymbols() ([]string, error)
}

// WarmupJob periodically re-fetches quotes for currently-held symbols
// so valuation reads mostly hit a fresh cache
type WarmupJob struct {
	aggregator *quotes.Aggregator
	symbols    SymbolSource
	events     *events.Manager
	timeout    time.Duration
	log        zerolog.Logger
}

// NewWarmupJob creates a new cache warm-up job
func NewWarmupJob(
	aggregator *quotes.Aggregator,
	symbols SymbolSource,
	eventManager *events.Manager,
	timeout time.Duration,
	log zerolog.Logger,
) *WarmupJob {
	return &WarmupJob{
		aggregator: aggregator,
		symbols:    symbols,
		events:     eventManager,
		timeout:    timeout,
		log:        log.With().Str("job", "quote_cache_warmup").Logger(),
	}
}

// Name identifies the job in scheduler logs
func (j *WarmupJob) Name() string {
	return "quote_cache_warmup"
}

// Run refreshes every held symbol once. Individual failures are logged
// and skipped; the aggregator already absorbed per-provider fallback.
func (j *WarmupJob) Run() error {
	symbols, err := j.symbols.DistinctSymbols()
	if err != nil {
		j.events.EmitError("quotes", err, map[string]interface{}{"step": "list_symbols"})
		return err
	}

	if len(symbols) == 0 {
		return nil
	}

	j.events.Emit(events.CacheWarmupStart, "quotes", map[string]interface{}{
		"symbols": len(symbols),
	})

	refreshed := 0
	for _, symbol := range symbols {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		_, err := j.aggregator.Lookup(ctx, symbol, false)
		cancel()

		if err != nil {
			j.log.Warn().Err(err).Str("symbol", symbol).Msg("Warm-up lookup failed")
			continue
		}
		refreshed++
	}

	j.log.Info().Int("refreshed", refreshed).Int("total", len(symbols)).Msg("Quote cache warm-up complete")

	j.events.Emit(events.CacheWarmupDone, "quotes", map[string]interface{}{
		"refreshed": refreshed,
		"total":     len(symbols),
	})

	return nil
}
