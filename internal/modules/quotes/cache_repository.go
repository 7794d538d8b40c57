package quotes

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
)

// CachedQuote is a quote together with the time it was observed upstream
type CachedQuote struct {
	domain.Quote
	ObservedAt time.Time
}

// CacheRepository persists the symbol -> (price, observed_at) cache.
// Rows are owned by the aggregator; there is no explicit deletion,
// entries age out via the freshness check on read.
type CacheRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCacheRepository creates a new quote cache repository
func NewCacheRepository(db *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		db:  db,
		log: log.With().Str("repo", "quote_cache").Logger(),
	}
}

// Get returns the cached quote for a symbol, or nil when absent
func (r *CacheRepository) Get(symbol string) (*CachedQuote, error) {
	query := "SELECT symbol, price, observed_at FROM quote_cache WHERE symbol = ?"

	var (
		cached     CachedQuote
		observedAt string
	)
	err := r.db.QueryRow(query, domain.NormalizeSymbol(symbol)).Scan(&cached.Symbol, &cached.Price, &observedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached quote: %w", err)
	}

	cached.ObservedAt, err = time.Parse(time.RFC3339, observedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse observed_at: %w", err)
	}

	return &cached, nil
}

// Put upserts a quote, last-writer-wins on observed_at
func (r *CacheRepository) Put(quote domain.Quote, observedAt time.Time) error {
	query := `
		INSERT INTO quote_cache (symbol, price, observed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			price = excluded.price,
			observed_at = excluded.observed_at
	`

	_, err := r.db.Exec(query,
		domain.NormalizeSymbol(quote.Symbol),
		quote.Price,
		observedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cached quote: %w", err)
	}

	return nil
}
