package portfolio

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
	"github.com/finvault/papertrader/internal/modules/ledger"
)

// Service composes current holdings, live quotes and cash into
// valuation snapshots
type Service struct {
	accounts *ledger.AccountRepository
	holdings *ledger.HoldingRepository
	quotes   ledger.QuoteSource
	log      zerolog.Logger

	// Valuation tolerates a slightly old price better than omitting a
	// position, so stale cache fallback is normally on here
	allowStale bool
}

// NewService creates a new portfolio view service
func NewService(
	accounts *ledger.AccountRepository,
	holdings *ledger.HoldingRepository,
	quotes ledger.QuoteSource,
	allowStale bool,
	log zerolog.Logger,
) *Service {
	return &Service{
		accounts:   accounts,
		holdings:   holdings,
		quotes:     quotes,
		allowStale: allowStale,
		log:        log.With().Str("service", "portfolio").Logger(),
	}
}

// Snapshot values an account's holdings at current prices. A symbol
// that cannot be priced at all is skipped and reported, not fatal.
func (s *Service) Snapshot(ctx context.Context, accountID int64) (Snapshot, error) {
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		return Snapshot{}, err
	}
	if account == nil {
		return Snapshot{}, domain.ErrAccountNotFound
	}

	holdings, err := s.holdings.GetAll(accountID)
	if err != nil {
		return Snapshot{}, err
	}

	snapshot := Snapshot{
		Lines: make([]Line, 0, len(holdings)),
		Cash:  account.Cash,
	}

	for _, holding := range holdings {
		quote, err := s.quotes.Lookup(ctx, holding.Symbol, s.allowStale)
		if err != nil {
			s.log.Warn().
				Err(err).
				Int64("account_id", accountID).
				Str("symbol", holding.Symbol).
				Msg("Holding omitted from snapshot, no usable price")
			snapshot.Unpriced = append(snapshot.Unpriced, holding.Symbol)
			continue
		}

		snapshot.Lines = append(snapshot.Lines, Line{
			Symbol: holding.Symbol,
			Shares: holding.Shares,
			Price:  quote.Price,
			Total:  quote.Price * float64(holding.Shares),
		})
	}

	snapshot.GrandTotal = snapshot.Cash
	for _, line := range snapshot.Lines {
		snapshot.GrandTotal += line.Total
	}

	return snapshot, nil
}
