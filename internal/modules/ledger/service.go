package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/database"
	"github.com/finvault/papertrader/internal/domain"
	"github.com/finvault/papertrader/internal/events"
)

// QuoteSource prices trades and valuations. Satisfied by the quote
// aggregator; tests substitute a stub.
type QuoteSource interface {
	Lookup(ctx context.Context, symbol string, allowStale bool) (domain.Quote, error)
}

// Service applies buy/sell operations against an account's cash and
// holdings. Each operation is one atomic unit of work: cash re-read and
// debit/credit, holding upsert/decrement, history append all commit
// together or not at all.
type Service struct {
	db           *database.DB
	accounts     *AccountRepository
	holdings     *HoldingRepository
	transactions *TransactionRepository
	quotes       QuoteSource
	events       *events.Manager
	retries      int
	log          zerolog.Logger
	now          func() time.Time

	mu           sync.Mutex
	accountLocks map[int64]*sync.Mutex
}

// NewService creates a new ledger service. retries bounds how often a
// conflicting transaction is reattempted before surfacing
// domain.ErrTransactionConflict.
func NewService(
	db *database.DB,
	accounts *AccountRepository,
	holdings *HoldingRepository,
	transactions *TransactionRepository,
	quotes QuoteSource,
	eventManager *events.Manager,
	retries int,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:           db,
		accounts:     accounts,
		holdings:     holdings,
		transactions: transactions,
		quotes:       quotes,
		events:       eventManager,
		retries:      retries,
		log:          log.With().Str("service", "ledger").Logger(),
		now:          time.Now,
		accountLocks: make(map[int64]*sync.Mutex),
	}
}

// Buy purchases shares of a symbol at the current quoted price.
// Pricing never falls back to a stale cache entry; a mispriced
// transaction is worse than a rejected one.
func (s *Service) Buy(ctx context.Context, accountID int64, symbol string, shares int64) (*domain.Transaction, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := validateOrder(symbol, shares); err != nil {
		return nil, err
	}

	quote, err := s.quotes.Lookup(ctx, symbol, false)
	if err != nil {
		return nil, err
	}
	cost := quote.Price * float64(shares)

	record := domain.Transaction{
		AccountID: accountID,
		Kind:      domain.TradeBuy,
		Symbol:    symbol,
		Price:     quote.Price,
		Shares:    shares,
	}

	unlock := s.lockAccount(accountID)
	defer unlock()

	err = s.inTransaction(ctx, func(tx *sql.Tx) error {
		cash, err := s.accounts.cashTx(tx, accountID)
		if err != nil {
			return err
		}
		if cash < cost {
			return domain.ErrInsufficientFunds
		}

		if err := s.accounts.setCashTx(tx, accountID, cash-cost); err != nil {
			return err
		}
		if err := s.holdings.addTx(tx, accountID, symbol, shares); err != nil {
			return err
		}

		record.Time = s.now()
		return s.transactions.appendTx(tx, &record)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("account_id", accountID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Float64("price", quote.Price).
		Msg("Buy executed")

	s.events.Emit(events.TradeExecuted, "ledger", map[string]interface{}{
		"account_id": accountID,
		"kind":       string(domain.TradeBuy),
		"symbol":     symbol,
		"shares":     shares,
		"price":      quote.Price,
	})

	return &record, nil
}

// Sell disposes shares of a symbol at the current quoted price. Selling
// the whole position removes the holding row entirely.
func (s *Service) Sell(ctx context.Context, accountID int64, symbol string, shares int64) (*domain.Transaction, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if err := validateOrder(symbol, shares); err != nil {
		return nil, err
	}

	quote, err := s.quotes.Lookup(ctx, symbol, false)
	if err != nil {
		return nil, err
	}
	proceeds := quote.Price * float64(shares)

	record := domain.Transaction{
		AccountID: accountID,
		Kind:      domain.TradeSell,
		Symbol:    symbol,
		Price:     quote.Price,
		Shares:    shares,
	}

	unlock := s.lockAccount(accountID)
	defer unlock()

	err = s.inTransaction(ctx, func(tx *sql.Tx) error {
		held, err := s.holdings.sharesTx(tx, accountID, symbol)
		if err != nil {
			return err
		}
		if shares > held {
			return domain.ErrInsufficientShares
		}

		if shares == held {
			err = s.holdings.deleteTx(tx, accountID, symbol)
		} else {
			err = s.holdings.setSharesTx(tx, accountID, symbol, held-shares)
		}
		if err != nil {
			return err
		}

		cash, err := s.accounts.cashTx(tx, accountID)
		if err != nil {
			return err
		}
		if err := s.accounts.setCashTx(tx, accountID, cash+proceeds); err != nil {
			return err
		}

		record.Time = s.now()
		return s.transactions.appendTx(tx, &record)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("account_id", accountID).
		Str("symbol", symbol).
		Int64("shares", shares).
		Float64("price", quote.Price).
		Msg("Sell executed")

	s.events.Emit(events.TradeExecuted, "ledger", map[string]interface{}{
		"account_id": accountID,
		"kind":       string(domain.TradeSell),
		"symbol":     symbol,
		"shares":     shares,
		"price":      quote.Price,
	})

	return &record, nil
}

// History returns an account's transaction log, most recent first
func (s *Service) History(accountID int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.transactions.History(accountID, limit)
}

// validateOrder rejects bad input before any pricing or side effect.
// Zero shares is a validation error, not a no-op.
func validateOrder(symbol string, shares int64) error {
	if symbol == "" {
		return domain.ErrInvalidSymbol
	}
	if shares <= 0 {
		return domain.ErrInvalidShares
	}
	return nil
}

// lockAccount serializes ledger operations per account. Operations on
// different accounts proceed in parallel.
func (s *Service) lockAccount(accountID int64) func() {
	s.mu.Lock()
	lock, ok := s.accountLocks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		s.accountLocks[accountID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// inTransaction runs fn inside a database transaction, retrying
// write-conflict failures up to the configured budget. Domain errors
// and other persistence failures are never retried.
func (s *Service) inTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	var lastErr error

	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
			}
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isBusy(err) {
				lastErr = err
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			if isBusy(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		return nil
	}

	s.log.Warn().Err(lastErr).Int("retries", s.retries).Msg("Transaction retry budget exhausted")
	return domain.ErrTransactionConflict
}

// isBusy reports whether an error is a SQLite write-conflict
// (SQLITE_BUSY / SQLITE_LOCKED), the only class of failure worth retrying
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
