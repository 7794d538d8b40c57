package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
)

// HoldingRepository handles holding database operations. The holdings
// table is the single source of truth for current position; the
// transactions table is its audit log.
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		db:  db,
		log: log.With().Str("repo", "holding").Logger(),
	}
}

// GetAll returns all holdings for an account, ordered by symbol
func (r *HoldingRepository) GetAll(accountID int64) ([]domain.Holding, error) {
	query := `
		SELECT account_id, symbol, shares FROM holdings
		WHERE account_id = ?
		ORDER BY symbol ASC
	`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.AccountID, &h.Symbol, &h.Shares); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// DistinctSymbols returns every symbol currently held by any account
func (r *HoldingRepository) DistinctSymbols() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT symbol FROM holdings ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query held symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// sharesTx re-reads the current position inside a transaction, 0 when absent
func (r *HoldingRepository) sharesTx(tx *sql.Tx, accountID int64, symbol string) (int64, error) {
	var shares int64
	err := tx.QueryRow(
		"SELECT shares FROM holdings WHERE account_id = ? AND symbol = ?",
		accountID, symbol,
	).Scan(&shares)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read holding: %w", err)
	}
	return shares, nil
}

// addTx upserts a holding, adding shares to any existing position
func (r *HoldingRepository) addTx(tx *sql.Tx, accountID int64, symbol string, shares int64) error {
	query := `
		INSERT INTO holdings (account_id, symbol, shares)
		VALUES (?, ?, ?)
		ON CONFLICT(account_id, symbol) DO UPDATE SET
			shares = shares + excluded.shares
	`

	if _, err := tx.Exec(query, accountID, symbol, shares); err != nil {
		return fmt.Errorf("failed to upsert holding: %w", err)
	}
	return nil
}

// setSharesTx overwrites the share count of an existing holding
func (r *HoldingRepository) setSharesTx(tx *sql.Tx, accountID int64, symbol string, shares int64) error {
	_, err := tx.Exec(
		"UPDATE holdings SET shares = ? WHERE account_id = ? AND symbol = ?",
		shares, accountID, symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to update holding: %w", err)
	}
	return nil
}

// deleteTx removes a fully-sold holding; zero-share rows are never stored
func (r *HoldingRepository) deleteTx(tx *sql.Tx, accountID int64, symbol string) error {
	_, err := tx.Exec(
		"DELETE FROM holdings WHERE account_id = ? AND symbol = ?",
		accountID, symbol,
	)
	if err != nil {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}
