package ledger

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
)

// AccountRepository handles account database operations. Cash is only
// ever written from inside a ledger transaction.
type AccountRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *sql.DB, log zerolog.Logger) *AccountRepository {
	return &AccountRepository{
		db:  db,
		log: log.With().Str("repo", "account").Logger(),
	}
}

// GetByID returns an account, or nil when it does not exist
func (r *AccountRepository) GetByID(id int64) (*domain.Account, error) {
	query := "SELECT id, username, cash FROM accounts WHERE id = ?"

	var account domain.Account
	err := r.db.QueryRow(query, id).Scan(&account.ID, &account.Username, &account.Cash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// Create inserts an account with the default starting cash balance.
// Registration itself (password handling, sessions) lives outside this
// service; this exists for that collaborator and for tests.
func (r *AccountRepository) Create(username string) (*domain.Account, error) {
	result, err := r.db.Exec("INSERT INTO accounts (username) VALUES (?)", username)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read new account id: %w", err)
	}

	account, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}

	r.log.Info().Int64("account_id", id).Str("username", username).Msg("Account created")

	return account, nil
}

// cashTx re-reads the current cash balance inside a transaction
func (r *AccountRepository) cashTx(tx *sql.Tx, accountID int64) (float64, error) {
	var cash float64
	err := tx.QueryRow("SELECT cash FROM accounts WHERE id = ?", accountID).Scan(&cash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cash: %w", err)
	}
	return cash, nil
}

// setCashTx writes the new cash balance inside a transaction
func (r *AccountRepository) setCashTx(tx *sql.Tx, accountID int64, cash float64) error {
	result, err := tx.Exec("UPDATE accounts SET cash = ? WHERE id = ?", cash, accountID)
	if err != nil {
		return fmt.Errorf("failed to update cash: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check cash update: %w", err)
	}
	if affected == 0 {
		return domain.ErrAccountNotFound
	}

	return nil
}
