package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/domain"
)

// TransactionRepository handles the append-only buy/sell history.
// Records are created once per committed ledger operation and never
// mutated or deleted.
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repo", "transaction").Logger(),
	}
}

// History returns an account's transactions, most recent first
func (r *TransactionRepository) History(accountID int64, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT id, account_id, kind, symbol, price, shares, time FROM transactions
		WHERE account_id = ?
		ORDER BY time DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []domain.Transaction
	for rows.Next() {
		record, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return records, nil
}

// appendTx writes one history record inside a ledger transaction and
// fills in the generated id
func (r *TransactionRepository) appendTx(tx *sql.Tx, record *domain.Transaction) error {
	query := `
		INSERT INTO transactions (account_id, kind, symbol, price, shares, time)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := tx.Exec(query,
		record.AccountID,
		string(record.Kind),
		record.Symbol,
		record.Price,
		record.Shares,
		record.Time.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	record.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction id: %w", err)
	}

	return nil
}

func scanTransaction(rows *sql.Rows) (domain.Transaction, error) {
	var (
		record domain.Transaction
		kind   string
		ts     string
	)
	if err := rows.Scan(&record.ID, &record.AccountID, &kind, &record.Symbol, &record.Price, &record.Shares, &ts); err != nil {
		return domain.Transaction{}, err
	}

	record.Kind = domain.TradeKind(kind)

	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to parse time: %w", err)
	}
	record.Time = parsed

	return record, nil
}
