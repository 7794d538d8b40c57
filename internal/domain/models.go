package domain

import (
	"strings"
	"time"
)

// TradeKind discriminates ledger transaction records
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// Quote is a symbol-price pair sourced from a provider or the cache
type Quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// Account represents a user account with its cash balance.
// Cash never goes negative; the ledger checks before every debit.
type Account struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Cash     float64 `json:"cash"`
}

// Holding is a user's current nonzero position in one symbol.
// A holding that reaches zero shares is deleted, never stored as zero.
type Holding struct {
	AccountID int64  `json:"account_id"`
	Symbol    string `json:"symbol"`
	Shares    int64  `json:"shares"`
}

// Transaction is an immutable append-only ledger record
type Transaction struct {
	ID        int64     `json:"id"`
	AccountID int64     `json:"account_id"`
	Kind      TradeKind `json:"kind"`
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Shares    int64     `json:"shares"`
	Time      time.Time `json:"time"`
}

// NormalizeSymbol canonicalizes a ticker symbol before any provider
// call or storage access
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
