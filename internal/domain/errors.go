package domain

import "errors"

// Ledger and quote errors surfaced across component boundaries.
// Callers match with errors.Is and render a user-facing message
// without inspecting internals.
var (
	// ErrInvalidShares rejects non-positive share counts before any side effect
	ErrInvalidShares = errors.New("shares must be a positive integer")

	// ErrInvalidSymbol rejects empty or malformed symbols
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrSymbolNotFound means no provider recognizes the symbol and no usable cache exists
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrRateLimited means every provider exhausted its quota; callers should back off
	ErrRateLimited = errors.New("quote providers rate limited")

	// ErrQuoteUnavailable means all providers were unreachable without a conclusive negative
	ErrQuoteUnavailable = errors.New("quote unavailable")

	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrTransactionConflict surfaces after the concurrent-update retry budget is exhausted
	ErrTransactionConflict = errors.New("transaction conflict, try again")
)
