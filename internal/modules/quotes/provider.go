package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/finvault/papertrader/internal/domain"
)

// FailureKind classifies why a single provider lookup failed
type FailureKind string

const (
	// FailNotFound means the provider conclusively does not know the symbol
	FailNotFound FailureKind = "not_found"

	// FailRateLimited means the provider's upstream quota is exhausted
	FailRateLimited FailureKind = "rate_limited"

	// FailTransient covers timeouts, network errors and unparseable responses
	FailTransient FailureKind = "transient"
)

// Provider fetches the latest price for a symbol from one external source.
// Implementations classify every failure as a *ProviderError; an
// unrecognized response shape must surface as FailTransient, never a panic.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, symbol string) (domain.Quote, error)
}

// ProviderError carries the failure classification across the provider boundary
type ProviderError struct {
	Provider string
	Kind     FailureKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func notFoundErr(provider, symbol string) error {
	return &ProviderError{
		Provider: provider,
		Kind:     FailNotFound,
		Err:      fmt.Errorf("no quote for %s", symbol),
	}
}

func rateLimitedErr(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: FailRateLimited, Err: err}
}

func transientErr(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: FailTransient, Err: err}
}

// failureKind maps any provider error onto the taxonomy. Errors that are
// not a *ProviderError count as transient.
func failureKind(err error) FailureKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return FailTransient
}
