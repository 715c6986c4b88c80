// Package source defines what the poller needs from an upstream option chain provider.
package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/date"
)

// Source fetches option chain data for one symbol at a time.
type Source interface {
	// Expiries returns the raw expiry date strings the provider lists for symbol.
	Expiries(ctx context.Context, symbol string) ([]string, error)
	// Entries returns raw per-strike entries for symbol covering at least the given expiries.
	Entries(ctx context.Context, symbol string, expiries []date.Expiry) ([]chain.Entry, error)
}

// TransportError is an HTTP failure talking to a provider, including auth and throttling status codes.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("GET %s: %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
		switch e.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			msg += " (session cookies or headers rejected)"
		case http.StatusTooManyRequests:
			msg += " (throttled)"
		}
		return msg
	}
	return fmt.Sprintf("GET %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a status code is worth another try within the same request.
func Retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}
