// Package expiry decides which contract expiration dates are current.
package expiry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/erikbryant/optionchain/date"
)

// ErrNoFutureExpiry is returned when no expiry survives the reference date filter.
var ErrNoFutureExpiry = errors.New("no future expiry")

// Policy says whether an expiry on the reference date itself still counts.
type Policy int

const (
	// Strict keeps dates after the reference date only.
	Strict Policy = iota
	// Inclusive also keeps the reference date.
	Inclusive
)

func (p Policy) String() string {
	if p == Inclusive {
		return "inclusive"
	}
	return "strict"
}

// ParsePolicy maps "strict" and "inclusive" to a Policy. Empty means Strict.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "inclusive":
		return Inclusive, nil
	}
	return Strict, fmt.Errorf("unknown expiry policy %q", s)
}

func (p Policy) keep(d, reference date.Expiry) bool {
	if p == Inclusive {
		return !d.Before(reference)
	}
	return d.After(reference)
}

// Resolver turns raw expiry strings into the ordered list of upcoming expiries.
type Resolver struct {
	Policy Policy
	Log    logrus.FieldLogger
}

// Resolve parses raw, keeps dates after (or on, if inclusive) reference, sorts them and returns the first count.
// count <= 0 means no limit. Unparsable dates are logged and skipped.
func (r Resolver) Resolve(raw []string, reference date.Expiry, count int) ([]date.Expiry, error) {
	seen := make(map[date.Expiry]bool)
	var upcoming []date.Expiry

	for _, s := range raw {
		d, err := date.ParseExpiry(s)
		if err != nil {
			if r.Log != nil {
				r.Log.WithError(err).Warnf("Skipping invalid expiry date %q", s)
			}
			continue
		}
		if !r.Policy.keep(d, reference) || seen[d] {
			continue
		}
		seen[d] = true
		upcoming = append(upcoming, d)
	}

	if len(upcoming) == 0 {
		return nil, fmt.Errorf("%w after %s (%s); available dates: %v", ErrNoFutureExpiry, reference, r.Policy, raw)
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].Before(upcoming[j])
	})

	if count > 0 && len(upcoming) > count {
		upcoming = upcoming[:count]
	}

	return upcoming, nil
}

// Resolve is Resolver.Resolve without logging.
func Resolve(raw []string, reference date.Expiry, count int, policy Policy) ([]date.Expiry, error) {
	return Resolver{Policy: policy}.Resolve(raw, reference, count)
}
