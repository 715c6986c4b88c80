package expiry

import (
	"fmt"

	"github.com/erikbryant/optionchain/date"
)

// Selector picks one expiry for a tab: either the Next'th upcoming expiry (0 is the nearest) or a fixed Date.
type Selector struct {
	Next *int         `yaml:"next,omitempty"`
	Date *date.Expiry `yaml:"date,omitempty"`
}

// Nearest selects the nearest upcoming expiry.
func Nearest() Selector {
	return NextN(0)
}

// NextN selects the n'th upcoming expiry, counting from 0.
func NextN(n int) Selector {
	return Selector{Next: &n}
}

// Fixed selects a specific expiry date.
func Fixed(d date.Expiry) Selector {
	return Selector{Date: &d}
}

// Validate checks that exactly one of Next and Date is set.
func (s Selector) Validate() error {
	if (s.Next == nil) == (s.Date == nil) {
		return fmt.Errorf("expiry selector needs exactly one of next or date")
	}
	if s.Next != nil && *s.Next < 0 {
		return fmt.Errorf("expiry selector next must be >= 0, got %d", *s.Next)
	}
	return nil
}

// IsFixed reports whether the selector names a date rather than a position.
func (s Selector) IsFixed() bool {
	return s.Date != nil
}

// Pick returns the selected expiry from the ordered list of upcoming expiries.
func (s Selector) Pick(upcoming []date.Expiry) (date.Expiry, error) {
	if s.Date != nil {
		return *s.Date, nil
	}
	if s.Next == nil {
		return date.Expiry{}, fmt.Errorf("empty expiry selector")
	}
	if *s.Next >= len(upcoming) {
		return date.Expiry{}, fmt.Errorf("%w: wanted expiry #%d but only %d available", ErrNoFutureExpiry, *s.Next, len(upcoming))
	}
	return upcoming[*s.Next], nil
}

func (s Selector) String() string {
	if s.Date != nil {
		return s.Date.String()
	}
	if s.Next != nil {
		return fmt.Sprintf("next #%d", *s.Next)
	}
	return "<none>"
}

// Depth returns how many upcoming expiries must be resolved to satisfy every positional selector.
// Zero means all selectors are fixed dates and nothing needs resolving.
func Depth(selectors []Selector) int {
	depth := 0
	for _, s := range selectors {
		if s.Next != nil && *s.Next+1 > depth {
			depth = *s.Next + 1
		}
	}
	return depth
}
