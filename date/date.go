package date

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Expiry is the calendar date on which a contract stops trading. It has no time of day and no location.
type Expiry struct {
	t time.Time
}

// ParseError reports a date string that could not be understood.
type ParseError struct {
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse date %q: %v", e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

var errEmpty = errors.New("empty value")

// Layouts tried before falling back to dateparse. NSE sends 02-Jan-2006, moneycontrol and niftytrader 2006-01-02.
var layouts = []string{
	"02-Jan-2006",
	"2-Jan-2006",
	"2006-01-02",
	"02-January-2006",
	"02 Jan 2006",
}

// NewExpiry returns the expiry for the given calendar date.
func NewExpiry(year int, month time.Month, day int) Expiry {
	return Expiry{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime returns the calendar date of t in t's own location.
func FromTime(t time.Time) Expiry {
	year, month, day := t.Date()
	return NewExpiry(year, month, day)
}

// ParseExpiry parses an expiry date in any of the formats the upstream sources use.
func ParseExpiry(s string) (Expiry, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return Expiry{}, &ParseError{Value: s, Err: errEmpty}
	}

	for _, layout := range layouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return FromTime(t), nil
		}
	}

	t, err := dateparse.ParseIn(raw, time.UTC, dateparse.PreferMonthFirst(false))
	if err != nil {
		return Expiry{}, &ParseError{Value: s, Err: err}
	}

	return FromTime(t), nil
}

// MustParseExpiry is ParseExpiry for literals known to be valid. It panics on error.
func MustParseExpiry(s string) Expiry {
	e, err := ParseExpiry(s)
	if err != nil {
		panic(err)
	}
	return e
}

// IsZero reports whether e is the zero Expiry.
func (e Expiry) IsZero() bool {
	return e.t.IsZero()
}

// Before reports whether e is an earlier calendar date than other.
func (e Expiry) Before(other Expiry) bool {
	return e.t.Before(other.t)
}

// After reports whether e is a later calendar date than other.
func (e Expiry) After(other Expiry) bool {
	return e.t.After(other.t)
}

// Equal reports whether e and other are the same calendar date.
func (e Expiry) Equal(other Expiry) bool {
	return e.t.Equal(other.t)
}

// Time returns midnight UTC of the expiry date.
func (e Expiry) Time() time.Time {
	return e.t
}

// String renders the date the way NSE does, e.g. 28-Aug-2025.
func (e Expiry) String() string {
	if e.IsZero() {
		return ""
	}
	return e.t.Format("02-Jan-2006")
}

// ISO renders the date as 2006-01-02.
func (e Expiry) ISO() string {
	if e.IsZero() {
		return ""
	}
	return e.t.Format("2006-01-02")
}

// MarshalText lets an Expiry be used in JSON and YAML documents.
func (e Expiry) MarshalText() ([]byte, error) {
	return []byte(e.ISO()), nil
}

// UnmarshalText accepts any format ParseExpiry does.
func (e *Expiry) UnmarshalText(text []byte) error {
	parsed, err := ParseExpiry(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
