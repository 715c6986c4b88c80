// Package chain holds the option chain data model and flattens raw per-strike quotes into rows.
package chain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erikbryant/optionchain/date"
)

// ErrEmptyTable is returned when no entry matched any wanted expiry.
var ErrEmptyTable = errors.New("no rows matched")

// ParseError reports a malformed item in an upstream payload. The item is skipped.
type ParseError struct {
	Field string
	Value interface{}
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("unable to parse %s %v: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("unable to parse %s %v", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// QuoteSide holds the call or put quote for one strike. Anything the source omits is zero.
type QuoteSide struct {
	OpenInterest         int64
	ChangeInOpenInterest int64
	LastPrice            decimal.Decimal
	ImpliedVolatility    decimal.Decimal
	BidPrice             decimal.Decimal
	BidQuantity          int64
	AskPrice             decimal.Decimal
	AskQuantity          int64
	Volume               int64
}

// StrikeRecord is one row of an option chain: a strike, its expiry and both sides of the quote.
type StrikeRecord struct {
	Strike decimal.Decimal
	Expiry date.Expiry
	Call   QuoteSide
	Put    QuoteSide
}

// Table is the chain for one (symbol, expiry) pair in source payload order.
type Table struct {
	Symbol  string
	Expiry  date.Expiry
	Records []StrikeRecord
}

// Len returns the number of rows in the table.
func (t Table) Len() int {
	return len(t.Records)
}

// Summary holds totals over a table.
type Summary struct {
	CallOpenInterest int64
	PutOpenInterest  int64
	// PutCallRatio is put OI / call OI, zero when there is no call OI.
	PutCallRatio decimal.Decimal
}

// Summarize totals open interest across all strikes.
func (t Table) Summarize() Summary {
	var s Summary
	for _, r := range t.Records {
		s.CallOpenInterest += r.Call.OpenInterest
		s.PutOpenInterest += r.Put.OpenInterest
	}
	if s.CallOpenInterest != 0 {
		s.PutCallRatio = decimal.NewFromInt(s.PutOpenInterest).DivRound(decimal.NewFromInt(s.CallOpenInterest), 4)
	}
	return s
}
