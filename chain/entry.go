package chain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Entry is one raw per-strike object as the NSE API sends it:
//
//	{"strikePrice": 24500, "expiryDate": "28-Aug-2025", "CE": {...}, "PE": {...}}
//
// Sources that are not NSE build entries in the same shape.
type Entry map[string]interface{}

// Keys of an Entry and of its CE/PE sides.
const (
	KeyStrike    = "strikePrice"
	KeyExpiry    = "expiryDate"
	KeyCall      = "CE"
	KeyPut       = "PE"
	KeyOI        = "openInterest"
	KeyChangeOI  = "changeinOpenInterest"
	KeyLastPrice = "lastPrice"
	KeyIV        = "impliedVolatility"
	KeyBidPrice  = "bidprice"
	KeyBidQty    = "bidQty"
	KeyAskPrice  = "askPrice"
	KeyAskQty    = "askQty"
	KeyVolume    = "totalTradedVolume"
)

// get reads a key from a map[string]interface{} and returns it.
func get(i interface{}, key string) interface{} {
	m, ok := i.(map[string]interface{})
	if !ok {
		if e, isEntry := i.(Entry); isEntry {
			m = e
		} else {
			return nil
		}
	}
	return m[key]
}

// missing reports whether a raw value means "no data". The HTML sources print "-" for empty cells.
func missing(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(val)
		return s == "" || s == "-" || s == "--"
	}
	return false
}

// toDecimal converts a raw JSON or scraped value to a decimal. Missing values are zero.
func toDecimal(v interface{}) (decimal.Decimal, error) {
	if missing(v) {
		return decimal.Zero, nil
	}

	switch val := v.(type) {
	case float64:
		return decimal.NewFromFloat(val), nil
	case float32:
		return decimal.NewFromFloat32(val), nil
	case int:
		return decimal.NewFromInt(int64(val)), nil
	case int64:
		return decimal.NewFromInt(val), nil
	case json.Number:
		return decimal.NewFromString(val.String())
	case decimal.Decimal:
		return val, nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		return decimal.NewFromString(s)
	}

	return decimal.Zero, fmt.Errorf("unexpected type %T", v)
}

// number extracts m[key] as a decimal, defaulting to zero.
func number(m interface{}, key string) (decimal.Decimal, error) {
	d, err := toDecimal(get(m, key))
	if err != nil {
		return decimal.Zero, &ParseError{Field: key, Value: get(m, key), Err: err}
	}
	return d, nil
}

// integer extracts m[key] as an int64, defaulting to zero. Fractions are truncated.
func integer(m interface{}, key string) (int64, error) {
	d, err := number(m, key)
	if err != nil {
		return 0, err
	}
	return d.IntPart(), nil
}

// quoteSide flattens a CE or PE object. A missing side is all zeros.
func quoteSide(raw interface{}) (QuoteSide, error) {
	var q QuoteSide
	var err error

	if raw == nil {
		return q, nil
	}

	if q.OpenInterest, err = integer(raw, KeyOI); err != nil {
		return q, err
	}
	if q.ChangeInOpenInterest, err = integer(raw, KeyChangeOI); err != nil {
		return q, err
	}
	if q.LastPrice, err = number(raw, KeyLastPrice); err != nil {
		return q, err
	}
	if q.ImpliedVolatility, err = number(raw, KeyIV); err != nil {
		return q, err
	}
	if q.BidPrice, err = number(raw, KeyBidPrice); err != nil {
		return q, err
	}
	if q.BidQuantity, err = integer(raw, KeyBidQty); err != nil {
		return q, err
	}
	if q.AskPrice, err = number(raw, KeyAskPrice); err != nil {
		return q, err
	}
	if q.AskQuantity, err = integer(raw, KeyAskQty); err != nil {
		return q, err
	}
	if q.Volume, err = integer(raw, KeyVolume); err != nil {
		return q, err
	}

	return q, nil
}

// Strike returns the entry's strike price.
func (e Entry) Strike() (decimal.Decimal, error) {
	raw, ok := e[KeyStrike]
	if !ok || missing(raw) {
		return decimal.Zero, &ParseError{Field: KeyStrike, Value: raw, Err: fmt.Errorf("missing")}
	}
	return number(e, KeyStrike)
}

// ExpiryString returns the raw expiry date string, or "" if there is none.
func (e Entry) ExpiryString() string {
	s, _ := e[KeyExpiry].(string)
	return s
}
