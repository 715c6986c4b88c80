package chain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Column is one spreadsheet column: its header and how to read its cell from a record.
type Column struct {
	Header string
	Value  func(StrikeRecord) interface{}
}

// Layout is the ordered column set written to a sink. Header and rows come from the same list so they
// cannot drift apart; consumers index columns by position.
type Layout []Column

func price(d decimal.Decimal) interface{} {
	return d.InexactFloat64()
}

var (
	colCallOI       = Column{"CE OI", func(r StrikeRecord) interface{} { return r.Call.OpenInterest }}
	colCallChangeOI = Column{"CE Chng OI", func(r StrikeRecord) interface{} { return r.Call.ChangeInOpenInterest }}
	colCallVolume   = Column{"CE Volume", func(r StrikeRecord) interface{} { return r.Call.Volume }}
	colCallIV       = Column{"CE IV", func(r StrikeRecord) interface{} { return price(r.Call.ImpliedVolatility) }}
	colCallLTP      = Column{"CE LTP", func(r StrikeRecord) interface{} { return price(r.Call.LastPrice) }}
	colCallBidQty   = Column{"CE Bid Qty", func(r StrikeRecord) interface{} { return r.Call.BidQuantity }}
	colCallBid      = Column{"CE Bid", func(r StrikeRecord) interface{} { return price(r.Call.BidPrice) }}
	colCallAsk      = Column{"CE Ask", func(r StrikeRecord) interface{} { return price(r.Call.AskPrice) }}
	colCallAskQty   = Column{"CE Ask Qty", func(r StrikeRecord) interface{} { return r.Call.AskQuantity }}
	colStrike       = Column{"Strike Price", func(r StrikeRecord) interface{} { return price(r.Strike) }}
	colExpiry       = Column{"Expiry Date", func(r StrikeRecord) interface{} { return r.Expiry.String() }}
	colPutBidQty    = Column{"PE Bid Qty", func(r StrikeRecord) interface{} { return r.Put.BidQuantity }}
	colPutBid       = Column{"PE Bid", func(r StrikeRecord) interface{} { return price(r.Put.BidPrice) }}
	colPutAsk       = Column{"PE Ask", func(r StrikeRecord) interface{} { return price(r.Put.AskPrice) }}
	colPutAskQty    = Column{"PE Ask Qty", func(r StrikeRecord) interface{} { return r.Put.AskQuantity }}
	colPutLTP       = Column{"PE LTP", func(r StrikeRecord) interface{} { return price(r.Put.LastPrice) }}
	colPutIV        = Column{"PE IV", func(r StrikeRecord) interface{} { return price(r.Put.ImpliedVolatility) }}
	colPutVolume    = Column{"PE Volume", func(r StrikeRecord) interface{} { return r.Put.Volume }}
	colPutChangeOI  = Column{"PE Chng OI", func(r StrikeRecord) interface{} { return r.Put.ChangeInOpenInterest }}
	colPutOI        = Column{"PE OI", func(r StrikeRecord) interface{} { return r.Put.OpenInterest }}
)

// DefaultLayout mirrors the option chain sheets: calls, strike, expiry, puts.
var DefaultLayout = Layout{
	colCallOI,
	colCallChangeOI,
	colCallLTP,
	colStrike,
	colExpiry,
	colPutLTP,
	colPutChangeOI,
	colPutOI,
}

// DetailedLayout adds IV, volume and the top of book on both sides, mirrored around the strike.
var DetailedLayout = Layout{
	colCallOI,
	colCallChangeOI,
	colCallVolume,
	colCallIV,
	colCallLTP,
	colCallBidQty,
	colCallBid,
	colCallAsk,
	colCallAskQty,
	colStrike,
	colExpiry,
	colPutBidQty,
	colPutBid,
	colPutAsk,
	colPutAskQty,
	colPutLTP,
	colPutIV,
	colPutVolume,
	colPutChangeOI,
	colPutOI,
}

// LayoutByName returns "default" or "detailed".
func LayoutByName(name string) (Layout, error) {
	switch name {
	case "", "default":
		return DefaultLayout, nil
	case "detailed":
		return DetailedLayout, nil
	}
	return nil, fmt.Errorf("unknown layout %q", name)
}

// Header returns the header row.
func (l Layout) Header() []string {
	header := make([]string, len(l))
	for i, c := range l {
		header[i] = c.Header
	}
	return header
}

// Row returns the cells of one record.
func (l Layout) Row(r StrikeRecord) []interface{} {
	row := make([]interface{}, len(l))
	for i, c := range l {
		row[i] = c.Value(r)
	}
	return row
}

// Rows returns the cells of every record in the table, in table order.
func (l Layout) Rows(t Table) [][]interface{} {
	rows := make([][]interface{}, 0, len(t.Records))
	for _, r := range t.Records {
		rows = append(rows, l.Row(r))
	}
	return rows
}
