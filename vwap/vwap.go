// Package vwap computes a running volume weighted average price over intraday candles and lays several
// symbols out side by side.
package vwap

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one bar of price history. Only the close and the volume matter here.
type Candle struct {
	Time   time.Time
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Point is a candle with the VWAP of everything up to and including it.
type Point struct {
	Time  time.Time
	Close decimal.Decimal
	VWAP  decimal.Decimal
	// Diff is Close - VWAP.
	Diff  decimal.Decimal
}

// Series is the VWAP line of one symbol.
type Series struct {
	Symbol string
	Points []Point
}

// Compute returns the cumulative VWAP at every candle, in candle order. Until some volume has traded the
// VWAP is the close itself.
func Compute(candles []Candle) []Point {
	points := make([]Point, 0, len(candles))
	pv := decimal.Zero
	volume := decimal.Zero

	for _, c := range candles {
		pv = pv.Add(c.Close.Mul(c.Volume))
		volume = volume.Add(c.Volume)

		v := c.Close
		if volume.IsPositive() {
			v = pv.DivRound(volume, 4)
		}

		points = append(points, Point{Time: c.Time, Close: c.Close, VWAP: v, Diff: c.Close.Sub(v)})
	}

	return points
}

func value(d decimal.Decimal) interface{} {
	return d.InexactFloat64()
}

// Merge joins the series on candle time, newest first. The first column is the time in loc; each symbol
// adds Close, VWAP and Diff columns. A symbol with no candle at a time leaves its cells empty.
func Merge(series []Series, loc *time.Location) ([]string, [][]interface{}) {
	if loc == nil {
		loc = time.UTC
	}

	header := []string{"Time"}
	for _, s := range series {
		header = append(header, s.Symbol+" Close", s.Symbol+" VWAP", s.Symbol+" Diff")
	}

	rows := make(map[int64][]interface{})
	var times []int64

	for i, s := range series {
		for _, p := range s.Points {
			key := p.Time.Unix()
			row, ok := rows[key]
			if !ok {
				row = make([]interface{}, len(header))
				row[0] = p.Time.In(loc).Format("2006-01-02 15:04")
				rows[key] = row
				times = append(times, key)
			}
			col := 1 + 3*i
			row[col], row[col+1], row[col+2] = value(p.Close), value(p.VWAP), value(p.Diff)
		}
	}

	sort.Slice(times, func(i, j int) bool { return times[i] > times[j] })

	out := make([][]interface{}, 0, len(times))
	for _, t := range times {
		out = append(out, rows[t])
	}

	return header, out
}
