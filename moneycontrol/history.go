package moneycontrol

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/erikbryant/web"
	"github.com/shopspring/decimal"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/source"
	"github.com/erikbryant/optionchain/vwap"
)

// DefaultPriceURL is the chart history endpoint behind the stock pages.
const DefaultPriceURL = "https://priceapi.moneycontrol.com/techCharts/indianMarket/stock/history"

// Nifty50 are the index constituents as the price API names them.
var Nifty50 = []string{
	"RELIANCE", "TCS", "INFY", "HDFCBANK", "ICICIBANK", "HINDUNILVR", "SBIN", "KOTAKBANK",
	"LT", "ITC", "AXISBANK", "BAJFINANCE", "HDFC", "MARUTI", "ONGC", "BHARTIARTL", "ASIANPAINT",
	"TECHM", "SUNPHARMA", "WIPRO", "ULTRACEMCO", "NESTLEIND", "POWERGRID", "TITAN", "HCLTECH",
	"JSWSTEEL", "INDUSINDBK", "TATASTEEL", "BPCL", "NTPC", "M&M", "COALINDIA", "DIVISLAB",
	"GRASIM", "BAJAJFINSV", "HDFCLIFE", "EICHERMOT", "TATAMOTORS", "SBILIFE", "ADANIPORTS",
	"BRITANNIA", "HINDALCO", "UPL", "TATACONSUM", "CIPLA", "DRREDDY", "IOC", "VEDL",
}

var priceHeaders = map[string]string{
	"User-Agent": headers["User-Agent"],
	"Accept":     "application/json",
	"Referer":    "https://www.moneycontrol.com/",
}

// series returns m[key] as a list of numbers.
func series(m map[string]interface{}, key string) ([]decimal.Decimal, error) {
	v, err := web.MsiValue(m, []string{key})
	if err != nil {
		return nil, &chain.ParseError{Field: key, Err: err}
	}

	list, ok := v.([]interface{})
	if !ok {
		return nil, &chain.ParseError{Field: key, Value: v, Err: fmt.Errorf("expected a list")}
	}

	out := make([]decimal.Decimal, len(list))
	for i, x := range list {
		f, ok := x.(float64)
		if !ok {
			return nil, &chain.ParseError{Field: key, Value: x, Err: fmt.Errorf("expected a number")}
		}
		out[i] = decimal.NewFromFloat(f)
	}

	return out, nil
}

// History returns the one-minute candles of symbol between from and to.
func (c *Client) History(ctx context.Context, symbol string, from, to time.Time) ([]vwap.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priceURL := c.PriceURL
	if priceURL == "" {
		priceURL = DefaultPriceURL
	}

	q := url.Values{}
	q.Set("symbol", strings.ToUpper(symbol))
	q.Set("resolution", "1")
	q.Set("from", strconv.FormatInt(from.Unix(), 10))
	q.Set("to", strconv.FormatInt(to.Unix(), 10))
	q.Set("countback", "500")
	q.Set("currencyCode", "INR")
	u := priceURL + "?" + q.Encode()

	resp, err := web.Request2(u, priceHeaders)
	if err != nil {
		return nil, &source.TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.TransportError{URL: u, StatusCode: resp.StatusCode}
	}

	var m map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, &chain.ParseError{Field: "history", Value: symbol, Err: err}
	}

	times, err := series(m, "t")
	if err != nil {
		return nil, err
	}
	closes, err := series(m, "c")
	if err != nil {
		return nil, err
	}
	volumes, err := series(m, "v")
	if err != nil {
		return nil, err
	}

	n := len(times)
	if len(closes) < n {
		n = len(closes)
	}
	if len(volumes) < n {
		n = len(volumes)
	}

	candles := make([]vwap.Candle, 0, n)
	for i := 0; i < n; i++ {
		candles = append(candles, vwap.Candle{
			Time:   time.Unix(times[i].IntPart(), 0),
			Close:  closes[i],
			Volume: volumes[i],
		})
	}

	return candles, nil
}
