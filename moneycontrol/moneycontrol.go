// Package moneycontrol scrapes option chains from the moneycontrol option chain pages.
package moneycontrol

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/erikbryant/web"
	"github.com/sirupsen/logrus"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/source"
)

// DefaultBaseURL is the index option chain page.
const DefaultBaseURL = "https://www.moneycontrol.com/indices/fno/view-option-chain"

var headers = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Accept":     "text/html,application/xhtml+xml",
}

// labels maps a normalized header cell to the entry key it fills.
var labels = map[string]string{
	"oi":            chain.KeyOI,
	"open interest": chain.KeyOI,
	"chng in oi":    chain.KeyChangeOI,
	"change in oi":  chain.KeyChangeOI,
	"ltp":           chain.KeyLastPrice,
	"iv":            chain.KeyIV,
	"volume":        chain.KeyVolume,
	"bid qty":       chain.KeyBidQty,
	"bid":           chain.KeyBidPrice,
	"bid price":     chain.KeyBidPrice,
	"ask":           chain.KeyAskPrice,
	"ask price":     chain.KeyAskPrice,
	"ask qty":       chain.KeyAskQty,
	"offer qty":     chain.KeyAskQty,
	"offer price":   chain.KeyAskPrice,
}

const strikeLabel = "strike price"

// Client fetches moneycontrol pages.
type Client struct {
	BaseURL  string
	// PriceURL is the price history endpoint, DefaultPriceURL if empty.
	PriceURL string
	Log      logrus.FieldLogger
}

// New returns a client for baseURL, or the public site if it is empty.
func New(baseURL string, log logrus.FieldLogger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), PriceURL: DefaultPriceURL, Log: log}
}

// webRequest GETs url and parses the HTML.
func (c *Client) webRequest(ctx context.Context, url string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := web.Request2(url, headers)
	if err != nil {
		return nil, &source.TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &source.TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &chain.ParseError{Field: "html", Value: url, Err: err}
	}

	return doc, nil
}

// Expiries returns the values of the expiry drop-down on the symbol's page.
func (c *Client) Expiries(ctx context.Context, symbol string) ([]string, error) {
	doc, err := c.webRequest(ctx, c.BaseURL+"/"+strings.ToUpper(symbol))
	if err != nil {
		return nil, err
	}

	expiries := ParseExpiries(doc)
	if len(expiries) == 0 {
		return nil, &chain.ParseError{Field: "fno_expiry", Value: symbol, Err: fmt.Errorf("no expiry options")}
	}

	return expiries, nil
}

// Entries fetches one page per expiry. The site serves a single expiry per page.
func (c *Client) Entries(ctx context.Context, symbol string, expiries []date.Expiry) ([]chain.Entry, error) {
	var entries []chain.Entry

	for _, e := range expiries {
		url := fmt.Sprintf("%s/%s/%s", c.BaseURL, strings.ToUpper(symbol), e.ISO())
		doc, err := c.webRequest(ctx, url)
		if err != nil {
			return nil, err
		}

		page, err := ParseChain(doc, e)
		if err != nil {
			if c.Log != nil {
				c.Log.WithError(err).Warnf("No option chain table for %s %s", symbol, e)
			}
			continue
		}
		entries = append(entries, page...)
	}

	return entries, nil
}

// ParseExpiries returns the non-empty option values of select#fno_expiry in page order.
func ParseExpiries(doc *goquery.Document) []string {
	var expiries []string

	doc.Find("select#fno_expiry option").Each(func(_ int, s *goquery.Selection) {
		v, ok := s.Attr("value")
		if !ok {
			return
		}
		v = strings.TrimSpace(v)
		if v != "" {
			expiries = append(expiries, v)
		}
	})

	return expiries
}

// normalize lowercases a header cell and collapses its whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// cells returns the trimmed text of the th/td cells of a row.
func cells(row *goquery.Selection) []string {
	var out []string
	row.Find("th, td").Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

// chainTable finds the option chain table and the index of its header row: the first table having a
// "Strike Price" header cell.
func chainTable(doc *goquery.Document) (*goquery.Selection, int, []string) {
	var table *goquery.Selection
	headerRow := -1
	var header []string

	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		t.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
			c := cells(tr)
			for _, cell := range c {
				if normalize(cell) == strikeLabel {
					table, headerRow, header = t, i, c
					return false
				}
			}
			return true
		})
		return table == nil
	})

	return table, headerRow, header
}

// ParseChain reads the chain table of one expiry page into NSE-shaped entries. Columns left of the strike
// are the call side, columns right of it the put side. Unknown columns are ignored.
func ParseChain(doc *goquery.Document, expiry date.Expiry) ([]chain.Entry, error) {
	table, headerRow, header := chainTable(doc)
	if table == nil {
		return nil, &chain.ParseError{Field: "table", Value: expiry.String(), Err: fmt.Errorf("no %q column", "Strike Price")}
	}

	strike := -1
	for i, h := range header {
		if normalize(h) == strikeLabel {
			strike = i
			break
		}
	}

	var entries []chain.Entry
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i <= headerRow {
			return
		}
		row := cells(tr)
		if len(row) != len(header) {
			return
		}

		call := map[string]interface{}{}
		put := map[string]interface{}{}
		for j, h := range header {
			key, ok := labels[normalize(h)]
			if !ok {
				continue
			}
			switch {
			case j < strike:
				call[key] = row[j]
			case j > strike:
				put[key] = row[j]
			}
		}

		entries = append(entries, chain.Entry{
			chain.KeyStrike: row[strike],
			chain.KeyExpiry: expiry.String(),
			chain.KeyCall:   call,
			chain.KeyPut:    put,
		})
	})

	if len(entries) == 0 {
		return nil, &chain.ParseError{Field: "table", Value: expiry.String(), Err: fmt.Errorf("no rows")}
	}

	return entries, nil
}

var _ source.Source = (*Client)(nil)
