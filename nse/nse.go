// Package nse reads option chains from the NSE India JSON API.
package nse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/erikbryant/web"
	"github.com/imroc/req/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/source"
)

// DefaultBaseURL is the public NSE site.
const DefaultBaseURL = "https://www.nseindia.com"

// Indices are the symbols served by the index endpoint. Everything else is looked up as an equity.
var Indices = []string{"NIFTY", "BANKNIFTY", "FINNIFTY", "MIDCPNIFTY", "NIFTYNXT50"}

// Config tunes the HTTP session.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	Retries           int
	RetryWait         time.Duration
	RequestsPerSecond float64
	Indices           []string
	// CacheFor reuses a decoded payload for this long, so the expiry list and the strikes of one cycle
	// come from a single download. Zero disables reuse.
	CacheFor          time.Duration
}

// DefaultConfig matches what the site tolerates from a single client.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Timeout:           10 * time.Second,
		Retries:           3,
		RetryWait:         time.Second,
		RequestsPerSecond: 1,
		Indices:           Indices,
		CacheFor:          5 * time.Second,
	}
}

// Browser-like headers; the API answers 401 without them.
var headers = map[string]string{
	"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36",
	"Accept":          "application/json, text/plain, */*",
	"Accept-Language": "en-US,en;q=0.9",
	"Connection":      "keep-alive",
}

// Client is a cookie-holding session against the NSE API. Calls are sequential.
type Client struct {
	cfg     Config
	http    *req.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger

	mu       sync.Mutex
	warmed   bool
	payloads map[string]payload
}

// payload is a decoded API response and when it was fetched.
type payload struct {
	at time.Time
	m  map[string]interface{}
}

// New returns a client. No request is made until the first call.
func New(cfg Config, log logrus.FieldLogger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.Indices) == 0 {
		cfg.Indices = Indices
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	h := make(map[string]string, len(headers)+1)
	for k, v := range headers {
		h[k] = v
	}
	h["Referer"] = cfg.BaseURL + "/option-chain"

	client := req.C().
		SetTimeout(cfg.Timeout).
		SetCommonHeaders(h).
		SetCommonRetryCount(cfg.Retries).
		SetCommonRetryBackoffInterval(cfg.RetryWait, 4*cfg.RetryWait).
		AddCommonRetryCondition(func(resp *req.Response, err error) bool {
			if err != nil || resp == nil {
				return true
			}
			return source.Retryable(resp.GetStatusCode())
		})

	return &Client{
		cfg:     cfg,
		http:    client,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
		payloads: make(map[string]payload),
	}
}

// isIndex reports whether symbol is served by the index endpoint.
func (c *Client) isIndex(symbol string) bool {
	for _, s := range c.cfg.Indices {
		if strings.EqualFold(s, symbol) {
			return true
		}
	}
	return false
}

// get performs one paced GET and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, url string, query map[string]string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.http.R().SetContext(ctx).SetQueryParams(query).Get(url)
	if err != nil {
		return nil, &source.TransportError{URL: url, Err: err}
	}

	status := resp.GetStatusCode()
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		// The cookies went stale; start a new session next time.
		c.mu.Lock()
		c.warmed = false
		c.mu.Unlock()
	}
	if !resp.IsSuccessState() {
		return nil, &source.TransportError{URL: url, StatusCode: status}
	}

	body, err := resp.ToBytes()
	if err != nil {
		return nil, &source.TransportError{URL: url, StatusCode: status, Err: err}
	}

	return body, nil
}

// warmUp loads the option chain page so the session picks up the cookies the API insists on.
func (c *Client) warmUp(ctx context.Context) error {
	c.mu.Lock()
	warmed := c.warmed
	c.mu.Unlock()
	if warmed {
		return nil
	}

	if _, err := c.get(ctx, c.cfg.BaseURL+"/option-chain", nil); err != nil {
		return fmt.Errorf("unable to open NSE session: %w", err)
	}

	if c.log != nil {
		c.log.Debug("NSE session cookies fetched")
	}

	c.mu.Lock()
	c.warmed = true
	c.mu.Unlock()

	return nil
}

// cached returns the payload of symbol if it is younger than CacheFor.
func (c *Client) cached(symbol string) (map[string]interface{}, bool) {
	if c.cfg.CacheFor <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.payloads[symbol]
	if !ok || time.Since(p.at) >= c.cfg.CacheFor {
		return nil, false
	}
	return p.m, true
}

func (c *Client) store(symbol string, m map[string]interface{}) {
	if c.cfg.CacheFor <= 0 {
		return
	}

	c.mu.Lock()
	c.payloads[symbol] = payload{at: time.Now(), m: m}
	c.mu.Unlock()
}

// webRequest fetches the option chain payload for a symbol, or reuses a recent one.
func (c *Client) webRequest(ctx context.Context, symbol string) (map[string]interface{}, error) {
	symbol = strings.ToUpper(symbol)
	if m, ok := c.cached(symbol); ok {
		return m, nil
	}

	if err := c.warmUp(ctx); err != nil {
		return nil, err
	}

	path := "/api/option-chain-equities"
	if c.isIndex(symbol) {
		path = "/api/option-chain-indices"
	}

	body, err := c.get(ctx, c.cfg.BaseURL+path, map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}

	var m interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &chain.ParseError{Field: "payload", Value: symbol, Err: err}
	}

	// If the request was successful we should get back a map. A blocked session gets a bare string or list.
	f, ok := m.(map[string]interface{})
	if !ok {
		return nil, &chain.ParseError{Field: "payload", Value: symbol, Err: fmt.Errorf("expected an object, got %T", m)}
	}

	c.store(symbol, f)

	return f, nil
}

// records returns payload["records"][key] as a list.
func records(m map[string]interface{}, key string) ([]interface{}, error) {
	v, err := web.MsiValue(m, []string{"records", key})
	if err != nil {
		return nil, &chain.ParseError{Field: "records." + key, Err: err}
	}

	list, ok := v.([]interface{})
	if !ok {
		return nil, &chain.ParseError{Field: "records." + key, Value: v, Err: fmt.Errorf("expected a list")}
	}

	return list, nil
}

// Expiries returns the expiry dates NSE lists for symbol, as sent.
func (c *Client) Expiries(ctx context.Context, symbol string) ([]string, error) {
	m, err := c.webRequest(ctx, symbol)
	if err != nil {
		return nil, err
	}

	list, err := records(m, "expiryDates")
	if err != nil {
		return nil, err
	}

	var expiries []string
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			if c.log != nil {
				c.log.Warnf("Skipping non-string expiry date %v for %s", v, symbol)
			}
			continue
		}
		expiries = append(expiries, s)
	}

	return expiries, nil
}

// Entries returns every strike entry NSE sends for symbol. NSE serves all expiries in one payload, so
// expiries is not needed to build the request.
func (c *Client) Entries(ctx context.Context, symbol string, expiries []date.Expiry) ([]chain.Entry, error) {
	m, err := c.webRequest(ctx, symbol)
	if err != nil {
		return nil, err
	}

	list, err := records(m, "data")
	if err != nil {
		return nil, err
	}

	entries := make([]chain.Entry, 0, len(list))
	for _, v := range list {
		e, ok := v.(map[string]interface{})
		if !ok {
			if c.log != nil {
				c.log.Warnf("Skipping non-object strike entry %v for %s", v, symbol)
			}
			continue
		}
		entries = append(entries, chain.Entry(e))
	}

	if len(entries) == 0 {
		return nil, &chain.ParseError{Field: "records.data", Value: symbol, Err: fmt.Errorf("no option chain data")}
	}

	return entries, nil
}

var _ source.Source = (*Client)(nil)
