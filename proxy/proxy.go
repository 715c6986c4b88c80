// Package proxy serves option chains over HTTP, read through from the configured source on every request.
package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/expiry"
	"github.com/erikbryant/optionchain/source"
)

// Server answers chain and table requests.
type Server struct {
	Source     source.Source
	Resolver   expiry.Resolver
	Normalizer chain.Normalizer
	Location   *time.Location
	Log        logrus.FieldLogger
	Now        func() time.Time
}

type apiRoute struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

func (s *Server) routes() []apiRoute {
	return []apiRoute{
		{Path: "/chain/{symbol}", Method: http.MethodGet, Handler: s.getChain},
		{Path: "/table/{symbol}", Method: http.MethodGet, Handler: s.getTable},
	}
}

// Router returns the HTTP handler: /healthz and the /api/v1 routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	for _, r := range s.routes() {
		api.HandleFunc(r.Path, r.Handler).Methods(r.Method)
	}

	return router
}

func (s *Server) log() logrus.FieldLogger {
	if s.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return s.Log
}

func (s *Server) today() date.Expiry {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	if s.Location != nil {
		now = now.In(s.Location)
	}
	return date.FromTime(now)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var te *source.TransportError
	var cpe *chain.ParseError
	switch {
	case errors.As(err, &te):
		status = http.StatusBadGateway
	case errors.Is(err, expiry.ErrNoFutureExpiry), errors.Is(err, chain.ErrEmptyTable):
		status = http.StatusNotFound
	case errors.As(err, &cpe):
		status = http.StatusUnprocessableEntity
	}

	s.log().WithError(err).WithFields(logrus.Fields{"path": r.URL.Path, "status": status}).Warn("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getChain returns the raw entries of every upcoming expiry, shaped like the NSE payload.
func (s *Server) getChain(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	ctx := r.Context()

	raw, err := s.Source.Expiries(ctx, symbol)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	upcoming, err := s.Resolver.Resolve(raw, s.today(), 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.Source.Entries(ctx, symbol, upcoming)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": map[string]interface{}{
			"expiryDates": raw,
			"data":        entries,
		},
	})
}

// selector reads ?next=k or ?date=YYYY-MM-DD. Neither means the nearest expiry.
func selector(r *http.Request) (expiry.Selector, error) {
	q := r.URL.Query()

	if d := q.Get("date"); d != "" {
		e, err := date.ParseExpiry(d)
		if err != nil {
			return expiry.Selector{}, err
		}
		return expiry.Fixed(e), nil
	}

	if n := q.Get("next"); n != "" {
		k, err := strconv.Atoi(n)
		if err != nil {
			return expiry.Selector{}, err
		}
		sel := expiry.NextN(k)
		return sel, sel.Validate()
	}

	return expiry.Nearest(), nil
}

// getTable returns one expiry as spreadsheet rows.
func (s *Server) getTable(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	ctx := r.Context()

	sel, err := selector(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid next or date: " + err.Error()})
		return
	}

	layout, err := chain.LayoutByName(r.URL.Query().Get("layout"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var upcoming []date.Expiry
	if !sel.IsFixed() {
		raw, err := s.Source.Expiries(ctx, symbol)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		upcoming, err = s.Resolver.Resolve(raw, s.today(), expiry.Depth([]expiry.Selector{sel}))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	e, err := sel.Pick(upcoming)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	entries, err := s.Source.Entries(ctx, symbol, []date.Expiry{e})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	tables, err := s.Normalizer.Normalize(symbol, entries, []date.Expiry{e})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	table := tables[0]
	summary := table.Summarize()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": table.Symbol,
		"expiry": table.Expiry.String(),
		"header": layout.Header(),
		"rows":   layout.Rows(table),
		"summary": map[string]interface{}{
			"callOpenInterest": summary.CallOpenInterest,
			"putOpenInterest":  summary.PutOpenInterest,
			"putCallRatio":     summary.PutCallRatio.InexactFloat64(),
		},
	})
}
