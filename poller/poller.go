// Package poller runs the fetch, normalize and write cycle over the configured tabs.
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/config"
	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/expiry"
	"github.com/erikbryant/optionchain/sink"
	"github.com/erikbryant/optionchain/source"
)

// Mapping is the ordered list of tabs to keep up to date.
type Mapping []config.Tab

// Group is every tab fed from one symbol.
type Group struct {
	Symbol string
	Tabs   []config.Tab
}

// Groups collects tabs by symbol, in order of first appearance, so each symbol is fetched once per cycle.
func (m Mapping) Groups() []Group {
	index := make(map[string]int)
	var groups []Group

	for _, t := range m {
		key := strings.ToUpper(t.Symbol)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Symbol: key})
		}
		groups[i].Tabs = append(groups[i].Tabs, t)
	}

	return groups
}

// Report says what one cycle did.
type Report struct {
	ID      string
	Written []string
	Skipped []string
}

// Poller holds everything a cycle needs.
type Poller struct {
	Source     source.Source
	Sink       sink.Sink
	Tabs       Mapping
	Hours      date.Hours
	Interval   time.Duration
	Resolver   expiry.Resolver
	Normalizer chain.Normalizer
	Layout     chain.Layout
	Log        logrus.FieldLogger

	// Now and Sleep default to the wall clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p *Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Poller) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Poller) location() *time.Location {
	if p.Hours.Location == nil {
		return time.UTC
	}
	return p.Hours.Location
}

func (p *Poller) log() logrus.FieldLogger {
	if p.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return p.Log
}

// symbolError marks a failure that only affects the current symbol.
type symbolError struct {
	err error
}

func (e *symbolError) Error() string { return e.err.Error() }
func (e *symbolError) Unwrap() error { return e.err }

// Cycle updates every tab once. Problems with one symbol's expiries or payload skip that symbol's
// tabs; transport and sink failures stop the cycle and are returned.
func (p *Poller) Cycle(ctx context.Context) (Report, error) {
	report := Report{ID: uuid.NewString()}
	log := p.log().WithField("cycle", report.ID)

	for _, g := range p.Tabs.Groups() {
		if err := p.symbol(ctx, log.WithField("symbol", g.Symbol), g, &report); err != nil {
			var se *symbolError
			if errors.As(err, &se) {
				log.WithError(se.err).WithField("symbol", g.Symbol).Warn("Skipping symbol")
				for _, t := range g.Tabs {
					report.Skipped = append(report.Skipped, t.Name)
				}
				continue
			}
			return report, err
		}
	}

	log.WithFields(logrus.Fields{"written": len(report.Written), "skipped": len(report.Skipped)}).Info("Cycle complete")

	return report, nil
}

// symbol fetches one symbol and writes its tabs.
func (p *Poller) symbol(ctx context.Context, log logrus.FieldLogger, g Group, report *Report) error {
	selectors := make([]expiry.Selector, len(g.Tabs))
	for i, t := range g.Tabs {
		selectors[i] = t.Expiry
	}

	var upcoming []date.Expiry
	if depth := expiry.Depth(selectors); depth > 0 {
		raw, err := p.Source.Expiries(ctx, g.Symbol)
		if err != nil {
			return classify(err)
		}

		today := date.FromTime(p.now().In(p.location()))
		upcoming, err = p.Resolver.Resolve(raw, today, depth)
		if err != nil {
			return &symbolError{err}
		}
	}

	picked := make([]date.Expiry, len(g.Tabs))
	var wanted []date.Expiry
	seen := make(map[date.Expiry]bool)
	for i, s := range selectors {
		e, err := s.Pick(upcoming)
		if err != nil {
			return &symbolError{fmt.Errorf("tab %q: %w", g.Tabs[i].Name, err)}
		}
		picked[i] = e
		if !seen[e] {
			seen[e] = true
			wanted = append(wanted, e)
		}
	}

	entries, err := p.Source.Entries(ctx, g.Symbol, wanted)
	if err != nil {
		return classify(err)
	}

	tables, err := p.Normalizer.Normalize(g.Symbol, entries, wanted)
	if errors.Is(err, chain.ErrEmptyTable) {
		log.WithField("expiries", wanted).Warn("No rows for any selected expiry; leaving tabs unchanged")
		for _, t := range g.Tabs {
			report.Skipped = append(report.Skipped, t.Name)
		}
		return nil
	}
	if err != nil {
		return &symbolError{err}
	}

	header := p.Layout.Header()
	for i, t := range g.Tabs {
		table, ok := chain.Find(tables, picked[i])
		if !ok {
			log.WithFields(logrus.Fields{"tab": t.Name, "expiry": picked[i].String()}).Warn("No rows for expiry; leaving tab unchanged")
			report.Skipped = append(report.Skipped, t.Name)
			continue
		}

		if err := p.Sink.ReplaceTab(ctx, t.Name, header, p.Layout.Rows(table)); err != nil {
			return fmt.Errorf("updating tab %q: %w", t.Name, err)
		}

		log.WithFields(logrus.Fields{"tab": t.Name, "expiry": picked[i].String(), "rows": table.Len()}).Info("Updated tab")
		report.Written = append(report.Written, t.Name)
	}

	return nil
}

// classify keeps transport failures and cancellation fatal for the cycle and narrows everything
// else, such as a malformed payload, to the symbol.
func classify(err error) error {
	var te *source.TransportError
	if errors.As(err, &te) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &symbolError{err}
}

// Run polls until ctx is done: a cycle when the market is open, then a fixed wait. Cycle errors are
// logged and the next interval tries again.
func (p *Poller) Run(ctx context.Context) error {
	log := p.log()
	log.WithFields(logrus.Fields{"tabs": len(p.Tabs), "interval": p.Interval}).Info("Starting poller")

	for {
		now := p.now()
		if p.Hours.InTradingHours(now) {
			if _, err := p.Cycle(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}
				log.WithError(err).Error("Cycle failed")
			}
		} else {
			entry := log.WithField("now", now.In(p.location()).Format(time.RFC3339))
			if next, ok := p.Hours.NextOpen(now); ok {
				entry = entry.WithField("next_open", next.Format(time.RFC3339))
			}
			entry.Info("Market closed")
		}

		if err := p.sleep(ctx, p.Interval); err != nil {
			break
		}
	}

	log.Info("Poller stopped")
	return nil
}
