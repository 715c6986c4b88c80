package main

import (
	"context"
	"fmt"
	"time"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/config"
	"github.com/erikbryant/optionchain/csv"
	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/expiry"
	"github.com/erikbryant/optionchain/gdrive"
	"github.com/erikbryant/optionchain/logger"
	"github.com/erikbryant/optionchain/moneycontrol"
	"github.com/erikbryant/optionchain/nse"
	"github.com/erikbryant/optionchain/poller"
	"github.com/erikbryant/optionchain/proxy"
	"github.com/erikbryant/optionchain/sheets"
	"github.com/erikbryant/optionchain/sink"
	"github.com/erikbryant/optionchain/source"
)

// app is the loaded configuration and logger every command starts from.
type app struct {
	cfg   *config.Config
	log   *logger.Log
	hours date.Hours
}

// setup loads .env, the config file and the logger. strict validates everything a poll cycle needs.
func setup(strict bool) (*app, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}

	load := config.Read
	if strict {
		load = config.Load
	}
	cfg, err := load(configPath)
	if err != nil {
		return nil, err
	}

	hours, err := cfg.Market.Hours()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, log: log, hours: hours}, nil
}

func (a *app) close() {
	a.log.Close()
}

// today is the calendar date at the exchange.
func (a *app) today() date.Expiry {
	return date.FromTime(time.Now().In(a.hours.Location))
}

func (a *app) resolver() (expiry.Resolver, error) {
	policy, err := expiry.ParsePolicy(a.cfg.Policy)
	if err != nil {
		return expiry.Resolver{}, err
	}
	return expiry.Resolver{Policy: policy, Log: a.log.WithComponent("expiry")}, nil
}

func (a *app) source() (source.Source, error) {
	c := a.cfg.Source
	switch c.Name {
	case "nse":
		return nse.New(nse.Config{
			BaseURL:           c.BaseURL,
			Timeout:           c.Timeout,
			Retries:           c.Retries,
			RetryWait:         c.RetryWait,
			RequestsPerSecond: c.RequestsPerSecond,
			Indices:           c.Indices,
			CacheFor:          c.CacheFor,
		}, a.log.WithComponent("nse")), nil
	case "moneycontrol":
		return moneycontrol.New(c.BaseURL, a.log.WithComponent("moneycontrol")), nil
	}
	return nil, fmt.Errorf("unknown source %q", c.Name)
}

func (a *app) sink(ctx context.Context) (sink.Sink, error) {
	c := a.cfg.Sink
	switch c.Kind {
	case "csv":
		return csv.New(c.CSVDir)
	case "sheets":
		client, err := gdrive.NewAuth(a.log.WithComponent("gdrive")).Client(ctx, gdrive.Credentials{
			Path:       c.CredentialsPath,
			JSON:       c.Credentials,
			Passphrase: c.Passphrase,
			TokenFile:  c.TokenFile,
		})
		if err != nil {
			return nil, err
		}

		srv, driveSrv, err := gdrive.Services(ctx, client)
		if err != nil {
			return nil, err
		}

		id := c.SpreadsheetID
		if id == "" {
			id, err = gdrive.FindSpreadsheet(ctx, driveSrv, c.SpreadsheetTitle)
			if err != nil {
				return nil, err
			}
		}

		return sheets.New(srv, id, a.log.WithComponent("sheets")), nil
	}
	return nil, fmt.Errorf("unknown sink %q", c.Kind)
}

func (a *app) poller(ctx context.Context) (*poller.Poller, error) {
	src, err := a.source()
	if err != nil {
		return nil, err
	}
	s, err := a.sink(ctx)
	if err != nil {
		return nil, err
	}
	resolver, err := a.resolver()
	if err != nil {
		return nil, err
	}
	layout, err := chain.LayoutByName(a.cfg.Layout)
	if err != nil {
		return nil, err
	}

	return &poller.Poller{
		Source:     src,
		Sink:       s,
		Tabs:       poller.Mapping(a.cfg.Tabs),
		Hours:      a.hours,
		Interval:   a.cfg.Interval,
		Resolver:   resolver,
		Normalizer: chain.Normalizer{Log: a.log.WithComponent("chain")},
		Layout:     layout,
		Log:        a.log.WithComponent("poller"),
	}, nil
}

func (a *app) proxy() (*proxy.Server, error) {
	src, err := a.source()
	if err != nil {
		return nil, err
	}
	resolver, err := a.resolver()
	if err != nil {
		return nil, err
	}

	return &proxy.Server{
		Source:     src,
		Resolver:   resolver,
		Normalizer: chain.Normalizer{Log: a.log.WithComponent("chain")},
		Location:   a.hours.Location,
		Log:        a.log.WithComponent("proxy"),
	}, nil
}
