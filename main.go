package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/erikbryant/optionchain/chain"
	"github.com/erikbryant/optionchain/date"
	"github.com/erikbryant/optionchain/expiry"
	"github.com/erikbryant/optionchain/moneycontrol"
	"github.com/erikbryant/optionchain/vwap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "optionchain",
	Short: "Copy NSE option chains into spreadsheet tabs",
	Long: `Polls option chain tables and rewrites one spreadsheet tab per configured symbol and expiry.

  Keep the sheet up to date during market hours
    optionchain run --config config.yml
  Update every tab once, market open or not
    optionchain once --config config.yml
  Print a chain without touching the sheet
    optionchain snapshot --symbol NIFTY --next 1
  List upcoming expiries
    optionchain expiries --symbol BANKNIFTY --count 4
  Print what a tab holds
    optionchain show --tab NIFTY
  Serve chains over HTTP
    optionchain serve --addr :8080
  Tabulate intraday VWAP of the NIFTY 50 stocks
    optionchain vwap --print`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.poller(cmd.Context())
		if err != nil {
			return err
		}
		return p.Run(cmd.Context())
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single cycle, ignoring market hours",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(true)
		if err != nil {
			return err
		}
		defer a.close()

		p, err := a.poller(cmd.Context())
		if err != nil {
			return err
		}

		report, err := p.Cycle(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %d tab(s): %s\n", len(report.Written), strings.Join(report.Written, ", "))
		if len(report.Skipped) > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "Skipped %d tab(s): %s\n", len(report.Skipped), strings.Join(report.Skipped, ", "))
		}
		return nil
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch one expiry and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, _ := cmd.Flags().GetString("symbol")
		next, _ := cmd.Flags().GetInt("next")
		on, _ := cmd.Flags().GetString("date")
		layoutName, _ := cmd.Flags().GetString("layout")

		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		layout, err := chain.LayoutByName(layoutName)
		if err != nil {
			return err
		}

		sel := expiry.NextN(next)
		if on != "" {
			d, err := date.ParseExpiry(on)
			if err != nil {
				return err
			}
			sel = expiry.Fixed(d)
		}
		if err := sel.Validate(); err != nil {
			return err
		}

		src, err := a.source()
		if err != nil {
			return err
		}
		resolver, err := a.resolver()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		var upcoming []date.Expiry
		if !sel.IsFixed() {
			raw, err := src.Expiries(ctx, symbol)
			if err != nil {
				return err
			}
			upcoming, err = resolver.Resolve(raw, a.today(), expiry.Depth([]expiry.Selector{sel}))
			if err != nil {
				return err
			}
		}

		e, err := sel.Pick(upcoming)
		if err != nil {
			return err
		}

		entries, err := src.Entries(ctx, symbol, []date.Expiry{e})
		if err != nil {
			return err
		}
		tables, err := chain.Normalizer{Log: a.log.WithComponent("chain")}.Normalize(strings.ToUpper(symbol), entries, []date.Expiry{e})
		if err != nil {
			return err
		}

		printTable(cmd.OutOrStdout(), tables[0], layout)
		return nil
	},
}

var expiriesCmd = &cobra.Command{
	Use:   "expiries",
	Short: "List upcoming expiries of a symbol",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbol, _ := cmd.Flags().GetString("symbol")
		count, _ := cmd.Flags().GetInt("count")
		inclusive, _ := cmd.Flags().GetBool("inclusive")

		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		src, err := a.source()
		if err != nil {
			return err
		}
		resolver, err := a.resolver()
		if err != nil {
			return err
		}
		if inclusive {
			resolver.Policy = expiry.Inclusive
		}

		raw, err := src.Expiries(cmd.Context(), symbol)
		if err != nil {
			return err
		}
		upcoming, err := resolver.Resolve(raw, a.today(), count)
		if err != nil {
			return err
		}

		for i, e := range upcoming {
			fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  %s\n", i, e, e.ISO())
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a tab as stored in the sink, or list the tabs",
	RunE: func(cmd *cobra.Command, args []string) error {
		tab, _ := cmd.Flags().GetString("tab")

		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		s, err := a.sink(cmd.Context())
		if err != nil {
			return err
		}

		if tab == "" {
			tabs, err := s.Tabs(cmd.Context())
			if err != nil {
				return err
			}
			for _, t := range tabs {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		}

		rows, err := s.ReadTab(cmd.Context(), tab)
		if err != nil {
			return err
		}
		printRows(cmd.OutOrStdout(), rows)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve chains and tables over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = a.cfg.Proxy.Addr
		}

		server, err := a.proxy()
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           server.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errs := make(chan error, 1)
		go func() {
			a.log.WithComponent("proxy").Infof("Listening on %s", addr)
			errs <- srv.ListenAndServe()
		}()

		select {
		case err := <-errs:
			return err
		case <-cmd.Context().Done():
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdown); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	},
}

var vwapCmd = &cobra.Command{
	Use:   "vwap",
	Short: "Write per-minute close, VWAP and their difference for a list of stocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		symbols, _ := cmd.Flags().GetStringSlice("symbols")
		tab, _ := cmd.Flags().GetString("tab")
		toStdout, _ := cmd.Flags().GetBool("print")

		a, err := setup(false)
		if err != nil {
			return err
		}
		defer a.close()

		c := a.cfg.VWAP
		if len(symbols) == 0 {
			symbols = c.Symbols
		}
		if len(symbols) == 0 {
			symbols = moneycontrol.Nifty50
		}
		if tab == "" {
			tab = c.Tab
		}

		mc := moneycontrol.New("", a.log.WithComponent("moneycontrol"))
		if c.PriceURL != "" {
			mc.PriceURL = c.PriceURL
		}
		log := a.log.WithComponent("vwap")
		ctx := cmd.Context()

		to := time.Now()
		from := to.Add(-c.Lookback)

		var series []vwap.Series
		for _, symbol := range symbols {
			candles, err := mc.History(ctx, symbol, from, to)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithError(err).WithField("symbol", symbol).Warn("No price history")
				continue
			}
			series = append(series, vwap.Series{Symbol: strings.ToUpper(symbol), Points: vwap.Compute(candles)})
		}
		if len(series) == 0 {
			return fmt.Errorf("no price history for any of %d symbols", len(symbols))
		}

		header, rows := vwap.Merge(series, a.hours.Location)

		if toStdout {
			printGrid(cmd.OutOrStdout(), header, rows)
			return nil
		}

		s, err := a.sink(ctx)
		if err != nil {
			return err
		}
		if err := s.ReplaceTab(ctx, tab, header, rows); err != nil {
			return err
		}

		log.WithFields(map[string]interface{}{"tab": tab, "symbols": len(series), "rows": len(rows)}).Info("Updated tab")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults plus environment if empty)")

	snapshotCmd.Flags().String("symbol", "NIFTY", "Index or stock symbol")
	snapshotCmd.Flags().Int("next", 0, "Which upcoming expiry, 0 is the nearest")
	snapshotCmd.Flags().String("date", "", "A specific expiry date, e.g. 2025-09-30")
	snapshotCmd.Flags().String("layout", "default", "Column layout: default or detailed")

	expiriesCmd.Flags().String("symbol", "NIFTY", "Index or stock symbol")
	expiriesCmd.Flags().Int("count", 0, "How many to list, 0 for all")
	expiriesCmd.Flags().Bool("inclusive", false, "Count an expiry on today's date as upcoming")

	showCmd.Flags().String("tab", "", "Tab to print; lists tabs if empty")

	serveCmd.Flags().String("addr", "", "Listen address (proxy.addr if empty)")

	vwapCmd.Flags().StringSlice("symbols", nil, "Stocks to include (vwap.symbols, else the NIFTY 50)")
	vwapCmd.Flags().String("tab", "", "Tab to replace (vwap.tab if empty)")
	vwapCmd.Flags().Bool("print", false, "Print instead of writing to the sink")

	rootCmd.AddCommand(runCmd, onceCmd, snapshotCmd, expiriesCmd, showCmd, serveCmd, vwapCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
