package main

import (
	"fmt"
	"time"

	"github.com/gregtusar/xchange/api"
	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/poller"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve every enabled exchange over HTTP and poll configured tickers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			exchanges, err := openEnabled()
			if err != nil {
				return err
			}

			var p *poller.TickerPoller
			if len(cfg.Poller.Symbols) > 0 || len(cfg.Poller.Pairs) > 0 {
				polled := make(map[string]exchange.Exchange)
				for id := range cfg.Poller.Symbols {
					if ex, ok := exchanges[id]; ok {
						polled[id] = ex
					}
				}
				for _, pair := range cfg.Poller.Pairs {
					for _, id := range []string{pair.SpotExchange, pair.FutureExchange} {
						if ex, ok := exchanges[id]; ok {
							polled[id] = ex
						}
					}
				}
				p = poller.New(polled, poller.Config{
					Interval: cfg.Poller.Interval,
					Symbols:  pollSymbols(cfg.Poller.Symbols, cfg.Poller.Pairs),
					Pairs:    cfg.Poller.Pairs,
					Metrics:  collect,
					Logger:   logrus.NewEntry(logger),
				})
				p.Start(ctx)
				defer p.Stop()
			}

			m := collect
			if !cfg.Metrics.Enabled {
				m = nil
			}
			server := api.NewServer(exchanges, p, m, logrus.NewEntry(logger), api.Config{
				Port:           cfg.Server.Port,
				AllowedOrigins: cfg.Server.AllowedOrigins,
				MetricsPath:    cfg.Metrics.Path,
			})

			logger.WithField("exchanges", len(exchanges)).Info("xchange is running. Press Ctrl+C to stop.")
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("api server: %w", err)
			}
			logger.Info("xchange stopped")
			return nil
		},
	}
}

// pollSymbols adds the legs of every basis pair to the configured symbol
// lists. An exchange configured with an empty list keeps polling every
// ticker.
func pollSymbols(symbols map[string][]string, pairs []models.BasisPair) map[string][]string {
	out := make(map[string][]string, len(symbols))
	for id, list := range symbols {
		out[id] = append([]string(nil), list...)
	}
	add := func(id, symbol string) {
		list, configured := out[id]
		if configured && len(list) == 0 {
			return
		}
		for _, s := range list {
			if s == symbol {
				return
			}
		}
		out[id] = append(list, symbol)
	}
	for _, pair := range pairs {
		add(pair.SpotExchange, pair.SpotSymbol)
		add(pair.FutureExchange, pair.FutureSymbol)
	}
	return out
}

func watchCmd() *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch <symbol...>",
		Short: "Stream tickers over the venue's websocket, or poll when it has none",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			ctx := cmd.Context()
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}

			if watcher, ok := ex.(exchange.TickerWatcher); ok {
				err := watcher.WatchTicker(ctx, args, func(t models.Ticker) {
					if err := printJSON(t); err != nil {
						logger.WithError(err).Error("Failed to print ticker")
					}
				})
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

			p := poller.New(map[string]exchange.Exchange{exchangeID: ex}, poller.Config{
				Interval: interval,
				Symbols:  map[string][]string{exchangeID: args},
				Metrics:  collect,
				Logger:   logrus.NewEntry(logger),
			})
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.Poll(ctx)
				for _, symbol := range args {
					if snap, ok := p.Snapshot(exchangeID, symbol); ok {
						if err := printJSON(snap); err != nil {
							return err
						}
					}
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "poll interval when the venue has no websocket feed")
	return cmd
}
