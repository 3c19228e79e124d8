package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gregtusar/xchange/internal/config"
	"github.com/gregtusar/xchange/pkg/coinbase"
	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/krakenfutures"
	"github.com/gregtusar/xchange/pkg/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	exchangeID string

	cfg     *config.Config
	logger  *logrus.Logger
	collect *metrics.Metrics
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "xchange",
		Short:         "Unified access to cryptocurrency exchange APIs",
		Long:          `Query markets, balances and orders on Coinbase and Kraken Futures through one normalized interface, or serve them over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&exchangeID, "exchange", "e", "coinbase", "exchange id")

	rootCmd.AddCommand(
		marketsCmd(),
		currenciesCmd(),
		tickerCmd(),
		orderBookCmd(),
		tradesCmd(),
		ohlcvCmd(),
		balanceCmd(),
		orderCmd(),
		positionsCmd(),
		serveCmd(),
		watchCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err = cfg.Logging.NewLogger()
	if err != nil {
		return err
	}
	// Command output goes to stdout; keep logs apart unless a file is set.
	if cfg.Logging.File == "" {
		logger.SetOutput(os.Stderr)
	}
	collect = metrics.New(cfg.Metrics.Namespace)
	if err := collect.Register(nil); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	return nil
}

func newRegistry() *exchange.Registry {
	r := exchange.NewRegistry()
	r.Register("coinbase", coinbase.NewExchange)
	r.Register("krakenfutures", krakenfutures.NewExchange)
	return r
}

func openExchange(id string) (exchange.Exchange, error) {
	settings, ok := cfg.ExchangeConfigs()[id]
	if !ok {
		return nil, fmt.Errorf("unknown exchange %q (known: %s)", id, strings.Join(newRegistry().IDs(), ", "))
	}
	adapterCfg := settings.AdapterConfig(logger.WithField("exchange", id))
	adapterCfg.Metrics = collect
	return newRegistry().New(id, adapterCfg)
}

// openEnabled builds every exchange enabled in the config.
func openEnabled() (map[string]exchange.Exchange, error) {
	out := make(map[string]exchange.Exchange)
	for id, settings := range cfg.ExchangeConfigs() {
		if !settings.Enabled {
			continue
		}
		ex, err := openExchange(id)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", id, err)
		}
		out[id] = ex
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseSince(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --since %q: want RFC 3339 or epoch milliseconds", raw)
	}
	t = t.UTC()
	return &t, nil
}

// parseParams turns repeated key=value flags into venue params. "true"
// and "false" become booleans.
func parseParams(pairs []string) (exchange.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	params := make(exchange.Params, len(pairs))
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", kv)
		}
		if b, err := strconv.ParseBool(value); err == nil && (value == "true" || value == "false") {
			params[key] = b
			continue
		}
		params[key] = value
	}
	return params, nil
}
