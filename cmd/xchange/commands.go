package main

import (
	"fmt"
	"sort"

	"github.com/gregtusar/xchange/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func marketsCmd() *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "markets",
		Short: "List the exchange's markets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			markets, err := ex.LoadMarkets(cmd.Context(), reload)
			if err != nil {
				return err
			}
			out := make([]*models.Market, 0, len(markets))
			for _, m := range markets {
				out = append(out, m)
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
			return printJSON(out)
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "bypass the market cache")
	return cmd
}

func currenciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "currencies",
		Short: "List the exchange's currencies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			currencies, err := ex.FetchCurrencies(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return printJSON(currencies)
		},
	}
}

func tickerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ticker [symbol...]",
		Short: "Fetch one ticker, several, or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				ticker, err := ex.FetchTicker(cmd.Context(), args[0], nil)
				if err != nil {
					return err
				}
				return printJSON(ticker)
			}
			tickers, err := ex.FetchTickers(cmd.Context(), args, nil)
			if err != nil {
				return err
			}
			return printJSON(tickers)
		},
	}
}

func orderBookCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "orderbook <symbol>",
		Short: "Fetch an order book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			book, err := ex.FetchOrderBook(cmd.Context(), args[0], limit, nil)
			if err != nil {
				return err
			}
			return printJSON(book)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "levels per side")
	return cmd
}

func tradesCmd() *cobra.Command {
	var (
		since string
		limit int
		mine  bool
	)
	cmd := &cobra.Command{
		Use:   "trades <symbol>",
		Short: "Fetch public trades, or your own with --mine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseSince(since)
			if err != nil {
				return err
			}
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			var trades []models.Trade
			if mine {
				trades, err = ex.FetchMyTrades(cmd.Context(), args[0], from, limit, nil)
			} else {
				trades, err = ex.FetchTrades(cmd.Context(), args[0], from, limit, nil)
			}
			if err != nil {
				return err
			}
			return printJSON(trades)
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "start time, RFC 3339 or epoch milliseconds")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of trades")
	cmd.Flags().BoolVar(&mine, "mine", false, "fetch your own fills")
	return cmd
}

func ohlcvCmd() *cobra.Command {
	var (
		timeframe string
		since     string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "ohlcv <symbol>",
		Short: "Fetch candles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseSince(since)
			if err != nil {
				return err
			}
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			candles, err := ex.FetchOHLCV(cmd.Context(), args[0], timeframe, from, limit, nil)
			if err != nil {
				return err
			}
			return printJSON(candles)
		},
	}
	cmd.Flags().StringVar(&timeframe, "timeframe", "1m", "candle width")
	cmd.Flags().StringVar(&since, "since", "", "start time, RFC 3339 or epoch milliseconds")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of candles")
	return cmd
}

func balanceCmd() *cobra.Command {
	var params []string
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Fetch account balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			balances, err := ex.FetchBalance(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(balances)
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "venue parameter as key=value (repeatable)")
	return cmd
}

func orderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Create, cancel and inspect orders",
	}
	cmd.AddCommand(orderCreateCmd(), orderCancelCmd(), orderGetCmd(), orderOpenCmd())
	return cmd
}

func orderCreateCmd() *cobra.Command {
	var (
		price  string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "create <symbol> <buy|sell> <market|limit> <amount>",
		Short: "Place an order",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			side := models.OrderSide(args[1])
			if side != models.OrderSideBuy && side != models.OrderSideSell {
				return fmt.Errorf("invalid side %q", args[1])
			}
			typ := models.OrderType(args[2])
			amount, err := decimal.NewFromString(args[3])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[3], err)
			}
			var px decimal.NullDecimal
			if price != "" {
				d, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("invalid --price %q: %w", price, err)
				}
				px = decimal.NewNullDecimal(d)
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			order, err := ex.CreateOrder(cmd.Context(), args[0], typ, side, amount, px, p)
			if err != nil {
				return err
			}
			return printJSON(order)
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "limit price")
	cmd.Flags().StringArrayVar(&params, "param", nil, "venue parameter as key=value (repeatable)")
	return cmd
}

func orderCancelCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			order, err := ex.CancelOrder(cmd.Context(), args[0], symbol, nil)
			if err != nil {
				return err
			}
			return printJSON(order)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "market symbol")
	return cmd
}

func orderGetCmd() *cobra.Command {
	var symbol string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			order, err := ex.FetchOrder(cmd.Context(), args[0], symbol, nil)
			if err != nil {
				return err
			}
			return printJSON(order)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "market symbol")
	return cmd
}

func orderOpenCmd() *cobra.Command {
	var (
		symbol string
		since  string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "open",
		Short: "List open orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseSince(since)
			if err != nil {
				return err
			}
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			orders, err := ex.FetchOpenOrders(cmd.Context(), symbol, from, limit, nil)
			if err != nil {
				return err
			}
			return printJSON(orders)
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "", "market symbol")
	cmd.Flags().StringVar(&since, "since", "", "start time, RFC 3339 or epoch milliseconds")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of orders")
	return cmd
}

func positionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "positions [symbol...]",
		Short: "List open derivative positions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ex, err := openExchange(exchangeID)
			if err != nil {
				return err
			}
			positions, err := ex.FetchPositions(cmd.Context(), args, nil)
			if err != nil {
				return err
			}
			return printJSON(positions)
		},
	}
}
