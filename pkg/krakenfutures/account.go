package krakenfutures

import (
	"context"
	"net/http"
	"strings"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

// accountAliases maps unified and vendor account names onto the keys of
// the accounts response.
var accountAliases = map[string]string{
	"main":                         "cash",
	"funding":                      "cash",
	"future":                       "cash",
	"futures":                      "cash",
	"cashAccount":                  "cash",
	"multiCollateralMarginAccount": "flex",
	"multiCollateral":              "flex",
	"multiCollateralMargin":        "flex",
}

// parseAccount resolves an account name. A market symbol names that
// market's margin account: fi_ for inverse contracts, fv_ otherwise.
func (k *KrakenFutures) parseAccount(account string) string {
	if alias, ok := accountAliases[account]; ok {
		return alias
	}
	market, err := k.Markets.Market(account)
	if err != nil {
		return account
	}
	parts := strings.Split(market.ID, "_")
	if len(parts) < 2 {
		return account
	}
	if isTrue(market.Inverse) {
		return "fi_" + strings.ToLower(parts[1])
	}
	return "fv_" + strings.ToLower(parts[1])
}

// FetchBalance reads one account: params["type"] (or "account") picks
// cash, flex or a margin account, which needs params["symbol"].
func (k *KrakenFutures) FetchBalance(ctx context.Context, params exchange.Params) (*models.Balances, error) {
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	params = params.Clone()
	typ := params.PopString("type", "account")
	symbol := params.PopString("symbol")
	if typ == "marginAccount" || typ == "margin" {
		if symbol == "" {
			return nil, exchange.NewError(exchange.KindArgumentsRequired, ID, "fetchBalance() requires a symbol param for margin accounts")
		}
		typ = symbol
	}
	if typ == "" {
		typ = "cash"
		if symbol != "" {
			typ = symbol
		}
	}
	name := k.parseAccount(typ)

	response, err := k.request(ctx, private(http.MethodGet, "accounts", "accounts"), params)
	if err != nil {
		return nil, err
	}
	account := exchange.SafeMap(exchange.SafeMap(response, "accounts"), name)
	if account == nil {
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "fetchBalance() has no account for %s", typ)
	}
	balances := k.parseBalance(account, response)
	balances.Timestamp = exchange.SafeTime(response, "serverTime")
	return balances, nil
}

type balanceParser func(account map[string]any, value any) models.BalanceEntry

// balanceParsers is keyed by the account's type. Margin accounts report
// one figure for the whole account in auxiliary.
var balanceParsers = map[string]balanceParser{
	"multiCollateralMarginAccount": func(account map[string]any, value any) models.BalanceEntry {
		entry, _ := value.(map[string]any)
		return models.BalanceEntry{
			Total: exchange.SafeDecimal(entry, "quantity"),
			Free:  exchange.SafeDecimal(entry, "available"),
		}
	},
	"cashAccount": func(account map[string]any, value any) models.BalanceEntry {
		return models.BalanceEntry{
			Used:  precise.Zero,
			Total: exchange.DecimalAt([]any{value}, 0),
		}
	},
	"marginAccount": func(account map[string]any, value any) models.BalanceEntry {
		auxiliary := exchange.SafeMap(account, "auxiliary")
		return models.BalanceEntry{
			Free:  exchange.SafeDecimal(auxiliary, "af"),
			Total: exchange.SafeDecimal(auxiliary, "pv"),
		}
	},
}

func (k *KrakenFutures) parseBalance(account map[string]any, info any) *models.Balances {
	parse, ok := balanceParsers[exchange.SafeString(account, "accountType", "type")]
	if !ok {
		parse = balanceParsers["marginAccount"]
	}
	balances := models.NewBalances(info)
	entries := exchange.SafeMap(account, "balances", "currencies")
	for currencyID, value := range entries {
		code := k.Desc.SafeCurrencyCode(currencyID)
		// Contract positions such as PI_XRPUSD share the map.
		if strings.Contains(code, "_") {
			continue
		}
		balances.Add(code, parse(account, value))
	}
	return balances
}

// Transfer moves funds between futures accounts. Moving to "spot"
// withdraws from the cash account to the Kraken spot wallet.
func (k *KrakenFutures) Transfer(ctx context.Context, code string, amount decimal.Decimal, fromAccount, toAccount string, params exchange.Params) (*models.Transfer, error) {
	if fromAccount == "spot" {
		return nil, exchange.NewError(exchange.KindBadRequest, ID, "transfer() does not support transfers from spot")
	}
	if _, err := k.LoadMarkets(ctx, false); err != nil {
		return nil, err
	}
	currencyID := strings.ToLower(k.Desc.CurrencyID(code))
	request := params.Extend(map[string]any{"amount": amount.String()})
	ep := private(http.MethodPost, "transfer", "")
	if toAccount == "spot" {
		if k.parseAccount(fromAccount) != "cash" {
			return nil, exchange.NewError(exchange.KindBadRequest, ID, "transfer() cannot transfer from %s to %s", fromAccount, toAccount)
		}
		ep = private(http.MethodPost, "withdrawal", "")
		request["currency"] = currencyID
	} else {
		request["fromAccount"] = k.parseAccount(fromAccount)
		request["toAccount"] = k.parseAccount(toAccount)
		request["unit"] = currencyID
	}

	response, err := k.request(ctx, ep, request)
	if err != nil {
		return nil, err
	}
	k.Logger.WithField("currency", code).WithField("to", toAccount).Info("Transfer submitted")
	return &models.Transfer{
		Timestamp:   exchange.SafeTime(response, "serverTime"),
		Currency:    code,
		Amount:      decimal.NewNullDecimal(amount),
		FromAccount: fromAccount,
		ToAccount:   toAccount,
		Status:      exchange.SafeString(response, "result"),
		Info:        response,
	}, nil
}
