package coinbase

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
)

const accountsTTL = 10 * time.Minute

func (c *Coinbase) FetchAccounts(ctx context.Context, params exchange.Params) ([]models.Account, error) {
	params = params.Clone()
	version := apiFor(params, c.options.FetchAccounts)
	request := params.Extend(map[string]any{"limit": 100})

	var raw []map[string]any
	if version == V3 {
		response, err := c.request(ctx, v3Private(http.MethodGet, "brokerage/accounts", "accounts"), request)
		if err != nil {
			return nil, err
		}
		raw = exchange.SafeMapList(response, "accounts")
	} else {
		response, err := c.request(ctx, v2Private(http.MethodGet, "accounts"), request)
		if err != nil {
			return nil, err
		}
		raw = exchange.SafeMapList(response, "data")
	}
	accounts := make([]models.Account, 0, len(raw))
	for _, r := range raw {
		accounts = append(accounts, c.parseAccount(r))
	}
	return accounts, nil
}

// parseAccount reads both shapes: v3 accounts carry "active" and a name
// like "BTC Wallet", v2 accounts carry a type and a currency object.
func (c *Coinbase) parseAccount(account map[string]any) models.Account {
	currencyID := exchange.SafeString(exchange.SafeMap(account, "currency"), "code")
	if currencyID == "" {
		currencyID = exchange.SafeString(account, "currency")
	}
	typ := exchange.SafeString(account, "type")
	if exchange.Has(account, "active") {
		typ = ""
		if parts := strings.Fields(exchange.SafeString(account, "name")); len(parts) > 1 {
			typ = strings.ToLower(parts[1])
		}
	}
	return models.Account{
		ID:   exchange.SafeString(account, "id", "uuid"),
		Type: typ,
		Code: c.Desc.SafeCurrencyCode(currencyID),
		Info: account,
	}
}

func (c *Coinbase) loadAccounts(ctx context.Context) ([]models.Account, error) {
	return c.accounts.Get(ctx, func(ctx context.Context) ([]models.Account, error) {
		return c.FetchAccounts(ctx, nil)
	})
}

// accountID resolves the account a v2 wallet call targets: an explicit
// account_id param, else the first account holding code.
func (c *Coinbase) accountID(ctx context.Context, op exchange.Operation, code string, params exchange.Params) (string, error) {
	if id := params.PopString("account_id", "accountId"); id != "" {
		return id, nil
	}
	if code == "" {
		return "", exchange.NewError(exchange.KindArgumentsRequired, ID, "%s() requires an account_id (or accountId) parameter OR a currency code argument", op)
	}
	accounts, err := c.loadAccounts(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range accounts {
		if a.Code == code {
			return a.ID, nil
		}
	}
	return "", exchange.NewError(exchange.KindExchangeError, ID, "%s() could not find account id for %s", op, code)
}

func (c *Coinbase) FetchBalance(ctx context.Context, params exchange.Params) (*models.Balances, error) {
	params = params.Clone()
	version := apiFor(params, c.options.FetchBalance)
	if v3, ok := params.PopBool("v3"); ok && v3 {
		version = V3
	}
	var filter []string
	if typ := params.PopString("type"); typ != "" {
		filter = []string{typ}
	}

	if version == V3 {
		response, err := c.request(ctx, v3Private(http.MethodGet, "brokerage/accounts", "accounts"), params.Extend(map[string]any{"limit": 250}))
		if err != nil {
			return nil, err
		}
		if filter == nil {
			filter = c.options.V3Accounts
		}
		return c.parseBalance(response, exchange.SafeMapList(response, "accounts"), filter), nil
	}
	response, err := c.request(ctx, v2Private(http.MethodGet, "accounts"), params.Extend(map[string]any{"limit": 100}))
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = c.options.Accounts
	}
	return c.parseBalance(response, exchange.SafeMapList(response, "data"), filter), nil
}

// parseBalance sums accounts per currency. v2 wallets report one amount
// that is both free and total; v3 accounts split available and hold.
func (c *Coinbase) parseBalance(info any, accounts []map[string]any, types []string) *models.Balances {
	result := models.NewBalances(info)
	for _, account := range accounts {
		if !slices.Contains(types, exchange.SafeString(account, "type")) {
			continue
		}
		if value := exchange.SafeMap(account, "balance"); value != nil {
			total := exchange.SafeDecimal(value, "amount")
			result.Add(c.Desc.SafeCurrencyCode(exchange.SafeString(value, "currency")), models.BalanceEntry{
				Free:  total,
				Total: total,
			})
			continue
		}
		available := exchange.SafeMap(account, "available_balance")
		hold := exchange.SafeMap(account, "hold")
		if available == nil || hold == nil {
			continue
		}
		free := exchange.SafeDecimal(available, "value")
		used := exchange.SafeDecimal(hold, "value")
		result.Add(c.Desc.SafeCurrencyCode(exchange.SafeString(available, "currency")), models.BalanceEntry{
			Free:  free,
			Used:  used,
			Total: precise.Add(free, used),
		})
	}
	return result
}

func (c *Coinbase) FetchDeposits(ctx context.Context, code string, since *time.Time, limit int, params exchange.Params) ([]models.Transaction, error) {
	return c.fetchTransactions(ctx, exchange.OpFetchDeposits, "accounts/{account_id}/deposits", code, since, limit, params)
}

func (c *Coinbase) FetchWithdrawals(ctx context.Context, code string, since *time.Time, limit int, params exchange.Params) ([]models.Transaction, error) {
	return c.fetchTransactions(ctx, exchange.OpFetchWithdrawals, "accounts/{account_id}/withdrawals", code, since, limit, params)
}

func (c *Coinbase) fetchTransactions(ctx context.Context, op exchange.Operation, path, code string, since *time.Time, limit int, params exchange.Params) ([]models.Transaction, error) {
	params = params.Clone()
	accountID, err := c.accountID(ctx, op, code, params)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"account_id": accountID})
	if limit > 0 {
		request["limit"] = limit
	}
	response, err := c.request(ctx, v2Private(http.MethodGet, path), request)
	if err != nil {
		return nil, err
	}
	raw := exchange.SafeMapList(response, "data")
	out := make([]models.Transaction, 0, len(raw))
	for _, r := range raw {
		out = append(out, c.parseTransaction(r))
	}
	return exchange.FilterBySince(out, func(t models.Transaction) *time.Time { return t.Timestamp }, since, limit), nil
}

// FetchDeposit reads one deposit by id.
func (c *Coinbase) FetchDeposit(ctx context.Context, id, code string, params exchange.Params) (*models.Transaction, error) {
	params = params.Clone()
	accountID, err := c.accountID(ctx, "fetchDeposit", code, params)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"account_id": accountID, "deposit_id": id})
	response, err := c.request(ctx, v2Private(http.MethodGet, "accounts/{account_id}/deposits/{deposit_id}"), request)
	if err != nil {
		return nil, err
	}
	tx := c.parseTransaction(exchange.SafeMap(response, "data"))
	return &tx, nil
}

// Deposit pulls amount from a linked payment method into the account
// holding code.
func (c *Coinbase) Deposit(ctx context.Context, code string, amount decimal.Decimal, paymentMethod string, params exchange.Params) (*models.Transaction, error) {
	params = params.Clone()
	accountID, err := c.accountID(ctx, "deposit", code, params)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{
		"account_id":     accountID,
		"amount":         amount.String(),
		"currency":       strings.ToUpper(code),
		"payment_method": paymentMethod,
	})
	response, err := c.request(ctx, v2Private(http.MethodPost, "accounts/{account_id}/deposits"), request)
	if err != nil {
		return nil, err
	}
	tx := c.parseTransaction(exchange.SafeMap(response, "data"))
	return &tx, nil
}

func (c *Coinbase) Withdraw(ctx context.Context, code string, amount decimal.Decimal, address, tag string, params exchange.Params) (*models.Transaction, error) {
	params = params.Clone()
	if tag == "" {
		tag = params.PopString("tag")
	}
	if len(address) < 10 {
		return nil, exchange.NewError(exchange.KindInvalidAddress, ID, "address is invalid or has less than 10 characters: %q", address)
	}
	accountID, err := c.accountID(ctx, exchange.OpWithdraw, code, params)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{
		"account_id": accountID,
		"type":       "send",
		"to":         address,
		"amount":     amount.String(),
		"currency":   c.Desc.CurrencyID(code),
	})
	if tag != "" {
		request["destination_tag"] = tag
	}
	response, err := c.request(ctx, v2Private(http.MethodPost, "accounts/{account_id}/transactions"), request)
	if err != nil {
		return nil, err
	}
	tx := c.parseTransaction(exchange.SafeMap(response, "data"))
	return &tx, nil
}

var transactionStatuses = map[string]models.TransactionStatus{
	"created":   models.TransactionStatusPending,
	"completed": models.TransactionStatusOK,
	"canceled":  models.TransactionStatusCanceled,
}

func (c *Coinbase) parseTransaction(tx map[string]any) models.Transaction {
	var amountObject, feeObject map[string]any
	if exchange.SafeString(tx, "type") == "send" {
		network := exchange.SafeMap(tx, "network")
		amountObject = exchange.SafeMap(network, "transaction_amount")
		feeObject = exchange.SafeMap(network, "transaction_fee")
	} else {
		amountObject = exchange.SafeMap(tx, "subtotal")
		feeObject = exchange.SafeMap(tx, "fee")
	}

	var status models.TransactionStatus
	if raw := exchange.SafeString(tx, "status"); raw != "" {
		status = models.TransactionStatus(raw)
		if s, ok := transactionStatuses[raw]; ok {
			status = s
		}
	} else if committed := exchange.SafeBool(tx, "committed"); committed != nil && *committed {
		status = models.TransactionStatusOK
	} else {
		status = models.TransactionStatusPending
	}

	id := exchange.SafeString(tx, "id")
	address := exchange.SafeString(exchange.SafeMap(tx, "to"), "address")
	return models.Transaction{
		ID:        id,
		TxID:      id,
		Timestamp: exchange.SafeTime(tx, "created_at"),
		Updated:   exchange.SafeTime(tx, "updated_at"),
		Address:   address,
		AddressTo: address,
		Type:      models.TransactionType(exchange.SafeString(tx, "resource")),
		Amount:    exchange.SafeDecimal(amountObject, "amount"),
		Currency:  c.Desc.SafeCurrencyCode(exchange.SafeString(amountObject, "currency")),
		Status:    status,
		Fee: &models.Fee{
			Cost:     exchange.SafeDecimal(feeObject, "amount"),
			Currency: c.Desc.SafeCurrencyCode(exchange.SafeString(feeObject, "currency")),
		},
		Info: tx,
	}
}

func (c *Coinbase) FetchLedger(ctx context.Context, code string, since *time.Time, limit int, params exchange.Params) ([]models.LedgerEntry, error) {
	params = params.Clone()
	accountID, err := c.accountID(ctx, exchange.OpFetchLedger, code, params)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"account_id": accountID})
	if limit > 0 {
		request["limit"] = limit
	}
	response, err := c.request(ctx, v2Private(http.MethodGet, "accounts/{account_id}/transactions"), request)
	if err != nil {
		return nil, err
	}
	raw := exchange.SafeMapList(response, "data")
	out := make([]models.LedgerEntry, 0, len(raw))
	for _, r := range raw {
		out = append(out, c.parseLedgerEntry(r, code))
	}
	return exchange.FilterBySince(out, func(e models.LedgerEntry) *time.Time { return e.Timestamp }, since, limit), nil
}

var ledgerEntryTypes = map[string]models.LedgerEntryType{
	"buy":                 models.LedgerEntryTypeTrade,
	"sell":                models.LedgerEntryTypeTrade,
	"fiat_deposit":        models.LedgerEntryTypeTransaction,
	"fiat_withdrawal":     models.LedgerEntryTypeTransaction,
	"exchange_deposit":    models.LedgerEntryTypeTransaction,
	"exchange_withdrawal": models.LedgerEntryTypeTransaction,
	"send":                models.LedgerEntryTypeTransaction,
	"pro_deposit":         models.LedgerEntryTypeTransaction,
	"pro_withdrawal":      models.LedgerEntryTypeTransaction,
}

// parseLedgerEntry keeps the amount non-negative and moves the sign into
// the direction.
func (c *Coinbase) parseLedgerEntry(item map[string]any, code string) models.LedgerEntry {
	amountInfo := exchange.SafeMap(item, "amount")
	amount := exchange.SafeDecimal(amountInfo, "amount")
	direction := models.LedgerDirectionIn
	if precise.Lt(amount, precise.Zero) {
		direction = models.LedgerDirectionOut
		amount = precise.Neg(amount)
	}

	currency := c.Desc.SafeCurrencyCode(exchange.SafeString(amountInfo, "currency"))
	if currency == "" {
		currency = code
	}

	var fee *models.Fee
	if feeInfo := exchange.SafeMap(exchange.SafeMap(item, "network"), "transaction_fee"); feeInfo != nil {
		feeCurrency := c.Desc.SafeCurrencyCode(exchange.SafeString(feeInfo, "currency"))
		if feeCurrency == "" {
			feeCurrency = code
		}
		fee = &models.Fee{Cost: exchange.SafeDecimal(feeInfo, "amount"), Currency: feeCurrency}
	}

	rawType := exchange.SafeString(item, "type")
	typ := models.LedgerEntryType(rawType)
	if t, ok := ledgerEntryTypes[rawType]; ok {
		typ = t
	}
	status := models.TransactionStatus(exchange.SafeString(item, "status"))
	if status == "completed" {
		status = models.TransactionStatusOK
	}

	var account string
	if parts := strings.Split(exchange.SafeString(item, "resource_path"), "/"); len(parts) > 3 {
		account = parts[3]
	}

	return models.LedgerEntry{
		ID:        exchange.SafeString(item, "id"),
		Timestamp: exchange.SafeTime(item, "created_at"),
		Direction: direction,
		Account:   account,
		Type:      typ,
		Currency:  currency,
		Amount:    amount,
		Status:    status,
		Fee:       fee,
		Info:      item,
	}
}

// FetchDepositAddressesByNetwork lists the receive addresses of the
// account holding code, keyed by network.
func (c *Coinbase) FetchDepositAddressesByNetwork(ctx context.Context, code string, params exchange.Params) (map[string]models.DepositAddress, error) {
	params = params.Clone()
	accountID, err := c.accountID(ctx, "fetchDepositAddressesByNetwork", code, params)
	if err != nil {
		return nil, err
	}
	request := params.Extend(map[string]any{"account_id": accountID})
	response, err := c.request(ctx, v2Private(http.MethodGet, "accounts/{account_id}/addresses"), request)
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.DepositAddress)
	for _, raw := range exchange.SafeMapList(response, "data") {
		address := exchange.SafeString(raw, "address")
		if address == "" {
			continue
		}
		currency := c.Desc.SafeCurrencyCode(splitFirstWord(exchange.SafeString(raw, "address_label")))
		if currency == "" {
			currency = code
		}
		network := exchange.SafeString(raw, "network")
		result[network] = models.DepositAddress{
			Currency: currency,
			Network:  network,
			Address:  address,
			Tag:      exchange.SafeString(exchange.SafeMap(raw, "address_info"), "destination_tag"),
			Info:     raw,
		}
	}
	return result, nil
}
