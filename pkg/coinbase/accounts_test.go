package coinbase

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/precise"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const v3AccountsBody = `{"accounts":[
	{"uuid":"btc-uuid","name":"BTC Wallet","currency":"BTC","type":"ACCOUNT_TYPE_CRYPTO","active":true,
	 "available_balance":{"value":"1.5","currency":"BTC"},"hold":{"value":"0.5","currency":"BTC"}},
	{"uuid":"usd-uuid","name":"USD Wallet","currency":"USD","type":"ACCOUNT_TYPE_FIAT","active":true,
	 "available_balance":{"value":"100","currency":"USD"},"hold":{"value":"0","currency":"USD"}},
	{"uuid":"vault","name":"BTC Vault","currency":"BTC","type":"ACCOUNT_TYPE_VAULT","active":true,
	 "available_balance":{"value":"9","currency":"BTC"},"hold":{"value":"0","currency":"BTC"}}
],"has_next":false}`

func TestFetchBalanceV3(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/brokerage/accounts", r.URL.Path)
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, v3AccountsBody)
	})

	balances, err := c.FetchBalance(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "USD"}, balances.Codes())

	btc, ok := balances.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, "1.5", precise.String(btc.Free))
	assert.Equal(t, "0.5", precise.String(btc.Used))
	assert.Equal(t, "2", precise.String(btc.Total))
}

func TestFetchBalanceV2(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/accounts", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"data":[
			{"id":"a","type":"wallet","currency":{"code":"BTC"},"balance":{"amount":"0.25","currency":"BTC"}},
			{"id":"b","type":"wallet","currency":{"code":"BTC"},"balance":{"amount":"0.75","currency":"BTC"}},
			{"id":"c","type":"vault","currency":{"code":"ETH"},"balance":{"amount":"3","currency":"ETH"}}
		]}`)
	})

	balances, err := c.FetchBalance(context.Background(), exchange.Params{"api": "v2"})
	require.NoError(t, err)
	btc, ok := balances.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, "1", precise.String(btc.Total))
	assert.Equal(t, "1", precise.String(btc.Free))
	assert.Equal(t, "0", precise.String(btc.Used))
	_, ok = balances.Get("ETH")
	assert.False(t, ok)
}

func TestFetchAccountsParsesBothShapes(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v3AccountsBody)
	})

	accounts, err := c.FetchAccounts(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	assert.Equal(t, models.Account{ID: "btc-uuid", Type: "wallet", Code: "BTC", Info: accounts[0].Info}, accounts[0])
	assert.Equal(t, "vault", accounts[2].Type)

	v2 := c.parseAccount(map[string]any{"id": "x", "type": "fiat", "currency": map[string]any{"code": "CGLD"}})
	assert.Equal(t, "fiat", v2.Type)
	assert.Equal(t, "CELO", v2.Code)
}

func TestLedgerResolvesAccountByCode(t *testing.T) {
	var accountCalls int32
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/brokerage/accounts":
			atomic.AddInt32(&accountCalls, 1)
			writeJSON(w, http.StatusOK, v3AccountsBody)
		case "/v2/accounts/btc-uuid/transactions":
			writeJSON(w, http.StatusOK, `{"data":[
				{"id":"t1","type":"send","status":"completed","created_at":"2023-01-01T00:00:00Z",
				 "amount":{"amount":"-0.1","currency":"BTC"},
				 "network":{"transaction_fee":{"amount":"0.0001","currency":"BTC"}},
				 "resource_path":"/v2/accounts/btc-uuid/transactions/t1"},
				{"id":"t2","type":"buy","status":"pending","created_at":"2023-01-02T00:00:00Z",
				 "amount":{"amount":"0.2","currency":"BTC"}}
			]}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			writeJSON(w, http.StatusNotFound, `{"errors":[{"id":"not_found","message":"Not found"}]}`)
		}
	})

	entries, err := c.FetchLedger(context.Background(), "BTC", nil, 0, nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	out := entries[0]
	assert.Equal(t, models.LedgerDirectionOut, out.Direction)
	assert.Equal(t, "0.1", precise.String(out.Amount))
	assert.Equal(t, models.LedgerEntryTypeTransaction, out.Type)
	assert.Equal(t, models.TransactionStatusOK, out.Status)
	assert.Equal(t, "btc-uuid", out.Account)
	require.NotNil(t, out.Fee)
	assert.Equal(t, "0.0001", precise.String(out.Fee.Cost))

	in := entries[1]
	assert.Equal(t, models.LedgerDirectionIn, in.Direction)
	assert.Equal(t, models.LedgerEntryTypeTrade, in.Type)
	assert.Nil(t, in.Fee)

	_, err = c.FetchLedger(context.Background(), "BTC", nil, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&accountCalls))
}

func TestAccountResolutionErrors(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, v3AccountsBody)
	})

	_, err := c.FetchDeposits(context.Background(), "", nil, 0, nil)
	assert.ErrorIs(t, err, exchange.ErrArgumentsRequired)

	_, err = c.FetchDeposits(context.Background(), "DOGE", nil, 0, nil)
	require.Error(t, err)
	assert.Equal(t, exchange.KindExchangeError, exchange.KindOf(err))
	assert.Contains(t, err.Error(), "DOGE")
}

func TestWithdraw(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v2/accounts/acc-1/transactions", r.URL.Path)
		writeJSON(w, http.StatusCreated, `{"data":{
			"id":"tx-1","type":"send","status":"pending","resource":"transaction",
			"created_at":"2023-01-01T00:00:00Z",
			"to":{"resource":"bitcoin_address","address":"bc1qexampleaddress000"},
			"network":{"transaction_amount":{"amount":"0.1","currency":"BTC"},"transaction_fee":{"amount":"0.0002","currency":"BTC"}}
		}}`)
	})

	tx, err := c.Withdraw(context.Background(), "BTC", decimal.RequireFromString("0.1"), "bc1qexampleaddress000", "",
		exchange.Params{"account_id": "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, "bc1qexampleaddress000", tx.AddressTo)
	assert.Equal(t, "0.1", precise.String(tx.Amount))
	assert.Equal(t, "BTC", tx.Currency)
	assert.Equal(t, models.TransactionStatusPending, tx.Status)
	assert.Equal(t, "0.0002", precise.String(tx.Fee.Cost))

	_, err = c.Withdraw(context.Background(), "BTC", decimal.RequireFromString("0.1"), "short", "", nil)
	assert.ErrorIs(t, err, exchange.ErrInvalidAddress)
}

func TestParseTransactionStatus(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, nil)

	tests := []struct {
		tx   map[string]any
		want models.TransactionStatus
	}{
		{map[string]any{"status": "created"}, models.TransactionStatusPending},
		{map[string]any{"status": "completed"}, models.TransactionStatusOK},
		{map[string]any{"status": "canceled"}, models.TransactionStatusCanceled},
		{map[string]any{"status": "waiting_for_clearing"}, models.TransactionStatus("waiting_for_clearing")},
		{map[string]any{"committed": true}, models.TransactionStatusOK},
		{map[string]any{}, models.TransactionStatusPending},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.parseTransaction(tt.tx).Status, "%v", tt.tx)
	}
}

func TestFetchDepositAddressesByNetwork(t *testing.T) {
	c := newTestCoinbase(t, testCredentials, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/accounts/acc-9/addresses", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"data":[
			{"id":"1","address":"rEXAMPLE","network":"ripple","address_label":"XRP address","address_info":{"address":"rEXAMPLE","destination_tag":"12345"}},
			{"id":"2","address":"","network":"ethereum"}
		]}`)
	})

	addresses, err := c.FetchDepositAddressesByNetwork(context.Background(), "XRP", exchange.Params{"accountId": "acc-9"})
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, models.DepositAddress{
		Currency: "XRP",
		Network:  "ripple",
		Address:  "rEXAMPLE",
		Tag:      "12345",
		Info:     addresses["ripple"].Info,
	}, addresses["ripple"])
}
