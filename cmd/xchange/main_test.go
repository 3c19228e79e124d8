package main

import (
	"testing"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSince(t *testing.T) {
	none, err := parseSince("")
	require.NoError(t, err)
	assert.Nil(t, none)

	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ms, err := parseSince("1714564800000")
	require.NoError(t, err)
	assert.Equal(t, want, *ms)

	iso, err := parseSince("2024-05-01T14:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, want, *iso)

	_, err = parseSince("last week")
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"postOnly=true", "clientOrderId=abc", "reduceOnly=false", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, exchange.Params{
		"postOnly":      true,
		"clientOrderId": "abc",
		"reduceOnly":    false,
		"note":          "a=b",
	}, params)

	empty, err := parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
}

func TestPollSymbolsAddsPairLegs(t *testing.T) {
	configured := map[string][]string{
		"coinbase":      {"BTC/USD"},
		"krakenfutures": {},
	}
	pairs := []models.BasisPair{
		{SpotExchange: "coinbase", SpotSymbol: "BTC/USD", FutureExchange: "krakenfutures", FutureSymbol: "BTC/USD:BTC"},
		{SpotExchange: "coinbase", SpotSymbol: "ETH/USD", FutureExchange: "coinbase", FutureSymbol: "ETH/USD:USD-250627"},
	}

	out := pollSymbols(configured, pairs)
	assert.Equal(t, []string{"BTC/USD", "ETH/USD", "ETH/USD:USD-250627"}, out["coinbase"])
	// An empty list already means every ticker.
	assert.Empty(t, out["krakenfutures"])
	assert.Equal(t, []string{"BTC/USD"}, configured["coinbase"])
}

func TestRegistryKnowsBothAdapters(t *testing.T) {
	assert.Equal(t, []string{"coinbase", "krakenfutures"}, newRegistry().IDs())
}
