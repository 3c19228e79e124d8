package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gregtusar/xchange/pkg/secrets"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.Exchanges.Coinbase.Timeout)
	assert.Equal(t, time.Duration(0), cfg.Exchanges.KrakenFutures.RateLimit)
	assert.True(t, cfg.Exchanges.KrakenFutures.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 10*time.Second, cfg.Poller.Interval)
	assert.Equal(t, "coinbase-api-key", cfg.GCP.SecretNames.CoinbaseAPIKey)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  coinbase:
    api_key: file-key
    api_secret: file-secret
    sandbox: true
    timeout: 5s
    options:
      fetchBalance: v2
  krakenfutures:
    enabled: false
    rate_limit: 1s
logging:
  level: debug
  format: text
poller:
  interval: 2s
  symbols:
    coinbase: ["BTC/USD", "ETH/USD"]
  pairs:
    - spot_exchange: coinbase
      spot_symbol: BTC/USD
      future_exchange: krakenfutures
      future_symbol: BTC/USD:BTC
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	cb := cfg.Exchanges.Coinbase
	assert.Equal(t, "file-key", cb.APIKey)
	assert.Equal(t, "file-secret", cb.Secret)
	assert.True(t, cb.Sandbox)
	assert.Equal(t, 5*time.Second, cb.Timeout)
	assert.Equal(t, "v2", cb.Options["fetchbalance"])

	assert.False(t, cfg.Exchanges.KrakenFutures.Enabled)
	assert.Equal(t, time.Second, cfg.Exchanges.KrakenFutures.RateLimit)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, []string{"BTC/USD", "ETH/USD"}, cfg.Poller.Symbols["coinbase"])
	require.Len(t, cfg.Poller.Pairs, 1)
	assert.Equal(t, "krakenfutures", cfg.Poller.Pairs[0].FutureExchange)
	assert.Equal(t, "BTC/USD:BTC", cfg.Poller.Pairs[0].FutureSymbol)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("COINBASE_API_KEY", "env-key")
	t.Setenv("KRAKENFUTURES_API_SECRET", "env-secret")
	t.Setenv("XCHANGE_SERVER_PORT", "7070")

	cfg, err := Load(writeConfig(t, "exchanges:\n  coinbase:\n    api_key: file-key\n"))
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchanges.Coinbase.APIKey)
	assert.Equal(t, "env-secret", cfg.Exchanges.KrakenFutures.Secret)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"log format", "logging:\n  format: xml\n"},
		{"log level", "logging:\n  level: loud\n"},
		{"timeout", "exchanges:\n  coinbase:\n    timeout: 0s\n"},
		{"port", "server:\n  port: 70000\n"},
		{"poller interval", "poller:\n  interval: 0s\n  symbols:\n    coinbase: [\"BTC/USD\"]\n"},
		{"pair exchange", "poller:\n  pairs:\n    - spot_exchange: binance\n      spot_symbol: BTC/USDT\n      future_exchange: krakenfutures\n      future_symbol: BTC/USD:BTC\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

type fakeStore map[string]string

func (f fakeStore) GetSecretWithDefault(ctx context.Context, name, def string) string {
	if v, ok := f[name]; ok {
		return v
	}
	return def
}

var _ secrets.Getter = fakeStore(nil)

func TestLoadSecretsFillsOnlyEmptyFields(t *testing.T) {
	cfg := &Config{GCP: GCPConfig{SecretNames: secrets.DefaultSecretNames()}}
	cfg.Exchanges.KrakenFutures.APIKey = "configured"

	loadSecrets(context.Background(), cfg, fakeStore{
		"coinbase-api-key":         "cb-key",
		"coinbase-api-secret":      "cb-secret",
		"coinbase-key-name":        "organizations/o/apiKeys/k",
		"krakenfutures-api-key":    "from-store",
		"krakenfutures-api-secret": "kf-secret",
	})

	assert.Equal(t, "cb-key", cfg.Exchanges.Coinbase.APIKey)
	assert.Equal(t, "cb-secret", cfg.Exchanges.Coinbase.Secret)
	assert.Empty(t, cfg.Exchanges.Coinbase.KeyName)
	assert.Equal(t, "configured", cfg.Exchanges.KrakenFutures.APIKey)
	assert.Equal(t, "kf-secret", cfg.Exchanges.KrakenFutures.Secret)
}

func TestLoadSecretsFallsBackToCDPKey(t *testing.T) {
	cfg := &Config{GCP: GCPConfig{SecretNames: secrets.DefaultSecretNames()}}

	loadSecrets(context.Background(), cfg, fakeStore{
		"coinbase-key-name":    "organizations/o/apiKeys/k",
		"coinbase-private-key": "pem",
	})

	assert.Empty(t, cfg.Exchanges.Coinbase.APIKey)
	assert.Equal(t, "organizations/o/apiKeys/k", cfg.Exchanges.Coinbase.KeyName)
	assert.Equal(t, "pem", cfg.Exchanges.Coinbase.PrivateKeyPEM)
}

func TestAdapterConfig(t *testing.T) {
	ex := ExchangeConfig{Sandbox: true, Timeout: time.Second, BaseURL: "http://local"}
	ex.APIKey = "k"
	entry := logrus.NewEntry(logrus.New())

	out := ex.AdapterConfig(entry)
	assert.Equal(t, "k", out.Credentials.APIKey)
	assert.True(t, out.Sandbox)
	assert.Equal(t, time.Second, out.Timeout)
	assert.Equal(t, "http://local", out.BaseURL)
	assert.Same(t, entry, out.Logger)
}

func TestNewLogger(t *testing.T) {
	logger, err := LoggingConfig{Level: "warn", Format: "text"}.NewLogger()
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	path := filepath.Join(t.TempDir(), "out.log")
	logger, err = LoggingConfig{Level: "info", Format: "json", File: path}.NewLogger()
	require.NoError(t, err)
	logger.Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
