package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/gregtusar/xchange/pkg/exchange"
	"github.com/gregtusar/xchange/pkg/models"
	"github.com/gregtusar/xchange/pkg/secrets"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Exchanges ExchangesConfig `mapstructure:"exchanges"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	GCP       GCPConfig       `mapstructure:"gcp"`
	Poller    PollerConfig    `mapstructure:"poller"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ExchangesConfig struct {
	Coinbase      ExchangeConfig `mapstructure:"coinbase"`
	KrakenFutures ExchangeConfig `mapstructure:"krakenfutures"`
}

// ExchangeConfig is one adapter's settings. A zero RateLimit keeps the
// venue's own pacing.
type ExchangeConfig struct {
	exchange.Credentials `mapstructure:",squash"`

	Enabled   bool           `mapstructure:"enabled"`
	Sandbox   bool           `mapstructure:"sandbox"`
	BaseURL   string         `mapstructure:"base_url"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	RateLimit time.Duration  `mapstructure:"rate_limit"`
	Options   map[string]any `mapstructure:"options"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
	Path      string `mapstructure:"path"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

// PollerConfig lists the symbols to poll per exchange id, and the
// spot/derivative pairs whose basis the poller tracks.
type PollerConfig struct {
	Interval time.Duration       `mapstructure:"interval"`
	Symbols  map[string][]string `mapstructure:"symbols"`
	Pairs    []models.BasisPair  `mapstructure:"pairs"`
}

func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/xchange")
	}

	v.SetEnvPrefix("XCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.NewEntry(logrus.StandardLogger())
		manager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, config.GCP.CredentialsFile, logger)
		if err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
		defer manager.Close()
		loadSecrets(ctx, &config, manager)
		logger.Info("Loaded exchange credentials from GCP Secret Manager")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	for _, id := range []string{"coinbase", "krakenfutures"} {
		v.SetDefault("exchanges."+id+".enabled", true)
		v.SetDefault("exchanges."+id+".sandbox", false)
		v.SetDefault("exchanges."+id+".timeout", "30s")
		v.SetDefault("exchanges."+id+".rate_limit", "0s")
	}

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "xchange")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.coinbase_api_key", secretNames.CoinbaseAPIKey)
	v.SetDefault("gcp.secret_names.coinbase_api_secret", secretNames.CoinbaseAPISecret)
	v.SetDefault("gcp.secret_names.coinbase_key_name", secretNames.CoinbaseKeyName)
	v.SetDefault("gcp.secret_names.coinbase_private_key", secretNames.CoinbasePrivateKey)
	v.SetDefault("gcp.secret_names.krakenfutures_api_key", secretNames.KrakenFuturesAPIKey)
	v.SetDefault("gcp.secret_names.krakenfutures_api_secret", secretNames.KrakenFuturesAPISecret)

	v.SetDefault("poller.interval", "10s")
}

func overrideFromEnv(config *Config) {
	set := func(name string, into *string) {
		if value := os.Getenv(name); value != "" {
			*into = value
		}
	}
	coinbase := &config.Exchanges.Coinbase.Credentials
	set("COINBASE_API_KEY", &coinbase.APIKey)
	set("COINBASE_API_SECRET", &coinbase.Secret)
	set("COINBASE_KEY_NAME", &coinbase.KeyName)
	set("COINBASE_PRIVATE_KEY", &coinbase.PrivateKeyPEM)
	set("COINBASE_TOKEN", &coinbase.Token)

	kraken := &config.Exchanges.KrakenFutures.Credentials
	set("KRAKENFUTURES_API_KEY", &kraken.APIKey)
	set("KRAKENFUTURES_API_SECRET", &kraken.Secret)

	set("GCP_PROJECT_ID", &config.GCP.ProjectID)
	set("GOOGLE_APPLICATION_CREDENTIALS", &config.GCP.CredentialsFile)
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

// loadSecrets fills only the credential fields still empty after the
// config file and environment.
func loadSecrets(ctx context.Context, config *Config, store secrets.Getter) {
	names := config.GCP.SecretNames
	fill := func(into *string, name string) {
		if *into == "" {
			*into = store.GetSecretWithDefault(ctx, name, "")
		}
	}

	coinbase := &config.Exchanges.Coinbase.Credentials
	// An API key pair and a CDP key are alternatives; fetch the other
	// kind only when neither is configured.
	if coinbase.KeyName == "" && coinbase.PrivateKeyPEM == "" {
		fill(&coinbase.APIKey, names.CoinbaseAPIKey)
		fill(&coinbase.Secret, names.CoinbaseAPISecret)
	}
	if coinbase.APIKey == "" && coinbase.Secret == "" {
		fill(&coinbase.KeyName, names.CoinbaseKeyName)
		fill(&coinbase.PrivateKeyPEM, names.CoinbasePrivateKey)
	}

	kraken := &config.Exchanges.KrakenFutures.Credentials
	fill(&kraken.APIKey, names.KrakenFuturesAPIKey)
	fill(&kraken.Secret, names.KrakenFuturesAPISecret)
}

func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging.format %q: must be json or text", c.Logging.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	for id, ex := range c.ExchangeConfigs() {
		if ex.Timeout <= 0 {
			return fmt.Errorf("exchanges.%s.timeout must be positive", id)
		}
		if ex.RateLimit < 0 {
			return fmt.Errorf("exchanges.%s.rate_limit must not be negative", id)
		}
	}
	if len(c.Poller.Symbols) > 0 && c.Poller.Interval <= 0 {
		return fmt.Errorf("poller.interval must be positive")
	}
	exchanges := c.ExchangeConfigs()
	for i, pair := range c.Poller.Pairs {
		for _, id := range []string{pair.SpotExchange, pair.FutureExchange} {
			if _, ok := exchanges[id]; !ok {
				return fmt.Errorf("poller.pairs[%d]: unknown exchange %q", i, id)
			}
		}
		if pair.SpotSymbol == "" || pair.FutureSymbol == "" {
			return fmt.Errorf("poller.pairs[%d]: spot_symbol and future_symbol are required", i)
		}
	}
	return nil
}

// ExchangeConfigs is keyed by exchange id.
func (c *Config) ExchangeConfigs() map[string]ExchangeConfig {
	return map[string]ExchangeConfig{
		"coinbase":      c.Exchanges.Coinbase,
		"krakenfutures": c.Exchanges.KrakenFutures,
	}
}

// AdapterConfig turns the settings into what an adapter constructor takes.
func (e ExchangeConfig) AdapterConfig(logger *logrus.Entry) exchange.Config {
	return exchange.Config{
		Credentials: e.Credentials,
		Sandbox:     e.Sandbox,
		BaseURL:     e.BaseURL,
		Timeout:     e.Timeout,
		RateLimit:   e.RateLimit,
		Options:     e.Options,
		Logger:      logger,
	}
}
