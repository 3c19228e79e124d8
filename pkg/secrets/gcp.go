package secrets

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Getter is what credential loading needs from a secret store.
type Getter interface {
	GetSecretWithDefault(ctx context.Context, secretName, defaultValue string) string
}

type GCPSecretManager struct {
	access    func(ctx context.Context, name string) ([]byte, error)
	close     func() error
	projectID string
	logger    *logrus.Entry
}

var _ Getter = (*GCPSecretManager)(nil)

// NewGCPSecretManager connects with application default credentials, or
// with the service account key at credentialsFile when it is set.
func NewGCPSecretManager(ctx context.Context, projectID, credentialsFile string, logger *logrus.Entry) (*GCPSecretManager, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secretmanager client: %w", err)
	}

	return &GCPSecretManager{
		access: func(ctx context.Context, name string) ([]byte, error) {
			result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
			if err != nil {
				return nil, err
			}
			return result.GetPayload().GetData(), nil
		},
		close:     client.Close,
		projectID: projectID,
		logger:    logger,
	}, nil
}

func (g *GCPSecretManager) versionName(secretName string) string {
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.projectID, secretName)
}

func (g *GCPSecretManager) GetSecret(ctx context.Context, secretName string) (string, error) {
	data, err := g.access(ctx, g.versionName(secretName))
	if err != nil {
		return "", fmt.Errorf("failed to access secret %s: %w", secretName, err)
	}
	return string(data), nil
}

// GetSecretWithDefault never logs the value, only the secret's name.
func (g *GCPSecretManager) GetSecretWithDefault(ctx context.Context, secretName, defaultValue string) string {
	if secretName == "" {
		return defaultValue
	}
	value, err := g.GetSecret(ctx, secretName)
	if err != nil {
		g.logger.WithError(err).WithField("secret", secretName).Debug("Failed to get secret, using default")
		return defaultValue
	}
	return strings.TrimSpace(value)
}

func (g *GCPSecretManager) Close() error {
	if g.close == nil {
		return nil
	}
	return g.close()
}

// SecretNames names the secret holding each exchange credential field.
type SecretNames struct {
	CoinbaseAPIKey     string `mapstructure:"coinbase_api_key"`
	CoinbaseAPISecret  string `mapstructure:"coinbase_api_secret"`
	CoinbaseKeyName    string `mapstructure:"coinbase_key_name"`
	CoinbasePrivateKey string `mapstructure:"coinbase_private_key"`

	KrakenFuturesAPIKey    string `mapstructure:"krakenfutures_api_key"`
	KrakenFuturesAPISecret string `mapstructure:"krakenfutures_api_secret"`
}

func DefaultSecretNames() SecretNames {
	return SecretNames{
		CoinbaseAPIKey:         "coinbase-api-key",
		CoinbaseAPISecret:      "coinbase-api-secret",
		CoinbaseKeyName:        "coinbase-key-name",
		CoinbasePrivateKey:     "coinbase-private-key",
		KrakenFuturesAPIKey:    "krakenfutures-api-key",
		KrakenFuturesAPISecret: "krakenfutures-api-secret",
	}
}
