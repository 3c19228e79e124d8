package exchange

import "strings"

// Credentials are supplied by the host application. They are never
// logged: String and GoString redact every secret field.
type Credentials struct {
	APIKey        string `mapstructure:"api_key"`
	Secret        string `mapstructure:"api_secret"`
	Password      string `mapstructure:"passphrase"`
	Token         string `mapstructure:"token"`
	KeyName       string `mapstructure:"key_name"`
	PrivateKeyPEM string `mapstructure:"private_key"`
}

type Credential string

const (
	CredentialAPIKey     Credential = "apiKey"
	CredentialSecret     Credential = "secret"
	CredentialPassword   Credential = "password"
	CredentialToken      Credential = "token"
	CredentialKeyName    Credential = "keyName"
	CredentialPrivateKey Credential = "privateKey"
)

func (c Credentials) value(field Credential) string {
	switch field {
	case CredentialAPIKey:
		return c.APIKey
	case CredentialSecret:
		return c.Secret
	case CredentialPassword:
		return c.Password
	case CredentialToken:
		return c.Token
	case CredentialKeyName:
		return c.KeyName
	case CredentialPrivateKey:
		return c.PrivateKeyPEM
	}
	return ""
}

// Check fails with AuthenticationError naming the first missing field.
func (c Credentials) Check(exchange string, required ...Credential) error {
	for _, field := range required {
		if c.value(field) == "" {
			return NewError(KindAuthenticationError, exchange, "requires %q credential", string(field))
		}
	}
	return nil
}

func (c Credentials) Empty() bool {
	return c.APIKey == "" && c.Secret == "" && c.Token == "" && c.KeyName == "" && c.PrivateKeyPEM == ""
}

func (c Credentials) String() string {
	var set []string
	for _, field := range []Credential{CredentialAPIKey, CredentialSecret, CredentialPassword, CredentialToken, CredentialKeyName, CredentialPrivateKey} {
		if c.value(field) != "" {
			set = append(set, string(field)+"=<redacted>")
		}
	}
	return "Credentials{" + strings.Join(set, " ") + "}"
}

func (c Credentials) GoString() string {
	return c.String()
}
