package coinbase

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gregtusar/xchange/pkg/exchange"
)

// AuthType represents the authentication method
type AuthType string

const (
	AuthTypeHMAC   AuthType = "hmac"
	AuthTypeJWT    AuthType = "jwt"
	AuthTypeBearer AuthType = "bearer"
)

// Authenticator produces the headers for one private call. path is the
// request path without its query string.
type Authenticator interface {
	Type() AuthType
	AuthHeaders(method, host, path, body string) (map[string]string, error)
}

// HMACAuthenticator signs with an API key and secret.
type HMACAuthenticator struct {
	apiKey    string
	apiSecret string
	now       func() time.Time
}

func NewHMACAuthenticator(apiKey, apiSecret string) *HMACAuthenticator {
	return &HMACAuthenticator{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

func (h *HMACAuthenticator) Type() AuthType { return AuthTypeHMAC }

func (h *HMACAuthenticator) AuthHeaders(method, host, path, body string) (map[string]string, error) {
	timestamp := strconv.FormatInt(h.now().Unix(), 10)
	return map[string]string{
		"CB-ACCESS-KEY":       h.apiKey,
		"CB-ACCESS-SIGN":      h.sign(timestamp, method, path, body),
		"CB-ACCESS-TIMESTAMP": timestamp,
		"Content-Type":        "application/json",
	}, nil
}

// sign is hex(HMAC-SHA256(secret, timestamp + METHOD + path + body)).
func (h *HMACAuthenticator) sign(timestamp, method, path, body string) string {
	return computeHMAC(timestamp+method+path+body, h.apiSecret)
}

func computeHMAC(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// JWTAuthenticator uses CDP key authentication: a short-lived ES256 JWT
// per request.
type JWTAuthenticator struct {
	apiKeyName string
	privateKey *ecdsa.PrivateKey
	now        func() time.Time
}

func NewJWTAuthenticator(apiKeyName, privateKeyPEM string) (*JWTAuthenticator, error) {
	// Keys copied out of env files often carry literal "\n".
	privateKeyPEM = strings.ReplaceAll(privateKeyPEM, `\n`, "\n")

	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, exchange.NewError(exchange.KindAuthenticationError, ID, "failed to parse PEM block containing the private key")
	}

	privateKey, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, &exchange.Error{Kind: exchange.KindAuthenticationError, Exchange: ID, Message: "failed to parse EC private key", Err: err}
		}
		var ok bool
		privateKey, ok = key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, exchange.NewError(exchange.KindAuthenticationError, ID, "not an EC private key")
		}
	}

	return &JWTAuthenticator{
		apiKeyName: apiKeyName,
		privateKey: privateKey,
		now:        time.Now,
	}, nil
}

func (j *JWTAuthenticator) Type() AuthType { return AuthTypeJWT }

func (j *JWTAuthenticator) AuthHeaders(method, host, path, body string) (map[string]string, error) {
	token, err := j.generateJWT(method, host, path)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Content-Type":  "application/json",
	}, nil
}

func (j *JWTAuthenticator) generateJWT(method, host, path string) (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}

	now := j.now()
	claims := jwt.MapClaims{
		"sub": j.apiKeyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
		"uri": method + " " + host + path,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = j.apiKeyName
	token.Header["nonce"] = nonce

	tokenString, err := token.SignedString(j.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// generateWSJWT signs a token for the websocket subscribe frame, which
// carries no request uri.
func (j *JWTAuthenticator) generateWSJWT() (string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", err
	}
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub": j.apiKeyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(2 * time.Minute).Unix(),
	})
	token.Header["kid"] = j.apiKeyName
	token.Header["nonce"] = nonce
	return token.SignedString(j.privateKey)
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// BearerAuthenticator forwards an OAuth access token.
type BearerAuthenticator struct {
	token string
}

func NewBearerAuthenticator(token string) *BearerAuthenticator {
	return &BearerAuthenticator{token: token}
}

func (b *BearerAuthenticator) Type() AuthType { return AuthTypeBearer }

func (b *BearerAuthenticator) AuthHeaders(method, host, path, body string) (map[string]string, error) {
	return map[string]string{
		"Authorization": "Bearer " + b.token,
		"Content-Type":  "application/json",
	}, nil
}

// newAuthenticator prefers a bearer token, then a CDP key, then an API
// key and secret. It returns nil when nothing usable is configured; the
// caller reports that as an authentication error on the first private
// call.
func newAuthenticator(creds exchange.Credentials) (Authenticator, error) {
	switch {
	case creds.Token != "":
		return NewBearerAuthenticator(creds.Token), nil
	case creds.KeyName != "" && creds.PrivateKeyPEM != "":
		auth, err := NewJWTAuthenticator(creds.KeyName, creds.PrivateKeyPEM)
		if err != nil {
			return nil, err
		}
		return auth, nil
	case creds.APIKey != "" && creds.Secret != "":
		return NewHMACAuthenticator(creds.APIKey, creds.Secret), nil
	}
	return nil, nil
}
