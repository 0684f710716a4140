package adapter

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	apperrors "github.com/url-indexer/internal/errors"
)

const (
	defaultTokenURL   = "https://oauth2.googleapis.com/token"
	defaultTokenScope = "https://www.googleapis.com/auth/webmasters https://www.googleapis.com/auth/indexing"

	jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// JWTTokenSource exchanges service-account credentials for bearer tokens via
// the two-legged OAuth flow: a signed RS256 assertion traded at the token
// endpoint. Tokens are cached per client email until shortly before expiry.
type JWTTokenSource struct {
	tokenURL string
	scope    string
	client   *http.Client
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// JWTTokenSourceConfig configures the token source.
type JWTTokenSourceConfig struct {
	TokenURL       string        // defaults to the public endpoint
	Scope          string        // defaults to webmasters + indexing
	RequestTimeout time.Duration // defaults to 30s
}

// NewJWTTokenSource creates a token source.
func NewJWTTokenSource(cfg *JWTTokenSourceConfig) *JWTTokenSource {
	if cfg == nil {
		cfg = &JWTTokenSourceConfig{}
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	scope := cfg.Scope
	if scope == "" {
		scope = defaultTokenScope
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &JWTTokenSource{
		tokenURL: tokenURL,
		scope:    scope,
		client:   &http.Client{Timeout: timeout},
		now:      time.Now,
		cache:    make(map[string]cachedToken),
	}
}

// AccessToken implements TokenSource.
func (s *JWTTokenSource) AccessToken(ctx context.Context, clientEmail, privateKey string) (string, error) {
	s.mu.Lock()
	cached, ok := s.cache[clientEmail]
	s.mu.Unlock()
	// Refresh a minute early so an in-flight run never holds a dying token.
	if ok && s.now().Before(cached.expiresAt.Add(-time.Minute)) {
		return cached.token, nil
	}

	assertion, err := s.signAssertion(clientEmail, privateKey)
	if err != nil {
		return "", apperrors.NewAuthError("failed to sign token assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", jwtGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperrors.NewAuthError("failed to build token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.NewAuthError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewAuthError("failed to read token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewAuthError(
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return "", apperrors.NewAuthError("malformed token response", err)
	}

	expiresAt := s.now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	s.mu.Lock()
	s.cache[clientEmail] = cachedToken{token: payload.AccessToken, expiresAt: expiresAt}
	s.mu.Unlock()

	return payload.AccessToken, nil
}

// signAssertion builds and signs the RS256 JWT assertion for the token
// exchange.
func (s *JWTTokenSource) signAssertion(clientEmail, privateKey string) (string, error) {
	key, err := parseRSAPrivateKey(privateKey)
	if err != nil {
		return "", err
	}

	now := s.now()
	header := map[string]string{"alg": "RS256", "typ": "JWT"}
	claims := map[string]interface{}{
		"iss":   clientEmail,
		"scope": s.scope,
		"aud":   s.tokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON)

	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func parseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	// Keys arriving through env vars or JSON often carry escaped newlines.
	pemData = strings.ReplaceAll(pemData, `\n`, "\n")

	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in private key")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}
