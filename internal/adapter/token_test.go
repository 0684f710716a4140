package adapter

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/url-indexer/internal/errors"
)

func testPrivateKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func TestJWTTokenSource(t *testing.T) {
	keyPEM := testPrivateKeyPEM(t)

	t.Run("exchanges assertion for token and caches it", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, jwtGrantType, r.Form.Get("grant_type"))
			assert.NotEmpty(t, r.Form.Get("assertion"))
			w.Write([]byte(`{"access_token":"tok-123","expires_in":3600}`))
		}))
		defer srv.Close()

		source := NewJWTTokenSource(&JWTTokenSourceConfig{TokenURL: srv.URL})

		token, err := source.AccessToken(context.Background(), "svc@example.iam", keyPEM)
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)

		// Second call within the expiry window hits the cache.
		token, err = source.AccessToken(context.Background(), "svc@example.iam", keyPEM)
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)
		assert.Equal(t, 1, calls)
	})

	t.Run("refreshes after expiry", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		}))
		defer srv.Close()

		source := NewJWTTokenSource(&JWTTokenSourceConfig{TokenURL: srv.URL})
		now := time.Now()
		source.now = func() time.Time { return now }

		_, err := source.AccessToken(context.Background(), "svc@example.iam", keyPEM)
		require.NoError(t, err)

		now = now.Add(2 * time.Hour)
		_, err = source.AccessToken(context.Background(), "svc@example.iam", keyPEM)
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("token endpoint failure is an auth error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		source := NewJWTTokenSource(&JWTTokenSourceConfig{TokenURL: srv.URL})

		_, err := source.AccessToken(context.Background(), "svc@example.iam", keyPEM)
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAuth))
	})

	t.Run("garbage private key is an auth error", func(t *testing.T) {
		source := NewJWTTokenSource(nil)

		_, err := source.AccessToken(context.Background(), "svc@example.iam", "not a key")
		require.Error(t, err)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAuth))
	})

	t.Run("accepts keys with escaped newlines", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"access_token":"tok","expires_in":3600}`))
		}))
		defer srv.Close()

		escaped := ""
		for _, line := range splitLines(keyPEM) {
			escaped += line + `\n`
		}

		source := NewJWTTokenSource(&JWTTokenSourceConfig{TokenURL: srv.URL})
		_, err := source.AccessToken(context.Background(), "svc@example.iam", escaped)
		require.NoError(t, err)
	})
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
