package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hcmdata/adp-connector/pkg/config"
	"github.com/hcmdata/adp-connector/pkg/errors"
)

// testKeyPair generates a throwaway self-signed certificate in PEM form.
func testKeyPair(t *testing.T) (certPEM, keyPEM string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "adp-connector-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certPEM = string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
	keyPEM = string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	return certPEM, keyPEM
}

func testConfig(t *testing.T, tokenURL string) *config.BaseConfig {
	t.Helper()
	certPEM, keyPEM := testKeyPair(t)

	cfg := config.NewBaseConfig()
	cfg.Credentials.ClientID = "client-id"
	cfg.Credentials.ClientSecret = "client-secret"
	cfg.Credentials.CertPublic = certPEM
	cfg.Credentials.CertPrivate = keyPEM
	cfg.API.TokenURL = tokenURL
	cfg.API.RequestTimeout = 5 * time.Second
	return cfg
}

// credentialFiles lists leftover temp credential files.
func credentialFiles(t *testing.T) []string {
	t.Helper()
	certs, err := filepath.Glob(filepath.Join(os.TempDir(), "adp-cert-*.pem"))
	require.NoError(t, err)
	keys, err := filepath.Glob(filepath.Join(os.TempDir(), "adp-key-*.pem"))
	require.NoError(t, err)
	return append(certs, keys...)
}

func TestTokenRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())

	before := time.Now()
	tok, err := a.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Valid())

	// Expiry is expires_in minus the ten minute refresh margin
	wantExpiry := before.Add(3600*time.Second - 600*time.Second)
	assert.WithinDuration(t, wantExpiry, tok.ExpiresAt, 5*time.Second)
}

func TestTokenCachedUntilExpiry(t *testing.T) {
	var calls int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())

	first, err := a.Token(context.Background())
	require.NoError(t, err)
	second, err := a.Token(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	a.Invalidate()
	_, err = a.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestTokenNonExpiring(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer"}`))
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())

	tok, err := a.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, tok.ExpiresAt.IsZero())
	assert.True(t, tok.Valid())
}

func TestTokenLifetimeBelowMargin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":300}`))
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())

	tok, err := a.Token(context.Background())
	require.NoError(t, err)

	// A lifetime shorter than the margin floors at zero: the token is
	// usable for this request cycle but refreshed on the next
	assert.False(t, tok.Valid())
}

func TestTokenEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())

	_, err := a.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Contains(t, err.Error(), "invalid_client")
}

func TestTokenMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())

	_, err := a.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestCredentialFilesErasedAfterRefresh(t *testing.T) {
	baseline := len(credentialFiles(t))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())
	_, err := a.Token(context.Background())
	require.NoError(t, err)

	assert.Len(t, credentialFiles(t), baseline)
}

func TestCredentialFilesErasedOnLoadFailure(t *testing.T) {
	baseline := len(credentialFiles(t))

	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Credentials.CertPublic = "not a pem"
	cfg.Credentials.CertPrivate = "not a pem"

	a := NewAuthenticator(cfg, zap.NewNop())
	_, err := a.Token(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))

	assert.Len(t, credentialFiles(t), baseline)
}

func TestCredentialFilesErasedOnEndpointError(t *testing.T) {
	baseline := len(credentialFiles(t))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	a := NewAuthenticator(testConfig(t, server.URL), zap.NewNop())
	_, err := a.Token(context.Background())
	require.Error(t, err)

	assert.Len(t, credentialFiles(t), baseline)
}

func TestTokenValid(t *testing.T) {
	var nilToken *Token
	assert.False(t, nilToken.Valid())
	assert.False(t, (&Token{}).Valid())
	assert.True(t, (&Token{AccessToken: "x"}).Valid())
	assert.True(t, (&Token{AccessToken: "x", ExpiresAt: time.Now().Add(time.Minute)}).Valid())
	assert.False(t, (&Token{AccessToken: "x", ExpiresAt: time.Now().Add(-time.Minute)}).Valid())
}
