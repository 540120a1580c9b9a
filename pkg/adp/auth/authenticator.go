// Package auth implements the OAuth client-credentials flow against the
// ADP token endpoint. The endpoint requires mutual TLS with a signing
// certificate, so credentials are materialized as owner-only temp files
// just long enough to build the TLS client, then erased.
package auth

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hcmdata/adp-connector/pkg/config"
	"github.com/hcmdata/adp-connector/pkg/errors"
	"github.com/hcmdata/adp-connector/pkg/json"
	"github.com/hcmdata/adp-connector/pkg/metrics"
)

// refreshMargin is subtracted from expires_in so a token is replaced
// well before the server-side expiry.
const refreshMargin = 600 * time.Second

// Token is an issued bearer token with its computed expiry.
type Token struct {
	AccessToken string
	TokenType   string
	// ExpiresAt is the refresh deadline. Zero means the token never expires.
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Valid reports whether the token can still be used.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Before(t.ExpiresAt)
}

// tokenResponse is the wire shape of the token endpoint response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Authenticator manages the token lifecycle. The current token is held in
// an atomic pointer; concurrent refreshes may race, and whichever result
// lands last wins. Both are individually valid so this is harmless.
type Authenticator struct {
	tokenURL     string
	clientID     string
	clientSecret string
	certPublic   string
	certPrivate  string

	timeout time.Duration
	logger  *zap.Logger

	token atomic.Pointer[Token]
}

// NewAuthenticator creates an authenticator from connector credentials.
func NewAuthenticator(cfg *config.BaseConfig, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		tokenURL:     cfg.API.TokenURL,
		clientID:     cfg.Credentials.ClientID,
		clientSecret: cfg.Credentials.ClientSecret,
		certPublic:   cfg.Credentials.CertPublic,
		certPrivate:  cfg.Credentials.CertPrivate,
		timeout:      cfg.API.RequestTimeout,
		logger:       logger.With(zap.String("component", "authenticator")),
	}
}

// Token returns a valid bearer token, refreshing transparently when the
// cached one is absent or past its deadline.
func (a *Authenticator) Token(ctx context.Context) (*Token, error) {
	if tok := a.token.Load(); tok.Valid() {
		return tok, nil
	}

	tok, err := a.refresh(ctx)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	a.token.Store(tok)
	return tok, nil
}

// Invalidate drops the cached token so the next call refreshes.
func (a *Authenticator) Invalidate() {
	a.token.Store(nil)
}

// refresh performs the client-credentials grant over mutual TLS.
func (a *Authenticator) refresh(ctx context.Context) (*Token, error) {
	issuedAt := time.Now()

	tlsConfig, cleanup, err := a.buildTLSConfig()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	client := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
		Timeout: a.timeout,
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "token request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read token response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		a.logger.Warn("OAuth login failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", body))
		return nil, errors.Newf(errors.ErrorTypeAuthentication,
			"token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to parse token response")
	}
	if tr.AccessToken == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "token response missing access_token")
	}

	tok := &Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		IssuedAt:    issuedAt,
	}

	if tr.ExpiresIn > 0 {
		lifetime := time.Duration(tr.ExpiresIn)*time.Second - refreshMargin
		if lifetime < 0 {
			lifetime = 0
		}
		tok.ExpiresAt = issuedAt.Add(lifetime)
	} else {
		// Degraded mode: without expires_in the token is never refreshed
		a.logger.Warn("token response has no expires_in, treating token as non-expiring")
	}

	a.logger.Info("OAuth authorization successful",
		zap.Time("expires_at", tok.ExpiresAt))

	return tok, nil
}

// buildTLSConfig writes the PEM pair to owner-only temp files, loads the
// keypair and returns a cleanup that removes the files. The files are
// erased on every path, including load failures.
func (a *Authenticator) buildTLSConfig() (*tls.Config, func(), error) {
	certPath, err := writeTempCredential("adp-cert-*.pem", a.certPublic)
	if err != nil {
		return nil, nil, err
	}

	keyPath, err := writeTempCredential("adp-key-*.pem", a.certPrivate)
	if err != nil {
		os.Remove(certPath)
		return nil, nil, err
	}

	cleanup := func() {
		os.Remove(certPath)
		os.Remove(keyPath)
	}

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, errors.ErrorTypeAuthentication,
			"failed to load client certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, cleanup, nil
}

// writeTempCredential writes content to a 0600 temp file and returns its path.
func writeTempCredential(pattern, content string) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeAuthentication,
			"failed to create credential file")
	}

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Wrap(err, errors.ErrorTypeAuthentication,
			fmt.Sprintf("failed to restrict permissions on %s", f.Name()))
	}

	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", errors.Wrap(err, errors.ErrorTypeAuthentication,
			"failed to write credential file")
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", errors.Wrap(err, errors.ErrorTypeAuthentication,
			"failed to close credential file")
	}

	return f.Name(), nil
}
