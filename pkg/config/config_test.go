package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *BaseConfig {
	cfg := NewBaseConfig()
	cfg.Credentials.ClientID = "id"
	cfg.Credentials.ClientSecret = "secret"
	cfg.Credentials.CertPublic = "cert"
	cfg.Credentials.CertPrivate = "key"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := NewBaseConfig()

	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
	assert.Equal(t, DefaultTokenURL, cfg.API.TokenURL)
	assert.Equal(t, 100, cfg.API.PageSize)
	assert.Equal(t, 60*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, 30, cfg.API.LookbackDays)
	assert.Equal(t, 3, cfg.Reliability.RetryAttempts)
	assert.True(t, cfg.Reliability.CircuitBreaker)
	assert.False(t, cfg.Reliability.IsRateLimited())
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*BaseConfig)
	}{
		{"missing name", func(c *BaseConfig) { c.Name = "" }},
		{"missing client id", func(c *BaseConfig) { c.Credentials.ClientID = "" }},
		{"missing client secret", func(c *BaseConfig) { c.Credentials.ClientSecret = "" }},
		{"missing cert", func(c *BaseConfig) { c.Credentials.CertPublic = "" }},
		{"missing key", func(c *BaseConfig) { c.Credentials.CertPrivate = "" }},
		{"bad base url", func(c *BaseConfig) { c.API.BaseURL = "api.adp.com" }},
		{"bad token url", func(c *BaseConfig) { c.API.TokenURL = "accounts" }},
		{"zero page size", func(c *BaseConfig) { c.API.PageSize = 0 }},
		{"zero timeout", func(c *BaseConfig) { c.API.RequestTimeout = 0 }},
		{"negative lookback", func(c *BaseConfig) { c.API.LookbackDays = -1 }},
		{"negative retries", func(c *BaseConfig) { c.Reliability.RetryAttempts = -1 }},
		{"negative rate limit", func(c *BaseConfig) { c.Reliability.RateLimitPerSec = -1 }},
		{"bad start date", func(c *BaseConfig) { c.API.StartDate = "2026-01-01" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStartTime(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.StartTime().IsZero())

	cfg.API.StartDate = "2026-01-15T00:00:00Z"
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), cfg.StartTime())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ADP_CREDENTIALS_CLIENT_ID", "env-client")
	t.Setenv("ADP_CREDENTIALS_CLIENT_SECRET", "env-secret")
	t.Setenv("ADP_API_PAGE_SIZE", "250")
	t.Setenv("ADP_OBSERVABILITY_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-client", cfg.Credentials.ClientID)
	assert.Equal(t, "env-secret", cfg.Credentials.ClientSecret)
	assert.Equal(t, 250, cfg.API.PageSize)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)

	// Untouched keys keep their defaults
	assert.Equal(t, DefaultBaseURL, cfg.API.BaseURL)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: payroll-extract
credentials:
  client_id: file-client
api:
  page_size: 50
  start_date: "2026-01-01T00:00:00Z"
reliability:
  rate_limit_per_sec: 10
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "payroll-extract", cfg.Name)
	assert.Equal(t, "file-client", cfg.Credentials.ClientID)
	assert.Equal(t, 50, cfg.API.PageSize)
	assert.Equal(t, 10, cfg.Reliability.RateLimitPerSec)
	assert.True(t, cfg.Reliability.IsRateLimited())
	assert.False(t, cfg.StartTime().IsZero())
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  page_size: 50\n"), 0o600))

	t.Setenv("ADP_API_PAGE_SIZE", "500")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.API.PageSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
