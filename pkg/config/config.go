// Package config provides the unified configuration for the ADP connector.
// It defines a single BaseConfig structure organized into logical sections:
//   - Credentials: OAuth client and signing certificate material
//   - API: endpoints, pagination and request settings
//   - Reliability: retry logic, circuit breaker, rate limiting
//   - Observability: logging and metrics
//
// Example usage:
//
//	cfg := config.NewBaseConfig()
//	cfg.Credentials.ClientID = os.Getenv("ADP_CLIENT_ID")
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"strings"
	"time"
)

// Default endpoints for the ADP production environment.
const (
	DefaultBaseURL  = "https://api.adp.com"
	DefaultTokenURL = "https://accounts.adp.com/auth/oauth/v2/token"
)

// BaseConfig is the single configuration structure the connector uses.
type BaseConfig struct {
	// Name identifies the connector instance
	Name string `yaml:"name" json:"name" mapstructure:"name"`

	// Credentials holds OAuth client and mTLS certificate material
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials" mapstructure:"credentials"`

	// API holds endpoint and request settings
	API APIConfig `yaml:"api" json:"api" mapstructure:"api"`

	// Reliability settings for error handling and resilience
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability" mapstructure:"reliability"`

	// Observability settings for logging and metrics
	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// CredentialsConfig contains the OAuth client credentials and the signing
// certificate pair used for mutual TLS against the token endpoint.
type CredentialsConfig struct {
	// ClientID is the OAuth client identifier
	ClientID string `yaml:"client_id" json:"client_id" mapstructure:"client_id"`
	// ClientSecret is the OAuth client secret
	ClientSecret string `yaml:"client_secret" json:"client_secret" mapstructure:"client_secret"`
	// CertPublic is the PEM-encoded client certificate
	CertPublic string `yaml:"cert_public" json:"cert_public" mapstructure:"cert_public"`
	// CertPrivate is the PEM-encoded private key
	CertPrivate string `yaml:"cert_private" json:"cert_private" mapstructure:"cert_private"`
	// UserAgent is sent on every API request
	UserAgent string `yaml:"user_agent" json:"user_agent" mapstructure:"user_agent"`
}

// APIConfig contains endpoint and request settings.
type APIConfig struct {
	// BaseURL is the API root (no trailing slash)
	BaseURL string `yaml:"base_url" json:"base_url" mapstructure:"base_url"`
	// TokenURL is the OAuth token endpoint
	TokenURL string `yaml:"token_url" json:"token_url" mapstructure:"token_url"`
	// PageSize is the number of records requested per page
	PageSize int `yaml:"page_size" json:"page_size" mapstructure:"page_size"`
	// RequestTimeout bounds a single HTTP request
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout" mapstructure:"request_timeout"`
	// LookbackDays widens incremental windows to catch late edits
	LookbackDays int `yaml:"lookback_days" json:"lookback_days" mapstructure:"lookback_days"`
	// StartDate is the initial replication start (RFC 3339), optional
	StartDate string `yaml:"start_date" json:"start_date" mapstructure:"start_date"`
}

// ReliabilityConfig contains reliability and error handling settings.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for retryable failures
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts" mapstructure:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay" mapstructure:"retry_delay"`
	// RetryMultiplier increases delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier" mapstructure:"retry_multiplier"`
	// MaxRetryDelay caps the maximum retry delay
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay" mapstructure:"max_retry_delay"`
	// CircuitBreaker enables the circuit breaker
	CircuitBreaker bool `yaml:"circuit_breaker" json:"circuit_breaker" mapstructure:"circuit_breaker"`
	// RateLimitPerSec limits requests per second (0 = unlimited)
	RateLimitPerSec int `yaml:"rate_limit_per_sec" json:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// ObservabilityConfig contains logging and metrics settings.
type ObservabilityConfig struct {
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	// EnableMetrics activates prometheus metrics collection
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// MetricsAddr is the listen address for the metrics endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
}

// NewBaseConfig creates a BaseConfig with production defaults.
func NewBaseConfig() *BaseConfig {
	return &BaseConfig{
		Name: "adp-connector",
		API: APIConfig{
			BaseURL:        DefaultBaseURL,
			TokenURL:       DefaultTokenURL,
			PageSize:       100,
			RequestTimeout: 60 * time.Second,
			LookbackDays:   30,
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   60 * time.Second,
			CircuitBreaker:  true,
			RateLimitPerSec: 0,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			EnableMetrics: false,
			MetricsAddr:   ":9090",
		},
	}
}

// Validate checks required fields and value ranges.
func (bc *BaseConfig) Validate() error {
	if bc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if bc.Credentials.ClientID == "" {
		return fmt.Errorf("credentials.client_id is required")
	}
	if bc.Credentials.ClientSecret == "" {
		return fmt.Errorf("credentials.client_secret is required")
	}
	if bc.Credentials.CertPublic == "" {
		return fmt.Errorf("credentials.cert_public is required")
	}
	if bc.Credentials.CertPrivate == "" {
		return fmt.Errorf("credentials.cert_private is required")
	}
	if !strings.HasPrefix(bc.API.BaseURL, "http") {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	if !strings.HasPrefix(bc.API.TokenURL, "http") {
		return fmt.Errorf("api.token_url must be an http(s) URL")
	}
	if bc.API.PageSize <= 0 {
		return fmt.Errorf("api.page_size must be positive")
	}
	if bc.API.RequestTimeout <= 0 {
		return fmt.Errorf("api.request_timeout must be positive")
	}
	if bc.API.LookbackDays < 0 {
		return fmt.Errorf("api.lookback_days cannot be negative")
	}
	if bc.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("reliability.retry_attempts cannot be negative")
	}
	if bc.Reliability.RateLimitPerSec < 0 {
		return fmt.Errorf("reliability.rate_limit_per_sec cannot be negative")
	}
	if bc.API.StartDate != "" {
		if _, err := time.Parse(time.RFC3339, bc.API.StartDate); err != nil {
			return fmt.Errorf("api.start_date must be RFC 3339: %w", err)
		}
	}
	return nil
}

// StartTime parses API.StartDate, returning the zero time when unset.
func (bc *BaseConfig) StartTime() time.Time {
	if bc.API.StartDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, bc.API.StartDate)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsRateLimited returns true if rate limiting is enabled
func (r *ReliabilityConfig) IsRateLimited() bool {
	return r.RateLimitPerSec > 0
}
