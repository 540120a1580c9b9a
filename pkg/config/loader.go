package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from an optional YAML file and the environment.
// Environment variables use the ADP_ prefix with underscores for nesting,
// e.g. ADP_CREDENTIALS_CLIENT_ID overrides credentials.client_id.
func Load(filePath string) (*BaseConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ADP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := NewBaseConfig()
	bindDefaults(v, cfg)

	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// bindDefaults registers defaults so AutomaticEnv sees every key even when
// no config file is present.
func bindDefaults(v *viper.Viper, cfg *BaseConfig) {
	v.SetDefault("name", cfg.Name)
	v.SetDefault("credentials.client_id", "")
	v.SetDefault("credentials.client_secret", "")
	v.SetDefault("credentials.cert_public", "")
	v.SetDefault("credentials.cert_private", "")
	v.SetDefault("credentials.user_agent", "")
	v.SetDefault("api.base_url", cfg.API.BaseURL)
	v.SetDefault("api.token_url", cfg.API.TokenURL)
	v.SetDefault("api.page_size", cfg.API.PageSize)
	v.SetDefault("api.request_timeout", cfg.API.RequestTimeout)
	v.SetDefault("api.lookback_days", cfg.API.LookbackDays)
	v.SetDefault("api.start_date", "")
	v.SetDefault("reliability.retry_attempts", cfg.Reliability.RetryAttempts)
	v.SetDefault("reliability.retry_delay", cfg.Reliability.RetryDelay)
	v.SetDefault("reliability.retry_multiplier", cfg.Reliability.RetryMultiplier)
	v.SetDefault("reliability.max_retry_delay", cfg.Reliability.MaxRetryDelay)
	v.SetDefault("reliability.circuit_breaker", cfg.Reliability.CircuitBreaker)
	v.SetDefault("reliability.rate_limit_per_sec", cfg.Reliability.RateLimitPerSec)
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.enable_metrics", cfg.Observability.EnableMetrics)
	v.SetDefault("observability.metrics_addr", cfg.Observability.MetricsAddr)
}
