// Package config provides the service configuration, loaded from a YAML
// file with environment-variable overrides.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/streamvault/ytingest/ingest"
)

// Config holds the service configuration.
type Config struct {
	// DatabaseDSN is the Postgres connection string.
	DatabaseDSN string `mapstructure:"database_dsn" yaml:"database_dsn"`

	// APIKey authenticates every upstream API call.
	APIKey string `mapstructure:"api_key" yaml:"api_key"`

	// QuotaLimit is the daily API cost budget in quota units.
	QuotaLimit int64 `mapstructure:"quota_limit" yaml:"quota_limit"`

	// QuotaSafetyThreshold is the headroom kept unspent below the limit.
	QuotaSafetyThreshold int64 `mapstructure:"quota_safety_threshold" yaml:"quota_safety_threshold"`

	// RequestDelay is the pause before each upstream call.
	RequestDelay time.Duration `mapstructure:"request_delay" yaml:"request_delay"`

	// QuotaTimezone is the IANA zone the upstream provider resets quota in.
	QuotaTimezone string `mapstructure:"quota_timezone" yaml:"quota_timezone"`
}

// Default returns a configuration with sensible defaults. The API key and
// database DSN have none and must be supplied.
func Default() *Config {
	return &Config{
		QuotaLimit:           10000,
		QuotaSafetyThreshold: 500,
		RequestDelay:         500 * time.Millisecond,
		QuotaTimezone:        "America/Los_Angeles",
	}
}

// Load reads the configuration from the given file (or ./ytingest.yaml
// when path is empty) and from YTINGEST_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ytingest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("YTINGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("quota_limit", defaults.QuotaLimit)
	v.SetDefault("quota_safety_threshold", defaults.QuotaSafetyThreshold)
	v.SetDefault("request_delay", defaults.RequestDelay)
	v.SetDefault("quota_timezone", defaults.QuotaTimezone)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// No file present: environment and defaults suffice.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database_dsn must be set")
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key must be set")
	}
	if c.QuotaLimit < 1 {
		return fmt.Errorf("quota_limit must be at least 1")
	}
	if c.QuotaSafetyThreshold < 0 {
		return fmt.Errorf("quota_safety_threshold cannot be negative")
	}
	if c.QuotaSafetyThreshold >= c.QuotaLimit {
		return fmt.Errorf("quota_safety_threshold must be below quota_limit")
	}
	if c.RequestDelay < 0 {
		return fmt.Errorf("request_delay cannot be negative")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("quota_timezone: %w", err)
	}
	return nil
}

// Location resolves the quota-reset timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.QuotaTimezone)
}

// Resolve implements ingest.ConfigResolver: the effective per-run job
// configuration comes straight from the loaded service config.
func (c *Config) Resolve(ctx context.Context) (*ingest.JobConfig, error) {
	return &ingest.JobConfig{
		APIKey:         c.APIKey,
		QuotaLimit:     c.QuotaLimit,
		QuotaThreshold: c.QuotaSafetyThreshold,
		Delay:          c.RequestDelay,
	}, nil
}
