// Package config loads dopa client and gateway settings from a YAML file and
// the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL       = errors.New("client.base_url is required")
	ErrInvalidRateLimit     = errors.New("client.rate_limit must be non-negative")
	ErrInvalidTimeout       = errors.New("client.timeout must be positive")
	ErrInvalidMaxAttempts   = errors.New("client.retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay  = errors.New("client.retry.initial_delay must be positive")
	ErrMaxDelayBelowInitial = errors.New("client.retry.max_delay cannot be below initial_delay")
	ErrInvalidCacheTTL      = errors.New("cache.ttl must be positive when cache.dir is set")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat     = errors.New("logging.format must be 'text' or 'json'")
)

// Environment variables that override file settings.
const (
	EnvBaseURL    = "DOPA_BASE_URL"
	EnvCacheDir   = "DOPA_CACHE_DIR"
	EnvLogLevel   = "DOPA_LOG_LEVEL"
	EnvListenAddr = "DOPA_LISTEN_ADDR"
)

// DefaultBaseURL is the DOPA eSpecies REST root.
const DefaultBaseURL = "https://dopa-services.jrc.ec.europa.eu/services/d6dopa/especies"

// Config is the complete configuration.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// ClientConfig holds transport settings.
type ClientConfig struct {
	BaseURL   string        `yaml:"base_url"`
	UserAgent string        `yaml:"user_agent"`
	RateLimit time.Duration `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	Retry     RetryPolicy   `yaml:"retry"`
}

// RetryPolicy defines retry behavior for transient failures.
type RetryPolicy struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// CacheConfig holds on-disk response cache settings. An empty Dir disables
// caching.
type CacheConfig struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig holds gateway settings.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Client: ClientConfig{
			BaseURL:   DefaultBaseURL,
			UserAgent: "dopa-go-client/1.0",
			RateLimit: 200 * time.Millisecond,
			Timeout:   30 * time.Second,
			Retry: RetryPolicy{
				MaxAttempts:  3,
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (cfg *Config) applyEnv() {
	cfg.Client.BaseURL = getenv(EnvBaseURL, cfg.Client.BaseURL)
	cfg.Cache.Dir = getenv(EnvCacheDir, cfg.Cache.Dir)
	cfg.Logging.Level = getenv(EnvLogLevel, cfg.Logging.Level)
	cfg.Server.ListenAddr = getenv(EnvListenAddr, cfg.Server.ListenAddr)
}

// Validate checks the configuration for consistency.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Client.BaseURL) == "" {
		return ErrMissingBaseURL
	}
	if cfg.Client.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if cfg.Client.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if cfg.Client.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if cfg.Client.Retry.InitialDelay <= 0 {
		return ErrInvalidInitialDelay
	}
	if cfg.Client.Retry.MaxDelay < cfg.Client.Retry.InitialDelay {
		return ErrMaxDelayBelowInitial
	}
	if cfg.Cache.Dir != "" && cfg.Cache.TTL <= 0 {
		return ErrInvalidCacheTTL
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		return ErrInvalidLogFormat
	}
	return nil
}
