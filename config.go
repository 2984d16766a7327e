package upstream

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds per-upstream client configuration.
// Immutable after construction; changing limits requires a new Client.
type Config struct {
	// Name identifies the logical upstream in logs and metrics
	// (e.g. "dexscreener", "withdrawal-binance").
	Name string

	// HTTP settings
	RequestTimeout  time.Duration
	KeepAlive       time.Duration
	MaxIdleConns    int
	IdleTimeout     time.Duration
	MaxResponseSize int64
	UserAgent       string

	// Rate limiting (token bucket)
	TokensPerSecond float64
	MaxTokens       float64

	// Circuit breaker
	FailureThreshold uint32
	RecoveryTimeout  time.Duration

	// Cache
	DefaultTTL time.Duration

	// Retry settings
	MaxRetries    int
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
	RetryFactor   float64
	RetryJitter   float64
}

// DefaultConfig returns a Config with sensible defaults for third-party
// REST APIs of the coingecko/dexscreener class.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		RequestTimeout:   15 * time.Second,
		KeepAlive:        30 * time.Second,
		MaxIdleConns:     100,
		IdleTimeout:      90 * time.Second,
		MaxResponseSize:  10 << 20, // 10MB
		TokensPerSecond:  5,
		MaxTokens:        10,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		DefaultTTL:       30 * time.Second,
		MaxRetries:       2,
		RetryBaseWait:    500 * time.Millisecond,
		RetryMaxWait:     5 * time.Second,
		RetryFactor:      2.0,
		RetryJitter:      0.25,
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Name == "" {
		return ErrInvalidConfig
	}
	if c.TokensPerSecond <= 0 || c.MaxTokens <= 0 {
		return ErrInvalidConfig
	}
	if c.FailureThreshold == 0 || c.RecoveryTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxRetries < 0 || c.DefaultTTL <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// LoadConfig loads configuration for one upstream from environment variables,
// starting from DefaultConfig for anything unset. A variable that is set but
// does not parse is an error; a typo must not silently fall back to defaults.
func LoadConfig(name string) (*Config, error) {
	cfg := DefaultConfig(name)

	for _, err := range []error{
		envDuration("UPSTREAM_REQUEST_TIMEOUT", &cfg.RequestTimeout),
		envFloat("UPSTREAM_TOKENS_PER_SECOND", &cfg.TokensPerSecond),
		envFloat("UPSTREAM_MAX_TOKENS", &cfg.MaxTokens),
		envUint32("UPSTREAM_FAILURE_THRESHOLD", &cfg.FailureThreshold),
		envDuration("UPSTREAM_RECOVERY_TIMEOUT", &cfg.RecoveryTimeout),
		envDuration("UPSTREAM_DEFAULT_TTL", &cfg.DefaultTTL),
		envInt("UPSTREAM_MAX_RETRIES", &cfg.MaxRetries),
		envDuration("UPSTREAM_RETRY_BASE_WAIT", &cfg.RetryBaseWait),
		envDuration("UPSTREAM_RETRY_MAX_WAIT", &cfg.RetryMaxWait),
		envFloat("UPSTREAM_RETRY_FACTOR", &cfg.RetryFactor),
		envFloat("UPSTREAM_RETRY_JITTER", &cfg.RetryJitter),
	} {
		if err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
	}
	*dst = d
	return nil
}

func envFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
	}
	*dst = f
	return nil
}

func envUint32(key string, dst *uint32) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	u, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
	}
	*dst = uint32(u)
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
	}
	*dst = i
	return nil
}
