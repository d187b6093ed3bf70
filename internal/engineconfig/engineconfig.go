// Package engineconfig holds process-wide engine configuration: the state
// root override, log level, and retry defaults, loaded from environment
// variables and overridable by functional options at the composition root.
package engineconfig

import (
	"os"
	"time"
)

// Config is the engine's ambient configuration.
type Config struct {
	// StateRoot overrides the platform per-user local-app-data directory
	// (spec §6: "<stateRoot> defaults to the platform per-user
	// local-app-data directory but MUST be overridable").
	StateRoot string

	// LogLevel is the zerolog level name ("debug", "info", "warn", "error").
	LogLevel string

	RetryMaxAttempts       int
	RetryInitialDelay      time.Duration
	RetryMaxDelay          time.Duration
	RetryBackoffMultiplier float64
	RetryUseJitter         bool

	CheckpointEveryNFiles int
}

// Option mutates a Config at construction time.
type Option func(*Config)

// WithStateRoot overrides the state directory root.
func WithStateRoot(path string) Option {
	return func(c *Config) { c.StateRoot = path }
}

// WithLogLevel overrides the log level.
func WithLogLevel(level string) Option {
	return func(c *Config) { c.LogLevel = level }
}

// Default returns the baseline configuration (spec §3 RetryConfiguration
// defaults, §4.7 checkpoint-every-10th-file), overlaid with
// KOPIORAPIDO_STATE_DIR / KOPIORAPIDO_LOG_LEVEL environment variables, then
// with the supplied options.
func Default(opts ...Option) Config {
	c := Config{
		LogLevel:               "info",
		RetryMaxAttempts:       3,
		RetryInitialDelay:      time.Second,
		RetryMaxDelay:          30 * time.Second,
		RetryBackoffMultiplier: 2.0,
		RetryUseJitter:         true,
		CheckpointEveryNFiles:  10,
	}

	if dir, err := os.UserCacheDir(); err == nil {
		c.StateRoot = dir
	}

	if v := os.Getenv("KOPIORAPIDO_STATE_DIR"); v != "" {
		c.StateRoot = v
	}

	if v := os.Getenv("KOPIORAPIDO_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	for _, o := range opts {
		o(&c)
	}

	return c
}
