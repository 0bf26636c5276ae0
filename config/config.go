// Package config holds the engine's configuration surface (spec §6): the
// single struct of tunables shared by SyncEngine and CleanupPolicy, with
// YAML loading in the teacher's DefaultConfig()/Validate() shape.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the configuration surface from spec §6.
type Config struct {
	MaxRetryCount               int           `yaml:"max_retry_count"`
	ConsecutiveFailureThreshold int           `yaml:"consecutive_failure_threshold"`
	InitialBackoff              time.Duration `yaml:"initial_backoff"`
	MaxBackoff                  time.Duration `yaml:"max_backoff"`
	MaxBackoffExponent          int           `yaml:"max_backoff_exponent"`
	RetentionWindow             time.Duration `yaml:"retention_window"`
	CleanupThreshold            int           `yaml:"cleanup_threshold"`
}

// DefaultConfig returns the defaults tabulated in spec §6.
func DefaultConfig() Config {
	return Config{
		MaxRetryCount:               5,
		ConsecutiveFailureThreshold: 3,
		InitialBackoff:              time.Second,
		MaxBackoff:                  60 * time.Second,
		MaxBackoffExponent:          5,
		RetentionWindow:             7 * 24 * time.Hour,
		CleanupThreshold:            30,
	}
}

// Validate rejects configurations that cannot produce sensible engine
// behavior: non-positive thresholds, or a backoff ceiling below its own
// base.
func (c Config) Validate() error {
	if c.MaxRetryCount <= 0 {
		return fmt.Errorf("max_retry_count must be positive, got %d", c.MaxRetryCount)
	}
	if c.ConsecutiveFailureThreshold <= 0 {
		return fmt.Errorf("consecutive_failure_threshold must be positive, got %d", c.ConsecutiveFailureThreshold)
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive, got %s", c.InitialBackoff)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff (%s) must be >= initial_backoff (%s)", c.MaxBackoff, c.InitialBackoff)
	}
	if c.MaxBackoffExponent < 0 {
		return fmt.Errorf("max_backoff_exponent must be non-negative, got %d", c.MaxBackoffExponent)
	}
	if c.RetentionWindow <= 0 {
		return fmt.Errorf("retention_window must be positive, got %s", c.RetentionWindow)
	}
	if c.CleanupThreshold <= 0 {
		return fmt.Errorf("cleanup_threshold must be positive, got %d", c.CleanupThreshold)
	}
	return nil
}

// Load reads a YAML file at path, starting from DefaultConfig() so a
// partial file only overrides the fields it sets, then validates the
// result.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}
