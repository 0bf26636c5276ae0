package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"zero max retry", func(c *Config) { c.MaxRetryCount = 0 }, true},
		{"zero threshold", func(c *Config) { c.ConsecutiveFailureThreshold = 0 }, true},
		{"zero initial backoff", func(c *Config) { c.InitialBackoff = 0 }, true},
		{"max backoff below initial", func(c *Config) { c.MaxBackoff = time.Millisecond }, true},
		{"negative exponent", func(c *Config) { c.MaxBackoffExponent = -1 }, true},
		{"zero retention", func(c *Config) { c.RetentionWindow = 0 }, true},
		{"zero cleanup threshold", func(c *Config) { c.CleanupThreshold = 0 }, true},
		{"unmodified defaults", func(c *Config) {}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadOverridesDefaultsFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retry_count: 10\ncleanup_threshold: 50\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxRetryCount)
	assert.Equal(t, 50, cfg.CleanupThreshold)
	// fields not present in the file keep their defaults
	assert.Equal(t, DefaultConfig().ConsecutiveFailureThreshold, cfg.ConsecutiveFailureThreshold)
}

func TestLoadRejectsInvalidResult(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_retry_count: 0\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
