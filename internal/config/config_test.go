// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsbind"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "domcore", cfg.Logger().ServiceName)
	assert.Equal(t, 250*time.Millisecond, cfg.Bindings().LayoutQueryTimeout)
	assert.Equal(t, "saturate", cfg.Bindings().WidthOverflow)
	assert.Equal(t, 1280.0, cfg.Layout().ViewportWidth)
	assert.Equal(t, 720.0, cfg.Layout().ViewportHeight)
	assert.Equal(t, 16, cfg.Layout().QueueSize)
	assert.Equal(t, 30*time.Second, cfg.Script().Timeout)
	assert.NoError(t, cfg.Validate())

	opts, err := cfg.Bindings().RealmOptions()
	require.NoError(t, err)
	assert.Equal(t, jsbind.Options{QueryTimeout: 250 * time.Millisecond, WidthOverflow: jsbind.OverflowSaturate}, opts)
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero query timeout", func(c *Config) { c.BindingsCfg.LayoutQueryTimeout = 0 }, "bindings.layout_query_timeout must be positive"},
		{"unknown overflow policy", func(c *Config) { c.SetWidthOverflow("wrap") }, "bindings.width_overflow"},
		{"zero viewport", func(c *Config) { c.LayoutCfg.ViewportWidth = 0 }, "viewport dimensions must be positive"},
		{"negative image default", func(c *Config) { c.LayoutCfg.DefaultImageHeight = -1 }, "must not be negative"},
		{"negative queue", func(c *Config) { c.LayoutCfg.QueueSize = -1 }, "layout.queue_size"},
		{"zero script timeout", func(c *Config) { c.SetScriptTimeout(0) }, "script.timeout must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	cfg := NewDefaultConfig()
	cfg.SetWidthOverflow("reject")
	require.NoError(t, cfg.Validate())
	policy, err := cfg.Bindings().OverflowPolicy()
	require.NoError(t, err)
	assert.Equal(t, jsbind.OverflowReject, policy)
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
logger:
  level: debug
bindings:
  layout_query_timeout: 1s
  width_overflow: reject
layout:
  viewport_width: 800
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Logger().Level)
		assert.Equal(t, time.Second, cfg.Bindings().LayoutQueryTimeout)
		assert.Equal(t, "reject", cfg.Bindings().WidthOverflow)
		assert.Equal(t, 800.0, cfg.Layout().ViewportWidth)
		// Defaults fill the gaps.
		assert.Equal(t, 720.0, cfg.Layout().ViewportHeight)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("script.timeout", "0s")

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "script.timeout must be positive")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString("bindings:\n  width_overflow: saturate\n")))

		t.Setenv("DOMCORE_BINDINGS_WIDTH_OVERFLOW", "reject")
		t.Setenv("DOMCORE_LAYOUT_QUEUE_SIZE", "3")
		BindEnv(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "reject", cfg.Bindings().WidthOverflow, "env overrides the config file")
		assert.Equal(t, 3, cfg.Layout().QueueSize)
	})
}
