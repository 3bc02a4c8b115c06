// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/beacon/internal/transport"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Equal(t, "beacon", cfg.Logger().ServiceName)
	assert.Equal(t, "green", cfg.Logger().Colors.Info)
	assert.Equal(t, transport.DefaultDialTimeout, cfg.Transport().DialTimeout)
	assert.Equal(t, time.Duration(0), cfg.Transport().RequestTimeout)
	assert.Equal(t, 1280, cfg.Page().ViewportWidth)
	assert.Equal(t, "visible", cfg.Page().Visibility)
	assert.Equal(t, 500*time.Millisecond, cfg.Page().Settle)

	assert.NoError(t, cfg.Validate(), "defaults must always validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad log format", func(c *Config) { c.LoggerCfg.Format = "xml" }, "logger.format"},
		{"relative proxy", func(c *Config) { c.TransportCfg.ProxyURL = "proxy:3128" }, "transport.proxy_url"},
		{"negative timeout", func(c *Config) { c.TransportCfg.DialTimeout = -time.Second }, "transport timeouts"},
		{"negative idle conns", func(c *Config) { c.TransportCfg.MaxIdleConns = -1 }, "transport.max_idle_conns"},
		{"zero width", func(c *Config) { c.PageCfg.ViewportWidth = 0 }, "page.viewport_width"},
		{"unknown visibility", func(c *Config) { c.PageCfg.Visibility = "minimized" }, "page.visibility"},
		{"negative settle", func(c *Config) { c.PageCfg.Settle = -1 }, "page.settle"},
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

	t.Run("valid proxy", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.TransportCfg.ProxyURL = "http://proxy.internal:3128"
		assert.NoError(t, cfg.Validate())
	})
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("YAML overrides defaults", func(t *testing.T) {
		yamlBytes := []byte(`
logger:
  level: debug
transport:
  insecure_skip_verify: true
  request_timeout: 2s
page:
  viewport_width: 390
  settle: 1s
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.Logger().Level)
		assert.True(t, cfg.Transport().InsecureSkipVerify)
		assert.Equal(t, 2*time.Second, cfg.Transport().RequestTimeout)
		assert.Equal(t, 390, cfg.Page().ViewportWidth)
		assert.Equal(t, time.Second, cfg.Page().Settle)
		// Untouched keys keep their defaults.
		assert.Equal(t, "visible", cfg.Page().Visibility)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("page.viewport_width", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "page.viewport_width must be a positive integer")
	})
}

func TestSetters(t *testing.T) {
	var cfg Interface = NewDefaultConfig()
	cfg.SetPageViewportWidth(768)
	cfg.SetPageSettle(2 * time.Second)
	cfg.SetTransportInsecureSkipVerify(true)

	assert.Equal(t, 768, cfg.Page().ViewportWidth)
	assert.Equal(t, 2*time.Second, cfg.Page().Settle)
	assert.True(t, cfg.Transport().InsecureSkipVerify)
}

func TestTransportConfig_ClientConfig(t *testing.T) {
	tc := TransportConfig{
		InsecureSkipVerify: true,
		ProxyURL:           "http://proxy.internal:3128",
		RequestTimeout:     3 * time.Second,
	}
	cc := tc.ClientConfig()

	assert.True(t, cc.InsecureSkipVerify)
	require.NotNil(t, cc.ProxyURL)
	assert.Equal(t, "proxy.internal:3128", cc.ProxyURL.Host)
	assert.Equal(t, 3*time.Second, cc.RequestTimeout)
	// Zero values fall back to the transport defaults.
	assert.Equal(t, transport.DefaultDialTimeout, cc.DialTimeout)
	assert.Equal(t, transport.DefaultMaxIdleConns, cc.MaxIdleConns)
	assert.Equal(t, transport.DefaultIdleConnTimeout, cc.IdleConnTimeout)
}
