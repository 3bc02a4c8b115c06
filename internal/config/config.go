// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/beacon/internal/env"
	"github.com/xkilldash9x/beacon/internal/transport"
)

// Interface defines the contract for accessing application configuration.
type Interface interface {
	Logger() LoggerConfig
	Transport() TransportConfig
	Page() PageConfig

	SetTransportInsecureSkipVerify(bool)
	SetPageViewportWidth(int)
	SetPageSettle(time.Duration)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	TransportCfg TransportConfig `mapstructure:"transport" yaml:"transport"`
	PageCfg      PageConfig      `mapstructure:"page" yaml:"page"`
}

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Transport() TransportConfig { return c.TransportCfg }
func (c *Config) Page() PageConfig           { return c.PageCfg }

func (c *Config) SetTransportInsecureSkipVerify(b bool) { c.TransportCfg.InsecureSkipVerify = b }
func (c *Config) SetPageViewportWidth(w int)            { c.PageCfg.ViewportWidth = w }
func (c *Config) SetPageSettle(d time.Duration)         { c.PageCfg.Settle = d }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the ANSI color codes for each log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TransportConfig configures the HTTP client that reaches the collection
// endpoint.
type TransportConfig struct {
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	ProxyURL           string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	DialTimeout        time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	IdleConnTimeout    time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns       int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ClientConfig converts the section into the transport package's client
// settings. Validate has already rejected malformed proxy URLs.
func (t TransportConfig) ClientConfig() *transport.ClientConfig {
	cc := transport.NewClientConfig()
	cc.InsecureSkipVerify = t.InsecureSkipVerify
	cc.RequestTimeout = t.RequestTimeout
	if t.DialTimeout > 0 {
		cc.DialTimeout = t.DialTimeout
	}
	if t.IdleConnTimeout > 0 {
		cc.IdleConnTimeout = t.IdleConnTimeout
	}
	if t.MaxIdleConns > 0 {
		cc.MaxIdleConns = t.MaxIdleConns
	}
	if t.ProxyURL != "" {
		if u, err := url.Parse(t.ProxyURL); err == nil {
			cc.ProxyURL = u
		}
	}
	return cc
}

// PageConfig holds the defaults for simulated pages.
type PageConfig struct {
	ViewportWidth int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	Visibility    string        `mapstructure:"visibility" yaml:"visibility"`
	Referrer      string        `mapstructure:"referrer" yaml:"referrer"`
	Settle        time.Duration `mapstructure:"settle" yaml:"settle"`
}

// NewDefaultConfig creates a new configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "beacon")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Transport --
	v.SetDefault("transport.insecure_skip_verify", false)
	v.SetDefault("transport.proxy_url", "")
	v.SetDefault("transport.dial_timeout", transport.DefaultDialTimeout)
	v.SetDefault("transport.idle_conn_timeout", transport.DefaultIdleConnTimeout)
	v.SetDefault("transport.max_idle_conns", transport.DefaultMaxIdleConns)
	v.SetDefault("transport.request_timeout", 0)

	// -- Page --
	v.SetDefault("page.viewport_width", 1280)
	v.SetDefault("page.visibility", env.VisibilityVisible)
	v.SetDefault("page.referrer", "")
	v.SetDefault("page.settle", "500ms")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	switch c.LoggerCfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logger.format must be 'console' or 'json', got %q", c.LoggerCfg.Format)
	}
	if c.TransportCfg.ProxyURL != "" {
		u, err := url.Parse(c.TransportCfg.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("transport.proxy_url %q is not an absolute URL", c.TransportCfg.ProxyURL)
		}
	}
	if c.TransportCfg.DialTimeout < 0 || c.TransportCfg.IdleConnTimeout < 0 || c.TransportCfg.RequestTimeout < 0 {
		return fmt.Errorf("transport timeouts must not be negative")
	}
	if c.TransportCfg.MaxIdleConns < 0 {
		return fmt.Errorf("transport.max_idle_conns must not be negative")
	}
	if c.PageCfg.ViewportWidth <= 0 {
		return fmt.Errorf("page.viewport_width must be a positive integer")
	}
	switch c.PageCfg.Visibility {
	case env.VisibilityVisible, env.VisibilityHidden, env.VisibilityPrerender:
	default:
		return fmt.Errorf("page.visibility must be one of visible, hidden, prerender, got %q", c.PageCfg.Visibility)
	}
	if c.PageCfg.Settle < 0 {
		return fmt.Errorf("page.settle must not be negative")
	}
	return nil
}
