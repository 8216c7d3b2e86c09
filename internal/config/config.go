// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsbind"
)

// EnvPrefix namespaces environment overrides, e.g. DOMCORE_LOGGER_LEVEL.
const EnvPrefix = "DOMCORE"

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Bindings() BindingsConfig
	Layout() LayoutConfig
	Script() ScriptConfig

	SetLoggerLevel(level string)
	SetWidthOverflow(policy string)
	SetScriptTimeout(d time.Duration)
}

// Config holds the entire application configuration. Sections are reached through
// the Interface getters.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	BindingsCfg BindingsConfig `mapstructure:"bindings" yaml:"bindings"`
	LayoutCfg   LayoutConfig   `mapstructure:"layout" yaml:"layout"`
	ScriptCfg   ScriptConfig   `mapstructure:"script" yaml:"script"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Bindings() BindingsConfig { return c.BindingsCfg }
func (c *Config) Layout() LayoutConfig     { return c.LayoutCfg }
func (c *Config) Script() ScriptConfig     { return c.ScriptCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetLoggerLevel(level string)       { c.LoggerCfg.Level = level }
func (c *Config) SetWidthOverflow(policy string)    { c.BindingsCfg.WidthOverflow = policy }
func (c *Config) SetScriptTimeout(d time.Duration) { c.ScriptCfg.Timeout = d }

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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BindingsConfig tunes the element bindings.
type BindingsConfig struct {
	// LayoutQueryTimeout bounds each layout round trip made by an accessor.
	LayoutQueryTimeout time.Duration `mapstructure:"layout_query_timeout" yaml:"layout_query_timeout"`
	// WidthOverflow is "saturate" or "reject".
	WidthOverflow string `mapstructure:"width_overflow" yaml:"width_overflow"`
}

// OverflowPolicy parses WidthOverflow.
func (b BindingsConfig) OverflowPolicy() (jsbind.OverflowPolicy, error) {
	return jsbind.ParseOverflowPolicy(b.WidthOverflow)
}

// RealmOptions converts the section into realm options.
func (b BindingsConfig) RealmOptions() (jsbind.Options, error) {
	policy, err := b.OverflowPolicy()
	if err != nil {
		return jsbind.Options{}, err
	}
	return jsbind.Options{
		QueryTimeout:  b.LayoutQueryTimeout,
		WidthOverflow: policy,
	}, nil
}

// LayoutConfig sizes the viewport and the layout task.
type LayoutConfig struct {
	ViewportWidth      float64 `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight     float64 `mapstructure:"viewport_height" yaml:"viewport_height"`
	DefaultImageWidth  float64 `mapstructure:"default_image_width" yaml:"default_image_width"`
	DefaultImageHeight float64 `mapstructure:"default_image_height" yaml:"default_image_height"`
	// QueueSize bounds the number of pending layout queries.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// ScriptConfig controls script execution.
type ScriptConfig struct {
	// Timeout applies when the caller's context has no deadline.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "domcore")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Bindings --
	v.SetDefault("bindings.layout_query_timeout", "250ms")
	v.SetDefault("bindings.width_overflow", "saturate")

	// -- Layout --
	v.SetDefault("layout.viewport_width", 1280)
	v.SetDefault("layout.viewport_height", 720)
	v.SetDefault("layout.default_image_width", 0)
	v.SetDefault("layout.default_image_height", 0)
	v.SetDefault("layout.queue_size", 16)

	// -- Script --
	v.SetDefault("script.timeout", "30s")
}

// BindEnv makes every key overridable through DOMCORE_ prefixed variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
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

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.BindingsCfg.LayoutQueryTimeout <= 0 {
		return fmt.Errorf("bindings.layout_query_timeout must be positive")
	}
	if _, err := c.BindingsCfg.OverflowPolicy(); err != nil {
		return fmt.Errorf("bindings.width_overflow: %w", err)
	}
	if c.LayoutCfg.ViewportWidth <= 0 || c.LayoutCfg.ViewportHeight <= 0 {
		return fmt.Errorf("layout viewport dimensions must be positive")
	}
	if c.LayoutCfg.DefaultImageWidth < 0 || c.LayoutCfg.DefaultImageHeight < 0 {
		return fmt.Errorf("layout default image dimensions must not be negative")
	}
	if c.LayoutCfg.QueueSize < 0 {
		return fmt.Errorf("layout.queue_size must not be negative")
	}
	if c.ScriptCfg.Timeout <= 0 {
		return fmt.Errorf("script.timeout must be positive")
	}
	return nil
}
