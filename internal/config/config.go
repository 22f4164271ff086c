package config

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the root configuration structure for the application
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	GC      GCConfig      `mapstructure:"gc"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig defines the internal structure of the keyspace
type StorageConfig struct {
	Shards uint `mapstructure:"shards"`
}

// LogConfig defines logging verbosity and output style
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// MetricsConfig defines the prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// Load reads the configuration from a file and overrides it with environment variables
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath(".")

	v.SetEnvPrefix("MOONKV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that the keyspace can not start with
func (c *Config) Validate() error {
	if bits.OnesCount(c.Storage.Shards) != 1 || c.Storage.Shards > 256 {
		return fmt.Errorf("storage.shards must be a power of 2 up to 256, got %d", c.Storage.Shards)
	}

	if err := c.GC.Validate(); err != nil {
		return err
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// setDefaults populates viper with fallback values if they are not provided via file or ENV
func setDefaults(v *viper.Viper) {
	// Storage
	v.SetDefault("storage.shards", 32)

	// GC
	gc := DefaultGCConfig()
	v.SetDefault("gc.enabled", gc.Enabled)
	v.SetDefault("gc.interval", gc.Interval)
	v.SetDefault("gc.samples_per_check", gc.SamplesPerCheck)
	v.SetDefault("gc.match_threshold", gc.MatchThreshold)

	// Logger
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Metrics
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9121")
}
