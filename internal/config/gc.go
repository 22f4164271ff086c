package config

import (
	"errors"
	"time"
)

// GCConfig defines the parameters for the background active expiration
type GCConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Interval        time.Duration `mapstructure:"interval"`          // how often to run the background check
	SamplesPerCheck int           `mapstructure:"samples_per_check"` // how many keys to check per shard and round
	MatchThreshold  float64       `mapstructure:"match_threshold"`   // 0.0-1.0. if expired/scanned > threshold, repeat immediately
}

// DefaultGCConfig returns the sweep settings used when nothing is configured
func DefaultGCConfig() GCConfig {
	return GCConfig{
		Enabled:         true,
		Interval:        100 * time.Millisecond,
		SamplesPerCheck: 20,
		MatchThreshold:  0.25,
	}
}

// Validate rejects settings the sweep can not run with. A disabled sweep is always valid
func (c GCConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Interval <= 0 {
		return errors.New("gc.interval must be positive")
	}
	if c.SamplesPerCheck <= 0 {
		return errors.New("gc.samples_per_check must be positive")
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return errors.New("gc.match_threshold must be within [0, 1]")
	}
	return nil
}
