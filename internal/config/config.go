// Package config loads the receiver's startup configuration.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the knobs a receiver run needs beyond the single mandatory
// sample-file argument.
type Config struct {
	SampleFile   string `yaml:"sample_file"`
	NavCacheDir  string `yaml:"nav_cache_dir"`
	PriorityFile string `yaml:"priority_file"`

	StatusPeriodMs int `yaml:"status_period_ms"`
	Bands          int `yaml:"bands"`
	Parallel       int `yaml:"parallel"`
	MaxChannels    int `yaml:"max_channels"`

	LogLevel string `yaml:"log_level"`
}

// Defaults fills unset fields with the values the original design uses.
func (c *Config) Defaults() {
	if c.NavCacheDir == "" {
		c.NavCacheDir = "."
	}
	if c.PriorityFile == "" {
		c.PriorityFile = "priority.txt"
	}
	if c.StatusPeriodMs <= 0 {
		c.StatusPeriodMs = 1000 / 100 // ~100 status updates/sec, per the source's main loop
	}
	if c.Bands <= 0 {
		c.Bands = 31
	}
	if c.Parallel <= 0 {
		c.Parallel = 2
	}
	if c.MaxChannels <= 0 {
		c.MaxChannels = 16
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads an optional YAML config file; a missing file is not an error,
// it just means every field defaults.
func Load(path string) (*Config, error) {
	c := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				c.Defaults()
				return c, nil
			}
			return nil, err
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, err
		}
	}
	c.Defaults()
	return c, nil
}
