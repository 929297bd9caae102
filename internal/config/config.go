// Package config provides configuration management for go-whep-stats.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for a monitoring session.
type Config struct {
	// Stream
	URL          string `yaml:"url"`
	InputID      string `yaml:"input_id"`
	WHEPEndpoint string `yaml:"whep_endpoint"` // overrides URL + InputID
	Token        string `yaml:"token"`

	// Polling
	Interval time.Duration `yaml:"interval"`
	Duration time.Duration `yaml:"duration"` // 0 = forever

	// Recording
	Record      bool   `yaml:"record"` // start recording at launch
	RecordDir   string `yaml:"record_dir"`
	Delimiter   string `yaml:"delimiter"`
	Extension   string `yaml:"extension"`
	SourceLabel string `yaml:"source_label"`
	DestLabel   string `yaml:"dest_label"`

	// Reconnect policy
	Reconnect       bool          `yaml:"reconnect"`
	MaxReconnects   int           `yaml:"max_reconnects"` // 0 = unlimited
	BackoffInitial  time.Duration `yaml:"backoff_initial"`
	BackoffMax      time.Duration `yaml:"backoff_max"`
	BackoffMultiply float64       `yaml:"backoff_multiply"`

	// Observability
	MetricsAddr string   `yaml:"metrics_addr"`
	FeedOrigins []string `yaml:"feed_origins"`
	TUIEnabled  bool     `yaml:"tui"`
	Verbose     bool     `yaml:"verbose"`
	LogFormat   string   `yaml:"log_format"` // json, text
	LogLevel    string   `yaml:"log_level"`
	PionLevel   string   `yaml:"pion_log_level"`

	// Diagnostic modes
	DumpMetrics   bool `yaml:"dump_metrics"`
	Check         bool `yaml:"check"`
	SkipPreflight bool `yaml:"skip_preflight"`

	ConfigFile string `yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Polling
		Interval: time.Second,
		Duration: 0, // Forever

		// Recording
		RecordDir:   ".",
		Delimiter:   ",",
		Extension:   "csv",
		SourceLabel: "src",
		DestLabel:   "dst",

		// Reconnect policy
		Reconnect:       true,
		MaxReconnects:   0, // Unlimited
		BackoffInitial:  500 * time.Millisecond,
		BackoffMax:      10 * time.Second,
		BackoffMultiply: 1.7,

		// Observability
		MetricsAddr: "0.0.0.0:17092",
		TUIEnabled:  true,
		LogFormat:   "json",
		LogLevel:    "info",
		PionLevel:   "warn",
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys missing from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// DelimiterRune returns the export field separator.
func (c *Config) DelimiterRune() rune {
	for _, r := range c.Delimiter {
		return r
	}
	return ','
}
