// Package config loads and validates the cache service's YAML
// configuration, mirroring the teacher's env-expanding load/save
// pattern (spec §6.3).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for urtscache.
type Config struct {
	Cache       CacheConfig       `yaml:"cache"`
	Sanitizer   SanitizerConfig   `yaml:"sanitizer"`
	Interpolator InterpolatorConfig `yaml:"interpolator"`
	Service     ServiceConfig     `yaml:"service"`
	Subscriber  SubscriberConfig  `yaml:"subscriber"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CacheConfig controls the per-channel capped collection (C1/C2).
type CacheConfig struct {
	MaxPacketsPerChannel int      `yaml:"max_packets_per_channel"`
	ChannelBlacklist     []string `yaml:"channel_blacklist"`
}

// SanitizerConfig controls packet admission (C3).
type SanitizerConfig struct {
	MaximumLatencySeconds         float64 `yaml:"maximum_latency_seconds"`
	MaximumFutureTimeSeconds      float64 `yaml:"maximum_future_time_seconds"`
	BadDataLoggingIntervalSeconds float64 `yaml:"bad_data_logging_interval_seconds"`
}

// InterpolatorConfig controls the Wiggins resampler (C4/C5).
type InterpolatorConfig struct {
	TargetSamplingRate float64 `yaml:"target_sampling_rate"`
	GapToleranceMicros int64   `yaml:"gap_tolerance_micros"`
}

// ServiceConfig controls the cache's reply-server endpoint (C6).
type ServiceConfig struct {
	Address              string        `yaml:"address"`
	SendHighWaterMark    int           `yaml:"send_high_water_mark"`
	ReceiveHighWaterMark int           `yaml:"receive_high_water_mark"`
	PollingTimeOut       time.Duration `yaml:"polling_time_out"`
	ZAPMechanism         string        `yaml:"zap_mechanism"`
	ZAPDomain            string        `yaml:"zap_domain"`
	MetricsAddress       string        `yaml:"metrics_address"`
}

// SubscriberConfig controls the ingest pipeline's pub/sub feed (C7).
type SubscriberConfig struct {
	Address          string        `yaml:"address"`
	HighWaterMark    int           `yaml:"high_water_mark"`
	ReceiveTimeOut   time.Duration `yaml:"receive_time_out"`
	QueueCapacity    int           `yaml:"queue_capacity"`
	ZAPMechanism     string        `yaml:"zap_mechanism"`
	ZAPDomain        string        `yaml:"zap_domain"`
}

// LoggingConfig controls the zerolog-backed logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns the out-of-the-box configuration.
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxPacketsPerChannel: 100,
			ChannelBlacklist:     nil,
		},
		Sanitizer: SanitizerConfig{
			MaximumLatencySeconds:         500,
			MaximumFutureTimeSeconds:      0,
			BadDataLoggingIntervalSeconds: 3600,
		},
		Interpolator: InterpolatorConfig{
			TargetSamplingRate: 100,
			GapToleranceMicros: 50000,
		},
		Service: ServiceConfig{
			Address:              "tcp://127.0.0.1:8080",
			SendHighWaterMark:    8192,
			ReceiveHighWaterMark: 8192,
			PollingTimeOut:       10 * time.Millisecond,
			ZAPMechanism:         "grasslands",
			MetricsAddress:       "127.0.0.1:9090",
		},
		Subscriber: SubscriberConfig{
			Address:        "tcp://127.0.0.1:8081",
			HighWaterMark:  8192,
			ReceiveTimeOut: 10 * time.Millisecond,
			QueueCapacity:  1024,
			ZAPMechanism:   "grasslands",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults
// when path does not exist, and expanding ${VAR}/$VAR references
// against the process environment before parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(data)))
	if err := yaml.Unmarshal(expanded, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if addr := os.Getenv("URTSCACHE_SERVICE_ADDRESS"); addr != "" {
		cfg.Service.Address = addr
	}

	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the rest of the
// service cannot safely run with.
func (c *Config) Validate() error {
	if c.Cache.MaxPacketsPerChannel < 1 {
		return fmt.Errorf("cache.max_packets_per_channel must be at least 1")
	}
	if c.Sanitizer.MaximumLatencySeconds <= 0 {
		return fmt.Errorf("sanitizer.maximum_latency_seconds must be positive")
	}
	if c.Interpolator.TargetSamplingRate <= 0 {
		return fmt.Errorf("interpolator.target_sampling_rate must be positive")
	}
	if c.Service.Address == "" {
		return fmt.Errorf("service.address is required")
	}
	if c.Subscriber.Address == "" {
		return fmt.Errorf("subscriber.address is required")
	}
	return nil
}
