// Package config loads and validates the depotwatch configuration file.
package config

import (
	"time"
)

// SupportedVersion is the only accepted value of the version field.
const SupportedVersion = "1.0"

// Config is the root of the YAML configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Source   SourceConfig   `yaml:"source"`
	Tracking TrackingConfig `yaml:"tracking"`
	Storage  StorageConfig  `yaml:"storage"`
	Notify   NotifyConfig   `yaml:"notify,omitempty"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SourceConfig describes the remote data source.
type SourceConfig struct {
	BaseURL           string           `yaml:"base_url"`
	Timeout           string           `yaml:"timeout"`
	MaxRetries        int              `yaml:"max_retries"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff"`
	RetryInitialDelay string           `yaml:"retry_initial_delay"`
	RetryMaxDelay     string           `yaml:"retry_max_delay"`
}

// TrackingConfig lists the identifiers polled by the daemon.
type TrackingConfig struct {
	Identifiers []string `yaml:"identifiers"`
	Interval    string   `yaml:"interval"`
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	Backend    string `yaml:"backend"`     // json|sqlite|memory
	DataDir    string `yaml:"data_dir"`    // json files and default sqlite location
	SQLitePath string `yaml:"sqlite_path"` // defaults to <data_dir>/depotwatch.db
}

// NotifyConfig groups change notification sinks.
type NotifyConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig configures change event publishing.
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// AdminConfig configures the daemon's admin HTTP server.
type AdminConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	MaxConnections int    `yaml:"max_connections"`
}

// LoggingConfig configures the default slog logger.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// TimeoutDuration returns the per-request timeout.
func (s SourceConfig) TimeoutDuration() time.Duration {
	return parseDuration(s.Timeout, defaultSourceTimeout)
}

// RetryInitialDelayDuration returns the first retry delay.
func (s SourceConfig) RetryInitialDelayDuration() time.Duration {
	return parseDuration(s.RetryInitialDelay, defaultRetryInitialDelay)
}

// RetryMaxDelayDuration returns the retry delay cap.
func (s SourceConfig) RetryMaxDelayDuration() time.Duration {
	return parseDuration(s.RetryMaxDelay, defaultRetryMaxDelay)
}

// IntervalDuration returns the daemon poll interval.
func (t TrackingConfig) IntervalDuration() time.Duration {
	return parseDuration(t.Interval, defaultInterval)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
