package config

import (
	"path/filepath"
	"time"
)

const (
	defaultBaseURL           = "http://localhost:3000"
	defaultSourceTimeout     = 10 * time.Second
	defaultRetryInitialDelay = time.Second
	defaultRetryMaxDelay     = 10 * time.Second
	defaultInterval          = 8 * time.Second
	defaultBackend           = "json"
	defaultDataDir           = "./data"
	defaultSQLiteFile        = "depotwatch.db"
	defaultNATSURL           = "nats://127.0.0.1:4222"
	defaultSubjectPrefix     = "depotwatch"
	defaultAdminAddr         = "127.0.0.1:8082"
	defaultMaxConnections    = 64
)

// Default returns a configuration with every default applied. It is used
// when no configuration file exists.
func Default() *Config {
	cfg := &Config{Version: SupportedVersion}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults fills unset fields. It runs after normalization so
// canonical values drive defaults.
func applyDefaults(cfg *Config) {
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = defaultBaseURL
	}
	if cfg.Source.Timeout == "" {
		cfg.Source.Timeout = defaultSourceTimeout.String()
	}
	if cfg.Source.RetryBackoff == "" {
		cfg.Source.RetryBackoff = RetryBackoffLinear
	}
	if cfg.Source.RetryInitialDelay == "" {
		cfg.Source.RetryInitialDelay = defaultRetryInitialDelay.String()
	}
	if cfg.Source.RetryMaxDelay == "" {
		cfg.Source.RetryMaxDelay = defaultRetryMaxDelay.String()
	}
	if cfg.Source.MaxRetries < 0 {
		cfg.Source.MaxRetries = 0
	}

	if cfg.Tracking.Interval == "" {
		cfg.Tracking.Interval = defaultInterval.String()
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaultBackend
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = defaultDataDir
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(cfg.Storage.DataDir, defaultSQLiteFile)
	}

	if cfg.Notify.NATS.URL == "" {
		cfg.Notify.NATS.URL = defaultNATSURL
	}
	if cfg.Notify.NATS.SubjectPrefix == "" {
		cfg.Notify.NATS.SubjectPrefix = defaultSubjectPrefix
	}

	if cfg.Admin.Addr == "" {
		cfg.Admin.Addr = defaultAdminAddr
	}
	if cfg.Admin.MaxConnections <= 0 {
		cfg.Admin.MaxConnections = defaultMaxConnections
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}
}
