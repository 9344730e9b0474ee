package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envFiles are loaded in order. Variables already present in the process
// environment are never overwritten.
var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads each env file that exists and returns the ones loaded.
func loadEnvFiles() ([]string, error) {
	var loaded []string
	for _, path := range envFiles {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// envOverrides holds DEPOTWATCH_* variables that take precedence over the file.
type envOverrides struct {
	BaseURL     string   `env:"DEPOTWATCH_SOURCE_BASE_URL"`
	Timeout     string   `env:"DEPOTWATCH_SOURCE_TIMEOUT"`
	MaxRetries  *int     `env:"DEPOTWATCH_SOURCE_MAX_RETRIES"`
	Identifiers []string `env:"DEPOTWATCH_IDENTIFIERS" envSeparator:","`
	Interval    string   `env:"DEPOTWATCH_INTERVAL"`
	Backend     string   `env:"DEPOTWATCH_STORAGE_BACKEND"`
	DataDir     string   `env:"DEPOTWATCH_DATA_DIR"`
	SQLitePath  string   `env:"DEPOTWATCH_SQLITE_PATH"`
	NATSEnabled *bool    `env:"DEPOTWATCH_NATS_ENABLED"`
	NATSURL     string   `env:"DEPOTWATCH_NATS_URL"`
	AdminAddr   string   `env:"DEPOTWATCH_ADMIN_ADDR"`
	LogLevel    string   `env:"DEPOTWATCH_LOG_LEVEL"`
	LogFormat   string   `env:"DEPOTWATCH_LOG_FORMAT"`
}

// applyEnvOverrides parses DEPOTWATCH_* variables onto cfg.
func applyEnvOverrides(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	setString(&cfg.Source.BaseURL, o.BaseURL)
	setString(&cfg.Source.Timeout, o.Timeout)
	if o.MaxRetries != nil {
		cfg.Source.MaxRetries = *o.MaxRetries
	}
	if len(o.Identifiers) > 0 {
		cfg.Tracking.Identifiers = o.Identifiers
	}
	setString(&cfg.Tracking.Interval, o.Interval)
	setString(&cfg.Storage.Backend, o.Backend)
	setString(&cfg.Storage.DataDir, o.DataDir)
	setString(&cfg.Storage.SQLitePath, o.SQLitePath)
	if o.NATSEnabled != nil {
		cfg.Notify.NATS.Enabled = *o.NATSEnabled
	}
	setString(&cfg.Notify.NATS.URL, o.NATSURL)
	setString(&cfg.Admin.Addr, o.AdminAddr)
	if o.LogLevel != "" {
		cfg.Logging.Level = LogLevel(o.LogLevel)
	}
	if o.LogFormat != "" {
		cfg.Logging.Format = LogFormat(o.LogFormat)
	}
	return nil
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
