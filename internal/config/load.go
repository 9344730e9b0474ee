package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
)

// Load reads, expands, normalizes, defaults and validates a configuration file.
//
// Order of precedence, lowest first: file values, ${VAR} references inside the
// file, DEPOTWATCH_* environment overrides, defaults for anything still unset.
func Load(configPath string) (*Config, error) {
	if loaded, err := loadEnvFiles(); err != nil {
		slog.Warn("could not load env file", slog.String("error", err.Error()))
	} else if len(loaded) > 0 {
		slog.Debug("loaded env files", slog.Any("files", loaded))
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.ConfigError("failed to read configuration file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		if ce, ok := errors.AsClassified(err); ok {
			return nil, ce.WithContext("path", configPath)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse builds a configuration from YAML content.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.ConfigError("failed to parse configuration").WithCause(err).Build()
	}

	if cfg.Version != SupportedVersion {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported configuration version %q (expected %s)", cfg.Version, SupportedVersion)).Build()
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, errors.ConfigError("invalid environment override").WithCause(err).Build()
	}

	normalize(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configPath when it exists and otherwise returns the
// defaults with environment overrides applied.
func LoadOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	if _, err := loadEnvFiles(); err != nil {
		slog.Warn("could not load env file", slog.String("error", err.Error()))
	}
	cfg := &Config{Version: SupportedVersion}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, errors.ConfigError("invalid environment override").WithCause(err).Build()
	}
	normalize(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// normalize case-folds enumerations and trims user input.
func normalize(cfg *Config) {
	cfg.Source.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Source.BaseURL), "/")
	if mode := NormalizeRetryBackoff(string(cfg.Source.RetryBackoff)); mode != "" {
		cfg.Source.RetryBackoff = mode
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Logging.Level != "" {
		cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	}
	if cfg.Logging.Format != "" {
		cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	}

	ids := make([]string, 0, len(cfg.Tracking.Identifiers))
	seen := make(map[string]struct{}, len(cfg.Tracking.Identifiers))
	for _, id := range cfg.Tracking.Identifiers {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	cfg.Tracking.Identifiers = ids
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		Version: SupportedVersion,
		Source: SourceConfig{
			BaseURL:           defaultBaseURL,
			Timeout:           "10s",
			MaxRetries:        2,
			RetryBackoff:      RetryBackoffLinear,
			RetryInitialDelay: "1s",
			RetryMaxDelay:     "10s",
		},
		Tracking: TrackingConfig{
			Identifiers: []string{"730"},
			Interval:    "8s",
		},
		Storage: StorageConfig{
			Backend: defaultBackend,
			DataDir: defaultDataDir,
		},
		Notify: NotifyConfig{
			NATS: NATSConfig{
				Enabled:       false,
				URL:           "${NATS_URL}",
				SubjectPrefix: defaultSubjectPrefix,
			},
		},
		Admin: AdminConfig{
			Enabled:        true,
			Addr:           defaultAdminAddr,
			MaxConnections: defaultMaxConnections,
		},
		Logging: LoggingConfig{
			Level:  LogLevelInfo,
			Format: LogFormatText,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return errors.InternalError("failed to encode example configuration").WithCause(err).Build()
	}
	header := "# depotwatch configuration\n# ${VAR} references are expanded from the environment; DEPOTWATCH_* variables override file values.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return errors.ConfigError("failed to write configuration file").
			WithCause(err).
			WithContext("path", configPath).
			Build()
	}
	return nil
}
