package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"time"

	"git.home.luguber.info/inful/depotwatch/internal/foundation/errors"
	"git.home.luguber.info/inful/depotwatch/internal/foundation/normalization"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var storageBackendNormalizer = normalization.NewEnumNormalizer("storage backend", map[string]string{
	"json":   "json",
	"sqlite": "sqlite",
	"memory": "memory",
}, "")

// Validate checks a normalized, defaulted configuration.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateSource(); err != nil {
		return err
	}
	if err := cv.validateTracking(); err != nil {
		return err
	}
	if err := cv.validateStorage(); err != nil {
		return err
	}
	if err := cv.validateNotify(); err != nil {
		return err
	}
	return cv.validateAdmin()
}

func (cv *configurationValidator) validateSource() error {
	src := cv.config.Source
	u, err := url.Parse(src.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("source.base_url must be an http(s) URL", "base_url", src.BaseURL)
	}
	for field, raw := range map[string]string{
		"source.timeout":             src.Timeout,
		"source.retry_initial_delay": src.RetryInitialDelay,
		"source.retry_max_delay":     src.RetryMaxDelay,
	} {
		if err := validatePositiveDuration(field, raw); err != nil {
			return err
		}
	}
	if NormalizeRetryBackoff(string(src.RetryBackoff)) == "" {
		return invalid("source.retry_backoff must be fixed, linear or exponential", "retry_backoff", string(src.RetryBackoff))
	}
	return nil
}

func (cv *configurationValidator) validateTracking() error {
	for _, id := range cv.config.Tracking.Identifiers {
		if !identifierPattern.MatchString(id) || id == "." || id == ".." {
			return invalid("tracking.identifiers contains an invalid identifier", "identifier", id)
		}
	}
	return validatePositiveDuration("tracking.interval", cv.config.Tracking.Interval)
}

func (cv *configurationValidator) validateStorage() error {
	backend := cv.config.Storage.Backend
	if _, err := storageBackendNormalizer.NormalizeWithValidation(backend); err != nil {
		return errors.ConfigError("storage.backend must be json, sqlite or memory").
			WithCause(err).
			WithContext("backend", backend).
			Build()
	}
	return nil
}

func (cv *configurationValidator) validateNotify() error {
	nats := cv.config.Notify.NATS
	if !nats.Enabled {
		return nil
	}
	if nats.URL == "" {
		return invalid("notify.nats.url is required when NATS is enabled", "url", nats.URL)
	}
	if nats.SubjectPrefix == "" {
		return invalid("notify.nats.subject_prefix is required when NATS is enabled", "subject_prefix", "")
	}
	return nil
}

func (cv *configurationValidator) validateAdmin() error {
	admin := cv.config.Admin
	if !admin.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(admin.Addr); err != nil {
		return invalid("admin.addr must be host:port", "addr", admin.Addr)
	}
	return nil
}

func validatePositiveDuration(field, raw string) error {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return invalid(fmt.Sprintf("%s must be a positive duration", field), "value", raw)
	}
	return nil
}

func invalid(message, key, value string) error {
	return errors.ConfigError(message).WithContext(key, value).Build()
}
