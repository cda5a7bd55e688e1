package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/text/currency"
)

// Validation bounds for the debounce intervals. A zero delay defeats
// coalescing; a very long one makes the CLI feel stuck.
const (
	minDelay = 10 * time.Millisecond
	maxDelay = 5 * time.Minute
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"auto": true, "text": true, "json": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)
	errs = append(errs, validateDisplay(&cfg.Display)...)

	return errors.Join(errs...)
}

func validateServer(sc *ServerConfig) []error {
	var errs []error

	if sc.URL != "" {
		u, err := url.Parse(sc.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("server url: %q is not an absolute URL", sc.URL))
		}
	}

	if _, err := time.ParseDuration(sc.Timeout); err != nil {
		errs = append(errs, fmt.Errorf("server timeout: %q is not a duration", sc.Timeout))
	}

	return errs
}

func validateSync(sc *SyncConfig) []error {
	var errs []error

	errs = append(errs, validateDelay("publish_delay", sc.PublishDelay)...)
	errs = append(errs, validateDelay("save_delay", sc.SaveDelay)...)

	return errs
}

func validateDelay(name, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: %q is not a duration", name, value)}
	}

	if d < minDelay || d > maxDelay {
		return []error{fmt.Errorf("%s: %s outside allowed range [%s, %s]", name, d, minDelay, maxDelay)}
	}

	return nil
}

func validateLogging(lc *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[lc.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: %q is not one of debug, info, warn, error", lc.LogLevel))
	}

	if !validLogFormats[lc.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: %q is not one of auto, text, json", lc.LogFormat))
	}

	return errs
}

func validateDisplay(dc *DisplayConfig) []error {
	if _, err := currency.ParseISO(dc.Currency); err != nil {
		return []error{fmt.Errorf("currency: %q is not an ISO 4217 code", dc.Currency)}
	}

	return nil
}
