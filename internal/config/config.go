// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for priceloom. It supports a
// three-layer override chain (defaults -> config file -> environment)
// with CLI flags applied by the command layer on top.
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Sync    SyncConfig    `toml:"sync"`
	Logging LoggingConfig `toml:"logging"`
	Display DisplayConfig `toml:"display"`

	// DataDir holds the session store and the local state cache.
	// Empty means the platform default data directory.
	DataDir string `toml:"data_dir"`
}

// ServerConfig controls how the sync backend is reached.
type ServerConfig struct {
	URL     string `toml:"url"`
	Timeout string `toml:"timeout"`
}

// SyncConfig controls the quiet intervals of the two debounced writers:
// remote publishes and local cache saves.
type SyncConfig struct {
	PublishDelay string `toml:"publish_delay"`
	SaveDelay    string `toml:"save_delay"`
}

// LoggingConfig controls log output behavior.
// log_format "auto" picks text on a terminal and JSON otherwise.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// DisplayConfig controls CLI output formatting.
type DisplayConfig struct {
	Currency string `toml:"currency"`
}

// PublishDelayDuration returns the parsed publish delay. Validation has
// already guaranteed the value parses.
func (c *Config) PublishDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.Sync.PublishDelay)
	return d
}

// SaveDelayDuration returns the parsed cache save delay.
func (c *Config) SaveDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.Sync.SaveDelay)
	return d
}

// ServerTimeoutDuration returns the parsed HTTP timeout.
func (c *Config) ServerTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Server.Timeout)
	return d
}
