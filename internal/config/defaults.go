package config

// Default values for configuration options. These are chosen so priceloom
// works against the public backend with no config file at all.
const (
	defaultServerURL     = "https://api.priceloom.dev"
	defaultServerTimeout = "10s"
	defaultPublishDelay  = "1s"
	defaultSaveDelay     = "500ms"
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"
	defaultCurrency      = "EUR"
)

// DefaultConfig returns a Config populated with all default values.
// It is both the starting point for TOML decoding (unset fields keep
// their defaults) and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:     defaultServerURL,
			Timeout: defaultServerTimeout,
		},
		Sync: SyncConfig{
			PublishDelay: defaultPublishDelay,
			SaveDelay:    defaultSaveDelay,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
		Display: DisplayConfig{
			Currency: defaultCurrency,
		},
	}
}
