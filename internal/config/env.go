package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig = "PRICELOOM_CONFIG"
	EnvServer = "PRICELOOM_SERVER"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // PRICELOOM_CONFIG: override config file path
	ServerURL  string // PRICELOOM_SERVER: override backend URL
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. This does not modify the Config; Resolve applies the fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		ServerURL:  os.Getenv(EnvServer),
	}
}
