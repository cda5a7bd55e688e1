package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
data_dir = "/tmp/priceloom-test"

[server]
url = "https://sync.example.com"
timeout = "30s"

[sync]
publish_delay = "2s"
save_delay = "250ms"

[logging]
log_level = "debug"
log_format = "json"

[display]
currency = "USD"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.URL != "https://sync.example.com" {
		t.Errorf("server url = %q", cfg.Server.URL)
	}
	if got := cfg.PublishDelayDuration(); got != 2*time.Second {
		t.Errorf("publish delay = %s, want 2s", got)
	}
	if got := cfg.SaveDelayDuration(); got != 250*time.Millisecond {
		t.Errorf("save delay = %s, want 250ms", got)
	}
	if cfg.Logging.LogLevel != "debug" || cfg.Logging.LogFormat != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Display.Currency != "USD" {
		t.Errorf("currency = %q", cfg.Display.Currency)
	}
	if cfg.DataDir != "/tmp/priceloom-test" {
		t.Errorf("data_dir = %q", cfg.DataDir)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[logging]
log_level = "warn"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.LogLevel != "warn" {
		t.Errorf("log_level = %q, want warn", cfg.Logging.LogLevel)
	}
	if cfg.Server.URL != defaultServerURL {
		t.Errorf("server url = %q, want default", cfg.Server.URL)
	}
	if cfg.Sync.PublishDelay != defaultPublishDelay {
		t.Errorf("publish_delay = %q, want default", cfg.Sync.PublishDelay)
	}
}

func TestLoadUnknownKeySuggests(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[sync]
publsh_delay = "2s"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for the misspelled key")
	}
	if !strings.Contains(err.Error(), "publish_delay") {
		t.Errorf("error %q does not suggest publish_delay", err)
	}
}

func TestLoadValidationErrorsAccumulate(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[server]
url = "not a url"
timeout = "soon"

[logging]
log_level = "loud"

[display]
currency = "BITCOIN"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	for _, want := range []string{"server url", "server timeout", "log_level", "currency"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestDelayRange(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[sync]
save_delay = "1ms"
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected an out-of-range error for save_delay")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}

	if cfg.Server.URL != defaultServerURL {
		t.Errorf("server url = %q, want default", cfg.Server.URL)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestResolveEnvOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
[server]
url = "https://from-file.example.com"
`)

	cfg, err := Resolve(EnvOverrides{
		ConfigPath: path,
		ServerURL:  "https://from-env.example.com",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if cfg.Server.URL != "https://from-env.example.com" {
		t.Errorf("server url = %q, want env override to win", cfg.Server.URL)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir not defaulted")
	}
}

func TestClosestMatchStaysInSection(t *testing.T) {
	t.Parallel()

	if got := closestMatch("sync.publsh_delay", knownKeysList); got != "sync.publish_delay" {
		t.Errorf("closestMatch = %q, want sync.publish_delay", got)
	}
	if got := closestMatch("zzz.qqq", knownKeysList); got != "" {
		t.Errorf("closestMatch = %q, want no suggestion", got)
	}
}

func TestLevenshtein(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"abc", "", 3},
		{"abc", "abc", 0},
		{"kitten", "sitting", 3},
		{"log_level", "log_leveL", 1},
	}

	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
