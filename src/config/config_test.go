package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalYAML = `
name: vigila
host: 127.0.0.1
port: 8080
storage:
  db_type: memory
`

func TestParseAppliesDefaults(t *testing.T) {
	t.Setenv(EnvLookupAPIKey, "")
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got, want := cfg.DebounceWindow(), 400*time.Millisecond; got != want {
		t.Fatalf("DebounceWindow() = %v; want %v", got, want)
	}
	if got, want := cfg.Widget.MinQueryLength, 2; got != want {
		t.Fatalf("MinQueryLength = %d; want %d", got, want)
	}
	if got, want := cfg.Widget.MaxSuggestions, 3; got != want {
		t.Fatalf("MaxSuggestions = %d; want %d", got, want)
	}
	if got, want := cfg.Widget.DuplicateScope, DuplicateScopeAll; got != want {
		t.Fatalf("DuplicateScope = %q; want %q", got, want)
	}
	if !cfg.Widget.WithdrawAllowed() {
		t.Fatalf("WithdrawAllowed() = false; want true by default")
	}
	if got, want := cfg.WidgetIdleTimeout(), 15*time.Minute; got != want {
		t.Fatalf("WidgetIdleTimeout() = %v; want %v", got, want)
	}
	if got, want := cfg.Alerts.RatioThreshold, 123.0; got != want {
		t.Fatalf("RatioThreshold = %v; want %v", got, want)
	}
	if got, want := cfg.Lookup.BaseURL, "https://financialmodelingprep.com"; got != want {
		t.Fatalf("Lookup.BaseURL = %q; want %q", got, want)
	}
}

func TestParseReadsSecretsFromEnv(t *testing.T) {
	t.Setenv(EnvLookupAPIKey, "fmp-key")
	t.Setenv(EnvAlertToken, "tok")
	t.Setenv(EnvSMTPPassword, "pw")

	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Lookup.APIKey != "fmp-key" || cfg.Alerts.Token != "tok" || cfg.Alerts.SMTP.Password != "pw" {
		t.Fatalf("secrets = %q/%q/%q; want env values", cfg.Lookup.APIKey, cfg.Alerts.Token, cfg.Alerts.SMTP.Password)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing name", "host: h\nport: 8080\nstorage: {db_type: memory}\n", "application name"},
		{"low port", "name: v\nhost: h\nport: 80\nstorage: {db_type: memory}\n", "invalid server port"},
		{"sqlite without path", "name: v\nhost: h\nport: 8080\nstorage: {db_type: sqlite}\n", "database path"},
		{"unknown db", "name: v\nhost: h\nport: 8080\nstorage: {db_type: mongo}\n", "unsupported database type"},
		{"negative idle timeout", "name: v\nhost: h\nport: 8080\nstorage: {db_type: memory}\nwidget: {idle_timeout: -1}\n", "idle timeout"},
		{"bad scope", "name: v\nhost: h\nport: 8080\nstorage: {db_type: memory}\nwidget: {duplicate_scope: all}\n", "invalid duplicate scope"},
		{"bad run_at", "name: v\nhost: h\nport: 8080\nstorage: {db_type: memory}\nalerts: {run_at: noon}\n", "invalid alert run_at"},
		{"bad notifier", "name: v\nhost: h\nport: 8080\nstorage: {db_type: memory}\nalerts: {notifier: sms}\n", "unsupported notifier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("Parse() = nil error; want %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Parse() error = %q; want to contain %q", err, tc.want)
			}
		})
	}
}

func TestSaveRoundTripsThroughNewConfig(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cfg.Widget.MaxSuggestions = 5

	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := NewConfig(path)
	if err != nil {
		t.Fatalf("NewConfig() error = %v", err)
	}
	if got, want := loaded.Widget.MaxSuggestions, 5; got != want {
		t.Fatalf("MaxSuggestions = %d; want %d", got, want)
	}
}

func TestLoadDotEnvIgnoresMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv() error = %v; want nil", err)
	}
}

func TestLoadDotEnvSetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("VIGILA_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("VIGILA_TEST_DOTENV", "")
	os.Unsetenv("VIGILA_TEST_DOTENV")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}
	if got := os.Getenv("VIGILA_TEST_DOTENV"); got != "from-file" {
		t.Fatalf("VIGILA_TEST_DOTENV = %q; want %q", got, "from-file")
	}
}
