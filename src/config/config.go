package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"vigila/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding secrets from the YAML file.
const (
	EnvLookupAPIKey = "FMP_API_KEY"
	EnvAlertToken   = "ALERT_TOKEN"
	EnvSMTPPassword = "SMTP_PASSWORD"
	EnvDBConnection = "DB_CONNECTION_STRING"
)

// Duplicate checking scopes for the selection widget.
const (
	DuplicateScopeAll   = "session_and_saved"
	DuplicateScopeLocal = "session_only"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from raw YAML, applying defaults and environment secrets.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// LoadDotEnv loads a .env file into the process environment when present.
// Existing variables win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.Schema == "" {
		c.Storage.Schema = "vigila"
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = 10
	}
	if c.Network.ConcurrentRequests == 0 {
		c.Network.ConcurrentRequests = 4
	}
	if c.Lookup.BaseURL == "" {
		c.Lookup.BaseURL = "https://financialmodelingprep.com"
	}
	if c.Lookup.RequestTimeout == 0 {
		c.Lookup.RequestTimeout = 10
	}
	if c.Widget.DebounceMs == 0 {
		c.Widget.DebounceMs = 400
	}
	if c.Widget.MinQueryLength == 0 {
		c.Widget.MinQueryLength = 2
	}
	if c.Widget.MaxSuggestions == 0 {
		c.Widget.MaxSuggestions = 3
	}
	if c.Widget.DuplicateScope == "" {
		c.Widget.DuplicateScope = DuplicateScopeAll
	}
	if c.Widget.IdleTimeout == 0 {
		c.Widget.IdleTimeout = 900
	}
	if c.Alerts.RatioThreshold == 0 {
		c.Alerts.RatioThreshold = 123
	}
	if c.Alerts.RunAt == "" {
		c.Alerts.RunAt = "16:30"
	}
	if c.Alerts.Exchange == "" {
		c.Alerts.Exchange = "xnys"
	}
	if c.Alerts.Notifier == "" {
		c.Alerts.Notifier = "smtp"
	}
	if c.Alerts.SMTP.Port == 0 {
		c.Alerts.SMTP.Port = 465
	}
	if c.Alerts.SMTP.Team == "" {
		c.Alerts.SMTP.Team = "Vigila Team"
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLookupAPIKey); v != "" {
		c.Lookup.APIKey = v
	}
	if v := os.Getenv(EnvAlertToken); v != "" {
		c.Alerts.Token = v
	}
	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.Alerts.SMTP.Password = v
	}
	if v := os.Getenv(EnvDBConnection); v != "" {
		c.Storage.DBConnectionString = v
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}

	// Validate Storage configuration
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}

	// Validate Network configuration
	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Network.ConcurrentRequests <= 0 {
		return fmt.Errorf("concurrent requests must be greater than 0")
	}

	// Validate Widget configuration
	if c.Widget.DebounceMs < 0 {
		return fmt.Errorf("debounce window cannot be negative")
	}
	if c.Widget.MinQueryLength < 1 {
		return fmt.Errorf("minimum query length must be at least 1")
	}
	if c.Widget.MaxSuggestions < 1 {
		return fmt.Errorf("max suggestions must be at least 1")
	}
	if c.Widget.IdleTimeout < 0 {
		return fmt.Errorf("widget idle timeout cannot be negative")
	}
	if c.Widget.DuplicateScope != DuplicateScopeAll && c.Widget.DuplicateScope != DuplicateScopeLocal {
		return fmt.Errorf("invalid duplicate scope '%s' (expected %s or %s)",
			c.Widget.DuplicateScope, DuplicateScopeAll, DuplicateScopeLocal)
	}

	// Validate Alerts configuration
	if c.Alerts.RatioThreshold <= 0 {
		return fmt.Errorf("alert ratio threshold must be greater than 0")
	}
	if _, err := time.Parse("15:04", c.Alerts.RunAt); err != nil {
		return fmt.Errorf("invalid alert run_at '%s': expected HH:MM", c.Alerts.RunAt)
	}
	switch strings.ToLower(c.Alerts.Notifier) {
	case "smtp", "ntfy", "none":
	default:
		return fmt.Errorf("unsupported notifier: %s", c.Alerts.Notifier)
	}
	if c.Alerts.Enabled && c.Alerts.Notifier == "ntfy" && c.Alerts.Ntfy.Endpoint == "" {
		return fmt.Errorf("ntfy endpoint cannot be empty when alerts use ntfy")
	}

	return nil
}

// -----------------------------------------------------------------------------

// WidgetIdleTimeout returns how long an untouched widget stays open.
func (c *Config) WidgetIdleTimeout() time.Duration {
	return time.Duration(c.Widget.IdleTimeout) * time.Second
}

// DebounceWindow returns the widget quiescence window.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Widget.DebounceMs) * time.Millisecond
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
