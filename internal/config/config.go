// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Providers and retrievers
const (
	ProviderGemini      = "gemini"
	ProviderAnthropic   = "anthropic"
	ProviderPlaceholder = "placeholder"

	RetrieverPlaceholder = "placeholder"
	RetrieverWatchPage   = "watchpage"
)

// Environment variables holding secrets and connection strings.
const (
	EnvGeminiAPIKey    = "GEMINI_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvSessionSecret   = "SESSION_SECRET"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvRedisURL        = "REDIS_URL"
)

// Duration is a time.Duration that reads "90s" style strings from JSON.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// StorageConfig selects the history backend.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"` // memory, sqlite, redis or postgres
	DSN    string `json:"dsn,omitempty"`    // file path or connection URL
}

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use Default. Secrets come from the environment.
type Config struct {
	// Server
	Port             int   `json:"port,omitempty"`
	RateLimitEnabled *bool `json:"rate_limit_enabled,omitempty"`
	SessionTTLHours  int   `json:"session_ttl_hours,omitempty"`

	// Logging
	LogLevel       string `json:"log_level,omitempty"`
	LogDevelopment bool   `json:"log_development,omitempty"`

	// Summarization
	Provider       string   `json:"provider,omitempty"`  // gemini, anthropic or placeholder
	Model          string   `json:"model,omitempty"`     // overrides the provider's standard model
	Retriever      string   `json:"retriever,omitempty"` // placeholder or watchpage
	UseBrowser     bool     `json:"use_browser,omitempty"`
	FetchTimeout   Duration `json:"fetch_timeout,omitempty"`     // watch page and caption requests
	Languages      []string `json:"caption_languages,omitempty"` // preferred caption languages
	GatewayTimeout Duration `json:"gateway_timeout,omitempty"`
	CacheSize      int      `json:"cache_size,omitempty"` // negative disables the result cache

	Storage StorageConfig `json:"storage,omitempty"`

	// Secrets, never read from the file
	GeminiAPIKey    string `json:"-"`
	AnthropicAPIKey string `json:"-"`
	SessionSecret   string `json:"-"`
}

// Default returns the built-in configuration. It runs fully offline.
func Default() Config {
	enabled := true
	return Config{
		Port:             8080,
		RateLimitEnabled: &enabled,
		SessionTTLHours:  24 * 30,
		LogLevel:         "info",
		Provider:         ProviderPlaceholder,
		Retriever:        RetrieverPlaceholder,
		GatewayTimeout:   Duration(60 * time.Second),
		CacheSize:        128,
		Storage:          StorageConfig{Driver: DriverMemory},
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Load reads path (optional), fills defaults, applies the environment and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	merged := cfg.MergeWithDefaults(Default())
	merged.ApplyEnv(os.Getenv)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ApplyEnv fills secrets and empty connection strings from getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	c.GeminiAPIKey = getenv(EnvGeminiAPIKey)
	c.AnthropicAPIKey = getenv(EnvAnthropicAPIKey)
	c.SessionSecret = getenv(EnvSessionSecret)

	if c.Storage.DSN == "" {
		switch c.Storage.Driver {
		case DriverPostgres:
			c.Storage.DSN = getenv(EnvDatabaseURL)
		case DriverRedis:
			c.Storage.DSN = getenv(EnvRedisURL)
		case DriverSQLite:
			c.Storage.DSN = "tubedigest.db"
		}
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.SessionTTLHours < 0 {
		return fmt.Errorf("config error: 'session_ttl_hours' must be non-negative")
	}
	if c.GatewayTimeout < 0 {
		return fmt.Errorf("config error: 'gateway_timeout' must be non-negative")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("config error: 'fetch_timeout' must be non-negative")
	}

	switch c.Provider {
	case "", ProviderGemini, ProviderAnthropic, ProviderPlaceholder:
	default:
		return fmt.Errorf("config error: unknown provider %q", c.Provider)
	}

	switch c.Retriever {
	case "", RetrieverPlaceholder, RetrieverWatchPage:
	default:
		return fmt.Errorf("config error: unknown retriever %q", c.Retriever)
	}

	switch c.Storage.Driver {
	case "", DriverMemory, DriverSQLite:
	case DriverRedis, DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("config error: storage driver %q needs a dsn (or %s/%s)", c.Storage.Driver, EnvRedisURL, EnvDatabaseURL)
		}
	default:
		return fmt.Errorf("config error: unknown storage driver %q", c.Storage.Driver)
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config error: unknown log_level %q", c.LogLevel)
	}
	return nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	default:
		return ""
	}
}

// Timeout returns the gateway timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.GatewayTimeout)
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.LogLevel == "" {
		result.LogLevel = defaults.LogLevel
	}
	if result.Provider == "" {
		result.Provider = defaults.Provider
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.Retriever == "" {
		result.Retriever = defaults.Retriever
	}
	if result.Storage.Driver == "" {
		result.Storage.Driver = defaults.Storage.Driver
	}
	if result.Storage.DSN == "" && result.Storage.Driver == defaults.Storage.Driver {
		result.Storage.DSN = defaults.Storage.DSN
	}

	// Numeric fields: use default if zero
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.SessionTTLHours == 0 {
		result.SessionTTLHours = defaults.SessionTTLHours
	}
	if result.GatewayTimeout == 0 {
		result.GatewayTimeout = defaults.GatewayTimeout
	}
	if result.CacheSize == 0 {
		result.CacheSize = defaults.CacheSize
	}

	if result.RateLimitEnabled == nil {
		result.RateLimitEnabled = defaults.RateLimitEnabled
	}

	// Plain bools cannot distinguish unset from false; the file value wins.
	return result
}

// RateLimited reports whether rate limiting is on. Unset means on.
func (c *Config) RateLimited() bool {
	return c.RateLimitEnabled == nil || *c.RateLimitEnabled
}
