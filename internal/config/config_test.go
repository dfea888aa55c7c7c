package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	content := `{
		"port": 9090,
		"log_level": "debug",
		"provider": "anthropic",
		"model": "claude-haiku-4-5",
		"retriever": "watchpage",
		"use_browser": true,
		"gateway_timeout": "45s",
		"fetch_timeout": 10,
		"caption_languages": ["de", "en"],
		"cache_size": 16,
		"rate_limit_enabled": false,
		"storage": {"driver": "sqlite", "dsn": "/tmp/history.db"}
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "claude-haiku-4-5", cfg.Model)
	assert.Equal(t, RetrieverWatchPage, cfg.Retriever)
	assert.True(t, cfg.UseBrowser)
	assert.Equal(t, 45*time.Second, cfg.Timeout())
	assert.Equal(t, Duration(10*time.Second), cfg.FetchTimeout)
	assert.Equal(t, []string{"de", "en"}, cfg.Languages)
	assert.Equal(t, 16, cfg.CacheSize)
	assert.False(t, cfg.RateLimited())
	assert.Equal(t, StorageConfig{Driver: DriverSQLite, DSN: "/tmp/history.db"}, cfg.Storage)
}

func TestLoadConfig_SecretsIgnoredInFile(t *testing.T) {
	content := `{"GeminiAPIKey": "leaked", "SessionSecret": "leaked"}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	assert.Empty(t, cfg.GeminiAPIKey)
	assert.Empty(t, cfg.SessionSecret)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{ invalid json }`), 0644))

	_, err := LoadConfig(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"string", `"2m"`, 2 * time.Minute, false},
		{"seconds", `30`, 30 * time.Second, false},
		{"fractional seconds", `1.5`, 1500 * time.Millisecond, false},
		{"bad string", `"soon"`, 0, true},
		{"bad type", `true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, time.Duration(d))
		})
	}

	out, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	empty := Config{}
	assert.NoError(t, empty.Validate(), "empty config means all defaults")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative port", func(c *Config) { c.Port = -1 }, "'port'"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "'port'"},
		{"negative ttl", func(c *Config) { c.SessionTTLHours = -1 }, "'session_ttl_hours'"},
		{"negative timeout", func(c *Config) { c.GatewayTimeout = -1 }, "'gateway_timeout'"},
		{"negative fetch timeout", func(c *Config) { c.FetchTimeout = -1 }, "'fetch_timeout'"},
		{"unknown provider", func(c *Config) { c.Provider = "openai" }, "unknown provider"},
		{"unknown retriever", func(c *Config) { c.Retriever = "api" }, "unknown retriever"},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "mongo" }, "unknown storage driver"},
		{"redis without dsn", func(c *Config) { c.Storage = StorageConfig{Driver: DriverRedis} }, "needs a dsn"},
		{"postgres without dsn", func(c *Config) { c.Storage = StorageConfig{Driver: DriverPostgres} }, "needs a dsn"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := &Config{
		Port:     9000,
		Provider: ProviderGemini,
		Storage:  StorageConfig{Driver: DriverRedis, DSN: "redis://localhost:6379/0"},
	}

	result := cfg.MergeWithDefaults(Default())

	// Config values should be preserved
	assert.Equal(t, 9000, result.Port)
	assert.Equal(t, ProviderGemini, result.Provider)
	assert.Equal(t, "redis://localhost:6379/0", result.Storage.DSN)

	// Defaults should fill in empty values
	assert.Equal(t, "info", result.LogLevel)
	assert.Equal(t, RetrieverPlaceholder, result.Retriever)
	assert.Equal(t, 60*time.Second, result.Timeout())
	assert.Equal(t, 128, result.CacheSize)
	assert.Equal(t, 24*30, result.SessionTTLHours)
	assert.True(t, result.RateLimited())

	// Original must be untouched
	assert.Empty(t, cfg.LogLevel)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := &Config{Port: 1234}
	result := cfg.MergeWithDefaults(Config{})
	assert.Equal(t, 1234, result.Port)
	assert.Empty(t, result.Provider)
	assert.True(t, result.RateLimited(), "unset rate limit flag means enabled")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvGeminiAPIKey:    "gemini-key",
		EnvAnthropicAPIKey: "anthropic-key",
		EnvSessionSecret:   "0123456789abcdef",
		EnvDatabaseURL:     "postgres://u:p@localhost/tubedigest",
		EnvRedisURL:        "redis://localhost:6379/1",
	}
	getenv := func(k string) string { return env[k] }

	t.Run("postgres", func(t *testing.T) {
		cfg := Config{Provider: ProviderGemini, Storage: StorageConfig{Driver: DriverPostgres}}
		cfg.ApplyEnv(getenv)
		assert.Equal(t, "postgres://u:p@localhost/tubedigest", cfg.Storage.DSN)
		assert.Equal(t, "gemini-key", cfg.APIKey())
		assert.Equal(t, "0123456789abcdef", cfg.SessionSecret)
	})

	t.Run("redis", func(t *testing.T) {
		cfg := Config{Provider: ProviderAnthropic, Storage: StorageConfig{Driver: DriverRedis}}
		cfg.ApplyEnv(getenv)
		assert.Equal(t, "redis://localhost:6379/1", cfg.Storage.DSN)
		assert.Equal(t, "anthropic-key", cfg.APIKey())
	})

	t.Run("sqlite default path", func(t *testing.T) {
		cfg := Config{Provider: ProviderPlaceholder, Storage: StorageConfig{Driver: DriverSQLite}}
		cfg.ApplyEnv(getenv)
		assert.Equal(t, "tubedigest.db", cfg.Storage.DSN)
		assert.Empty(t, cfg.APIKey())
	})

	t.Run("explicit dsn wins", func(t *testing.T) {
		cfg := Config{Storage: StorageConfig{Driver: DriverRedis, DSN: "redis://other:6379/0"}}
		cfg.ApplyEnv(getenv)
		assert.Equal(t, "redis://other:6379/0", cfg.Storage.DSN)
	})
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvSessionSecret, "")
	t.Setenv(EnvRedisURL, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Port, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{"storage": {"driver": "redis"}}`), 0644))
	_, err = Load(tmpFile)
	require.Error(t, err, "redis without REDIS_URL must fail validation")

	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	cfg, err = Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Storage.DSN)
}
