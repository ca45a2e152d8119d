// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.scout/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider selection, model name, agent loop limits
//   - Server: listen address, CORS origins, rate limiting
//   - Tools: SearXNG search endpoint, web fetch limits
//   - Observability: optional OTLP trace export
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
//
// Validation happens inside Load (fail-fast): a missing provider credential
// aborts startup with a clear diagnostic instead of a deferred per-request error.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxTurns indicates the agent turn limit is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidAddr indicates the server listen address is invalid.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidSearchURL indicates the SearXNG base URL is invalid.
	ErrInvalidSearchURL = errors.New("invalid search base URL")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

// History window bounds. The window caps how many stored messages are
// replayed to the model per turn, not how many the store keeps.
const (
	DefaultHistoryWindow = 6
	MaxHistoryWindow     = 200
)

// SearchConfig holds SearXNG web search settings.
type SearchConfig struct {
	BaseURL    string `mapstructure:"base_url" json:"base_url"`
	MaxResults int    `mapstructure:"max_results" json:"max_results"`
}

// FetchConfig holds web fetch limits for the URL tools.
type FetchConfig struct {
	TimeoutMs        int   `mapstructure:"timeout_ms" json:"timeout_ms"`
	MaxResponseBytes int64 `mapstructure:"max_response_bytes" json:"max_response_bytes"`
	Parallelism      int   `mapstructure:"parallelism" json:"parallelism"`
}

// OtelConfig holds optional OTLP trace export settings.
// Tracing is disabled unless Endpoint is set.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level" json:"level"` // "debug", "info", "warn", "error"
	JSON  bool   `mapstructure:"json" json:"json"`
	File  string `mapstructure:"file" json:"file"` // empty = stderr
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider  string `mapstructure:"provider" json:"provider"`     // "gemini" (default), "ollama", "openai"
	ModelName string `mapstructure:"model_name" json:"model_name"` // Model identifier (e.g., "gemini-2.5-flash", "llama3.3", "gpt-4o")

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Agent configuration
	SystemPrompt  string `mapstructure:"system_prompt" json:"system_prompt"`
	MaxTurns      int    `mapstructure:"max_turns" json:"max_turns"`
	HistoryWindow int    `mapstructure:"history_window" json:"history_window"`

	// Server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For headers (set true behind reverse proxy)

	// Tool configuration
	Search SearchConfig `mapstructure:"search" json:"search"`
	Fetch  FetchConfig  `mapstructure:"fetch" json:"fetch"`

	// Observability configuration
	Otel OtelConfig `mapstructure:"otel" json:"otel"`

	// Logging configuration
	Log LogConfig `mapstructure:"log" json:"log"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.scout/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".scout")

	// Ensure directory exists (0750 keeps config private to the user)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// CRITICAL: Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("max_turns", 5)
	viper.SetDefault("history_window", DefaultHistoryWindow)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Server defaults
	viper.SetDefault("addr", ":8000")
	viper.SetDefault("cors_origins", []string{"http://localhost:8000"})
	viper.SetDefault("rate_burst", 60)
	viper.SetDefault("trust_proxy", false)

	// Search defaults
	viper.SetDefault("search.base_url", "http://localhost:8888")
	viper.SetDefault("search.max_results", 5)

	// Fetch defaults
	viper.SetDefault("fetch.timeout_ms", 10000)
	viper.SetDefault("fetch.max_response_bytes", 5*1024*1024)
	viper.SetDefault("fetch.parallelism", 2)

	// Otel defaults (endpoint empty = tracing disabled)
	viper.SetDefault("otel.service_name", "scout")
	viper.SetDefault("otel.environment", "dev")

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)
}

// bindEnvVariables binds environment variable overrides explicitly.
//
// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
// NOTE: OPENAI_API_KEY is read directly by the Genkit OpenAI plugin.
// Validation checks their presence based on the selected provider in cfg.Validate().
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "SCOUT_PROVIDER")
	mustBind("model_name", "SCOUT_MODEL_NAME")
	mustBind("ollama_host", "SCOUT_OLLAMA_HOST")
	mustBind("addr", "SCOUT_ADDR")
	mustBind("cors_origins", "SCOUT_CORS_ORIGINS")
	mustBind("rate_burst", "SCOUT_RATE_BURST")
	mustBind("trust_proxy", "SCOUT_TRUST_PROXY")
	mustBind("search.base_url", "SCOUT_SEARCH_URL")
	mustBind("otel.endpoint", "SCOUT_OTLP_ENDPOINT")
	mustBind("log.level", "SCOUT_LOG_LEVEL")
	mustBind("log.file", "SCOUT_LOG_FILE")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid accidental substring matches against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer secrets show the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// The Config struct itself carries no secrets today (API keys live in
// provider-native env vars), but keys printed from the environment in
// diagnostics go through maskSecret.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	data, err := json.Marshal(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
