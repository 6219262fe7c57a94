// Package config loads cookbook configuration from defaults, an optional YAML
// file and COOKBOOK_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Fixer   FixerConfig   `yaml:"fixer"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	// Addr is the listen address
	// Default: ":8080"
	Addr string `yaml:"addr"`

	// RateLimit is the sustained number of generate requests per second
	// Set to 0 to disable rate limiting
	// Default: 0.5, Range: 0-100
	RateLimit float64 `yaml:"rate_limit"`

	// RateBurst is the number of generate requests allowed in a burst
	// Default: 3, Range: 1-100
	RateBurst int `yaml:"rate_burst"`
}

// LLMConfig selects and tunes the code generator
type LLMConfig struct {
	// Provider is "anthropic" or "gemini"
	// Default: "anthropic"
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint (proxies, tests)
	BaseURL string `yaml:"base_url"`

	// MaxTokens caps the response length
	// Default: 16000, Range: 1024-64000
	MaxTokens int `yaml:"max_tokens"`

	// MaxConcurrentCalls limits parallel LLM requests across runs
	// Default: 3, Range: 1-32
	MaxConcurrentCalls int `yaml:"max_concurrent_calls"`
}

// FixerConfig configures the optional repair service.
// The API key is only read from COOKBOOK_FIXER_API_KEY.
type FixerConfig struct {
	// URL of the repair service; empty disables repair
	URL string `yaml:"url"`

	// TimeoutSeconds bounds one repair request
	// Default: 60, Range: 1-600
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// Enabled reports whether a repair service is configured
func (c FixerConfig) Enabled() bool {
	return c.URL != ""
}

// SandboxConfig selects the sandbox provider
type SandboxConfig struct {
	// Provider is "docker" or "memory"
	// Default: "docker"
	Provider string `yaml:"provider"`

	// Template names the sandbox template
	// Default: "cookbook-vite"
	Template string `yaml:"template"`

	// Image is the container image used for the template (docker only)
	// Default: "node:20-bookworm"
	Image string `yaml:"image"`

	// Port is the dev server port inside the sandbox
	// Default: 5173, Range: 1-65535
	Port int `yaml:"port"`

	// WorkDir is the project directory inside the sandbox
	// Default: "/app"
	WorkDir string `yaml:"work_dir"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is a zap level name (debug, info, warn, error)
	// Default: "info"
	Level string `yaml:"level"`

	// Development switches to the human-readable console encoder
	// Default: false
	Development bool `yaml:"development"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 0.5,
			RateBurst: 3,
		},
		LLM: LLMConfig{
			Provider:           ProviderAnthropic,
			MaxTokens:          16000,
			MaxConcurrentCalls: 3,
		},
		Fixer: FixerConfig{
			TimeoutSeconds: 60,
		},
		Sandbox: SandboxConfig{
			Provider: SandboxDocker,
			Template: "cookbook-vite",
			Image:    "node:20-bookworm",
			Port:     5173,
			WorkDir:  "/app",
		},
		History: DefaultHistoryConfig(),
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Provider names
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	SandboxDocker     = "docker"
	SandboxMemory     = "memory"
)

// Load builds a configuration from defaults, the YAML file at path (if any)
// and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil // empty file
		}
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays COOKBOOK_* environment variables onto c
//
// Environment variables:
//   - COOKBOOK_ADDR, COOKBOOK_RATE_LIMIT, COOKBOOK_RATE_BURST
//   - COOKBOOK_LLM_PROVIDER, COOKBOOK_MODEL, COOKBOOK_LLM_BASE_URL, COOKBOOK_MAX_TOKENS,
//     COOKBOOK_MAX_CONCURRENT_CALLS
//   - COOKBOOK_FIXER_URL, COOKBOOK_FIXER_TIMEOUT_SECONDS
//   - COOKBOOK_SANDBOX_PROVIDER, COOKBOOK_SANDBOX_TEMPLATE, COOKBOOK_SANDBOX_IMAGE,
//     COOKBOOK_SANDBOX_PORT, COOKBOOK_SANDBOX_WORKDIR
//   - COOKBOOK_HISTORY_DSN, COOKBOOK_HISTORY_RETENTION_HOURS, COOKBOOK_HISTORY_KEEP
//   - COOKBOOK_LOG_LEVEL, COOKBOOK_LOG_DEVELOPMENT
func (c *Config) ApplyEnv() error {
	strs := []struct {
		key  string
		dest *string
	}{
		{"COOKBOOK_ADDR", &c.Server.Addr},
		{"COOKBOOK_LLM_PROVIDER", &c.LLM.Provider},
		{"COOKBOOK_MODEL", &c.LLM.Model},
		{"COOKBOOK_LLM_BASE_URL", &c.LLM.BaseURL},
		{"COOKBOOK_FIXER_URL", &c.Fixer.URL},
		{"COOKBOOK_SANDBOX_PROVIDER", &c.Sandbox.Provider},
		{"COOKBOOK_SANDBOX_TEMPLATE", &c.Sandbox.Template},
		{"COOKBOOK_SANDBOX_IMAGE", &c.Sandbox.Image},
		{"COOKBOOK_SANDBOX_WORKDIR", &c.Sandbox.WorkDir},
		{"COOKBOOK_HISTORY_DSN", &c.History.DSN},
		{"COOKBOOK_LOG_LEVEL", &c.Log.Level},
	}
	for _, s := range strs {
		parseEnvString(s.key, s.dest)
	}

	ints := []struct {
		key  string
		dest *int
	}{
		{"COOKBOOK_RATE_BURST", &c.Server.RateBurst},
		{"COOKBOOK_MAX_TOKENS", &c.LLM.MaxTokens},
		{"COOKBOOK_MAX_CONCURRENT_CALLS", &c.LLM.MaxConcurrentCalls},
		{"COOKBOOK_FIXER_TIMEOUT_SECONDS", &c.Fixer.TimeoutSeconds},
		{"COOKBOOK_SANDBOX_PORT", &c.Sandbox.Port},
		{"COOKBOOK_HISTORY_RETENTION_HOURS", &c.History.RetentionHours},
		{"COOKBOOK_HISTORY_KEEP", &c.History.Keep},
	}
	for _, i := range ints {
		if err := parseEnvInt(i.key, i.dest); err != nil {
			return err
		}
	}

	if err := parseEnvFloat("COOKBOOK_RATE_LIMIT", &c.Server.RateLimit); err != nil {
		return err
	}
	return parseEnvBool("COOKBOOK_LOG_DEVELOPMENT", &c.Log.Development)
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimit < 0 || c.Server.RateLimit > 100 {
		return fmt.Errorf("server.rate_limit must be between 0 and 100 (got %g)", c.Server.RateLimit)
	}
	if c.Server.RateBurst < 1 || c.Server.RateBurst > 100 {
		return fmt.Errorf("server.rate_burst must be between 1 and 100 (got %d)", c.Server.RateBurst)
	}

	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be %q or %q (got %q)", ProviderAnthropic, ProviderGemini, c.LLM.Provider)
	}
	if c.LLM.MaxTokens < 1024 || c.LLM.MaxTokens > 64000 {
		return fmt.Errorf("llm.max_tokens must be between 1024 and 64000 (got %d)", c.LLM.MaxTokens)
	}
	if c.LLM.MaxConcurrentCalls < 1 || c.LLM.MaxConcurrentCalls > 32 {
		return fmt.Errorf("llm.max_concurrent_calls must be between 1 and 32 (got %d)", c.LLM.MaxConcurrentCalls)
	}

	if c.Fixer.TimeoutSeconds < 1 || c.Fixer.TimeoutSeconds > 600 {
		return fmt.Errorf("fixer.timeout_seconds must be between 1 and 600 (got %d)", c.Fixer.TimeoutSeconds)
	}

	switch c.Sandbox.Provider {
	case SandboxDocker, SandboxMemory:
	default:
		return fmt.Errorf("sandbox.provider must be %q or %q (got %q)", SandboxDocker, SandboxMemory, c.Sandbox.Provider)
	}
	if c.Sandbox.Template == "" {
		return fmt.Errorf("sandbox.template is required")
	}
	if c.Sandbox.Port < 1 || c.Sandbox.Port > 65535 {
		return fmt.Errorf("sandbox.port must be between 1 and 65535 (got %d)", c.Sandbox.Port)
	}
	if !strings.HasPrefix(c.Sandbox.WorkDir, "/") {
		return fmt.Errorf("sandbox.work_dir must be absolute (got %q)", c.Sandbox.WorkDir)
	}

	if err := c.History.Validate(); err != nil {
		return err
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}
