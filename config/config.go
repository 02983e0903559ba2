// Package config loads runtime configuration from a TOML file with
// environment variable overrides. File values are the base; any matching
// AGENTRUN_* variable wins. Finalize validates the merged result.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Providers holds model vendor credentials and endpoints.
type Providers struct {
	OpenAIAPIKey    string `toml:"openai_api_key"`
	OpenAIBaseURL   string `toml:"openai_base_url"`
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	DeepSeekAPIKey  string `toml:"deepseek_api_key"`
	DeepSeekBaseURL string `toml:"deepseek_base_url"`
}

// Postgres holds the connection settings for the relational store.
type Postgres struct {
	DatabaseURL string `toml:"database_url"`
}

// Logging holds the structured logging settings.
type Logging struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // text or json
}

// Runtime holds engine-level settings.
type Runtime struct {
	// SystemPromptPrefix is rendered ahead of every agent prompt.
	SystemPromptPrefix string `toml:"system_prompt_prefix"`
}

// Config is the root configuration document.
type Config struct {
	Providers Providers `toml:"providers"`
	Postgres  Postgres  `toml:"postgres"`
	Logging   Logging   `toml:"logging"`
	Runtime   Runtime   `toml:"runtime"`
}

// Default returns the configuration used when no file and no overrides are
// present.
func Default() Config {
	return Config{
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path (skipped when path is empty or the file
// does not exist), applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to env-only configuration.
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(raw, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Finalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	override(&c.Providers.OpenAIAPIKey, "AGENTRUN_OPENAI_API_KEY")
	override(&c.Providers.OpenAIBaseURL, "AGENTRUN_OPENAI_BASE_URL")
	override(&c.Providers.AnthropicAPIKey, "AGENTRUN_ANTHROPIC_API_KEY")
	override(&c.Providers.DeepSeekAPIKey, "AGENTRUN_DEEPSEEK_API_KEY")
	override(&c.Providers.DeepSeekBaseURL, "AGENTRUN_DEEPSEEK_BASE_URL")
	override(&c.Postgres.DatabaseURL, "AGENTRUN_DATABASE_URL")
	override(&c.Logging.Level, "AGENTRUN_LOG_LEVEL")
	override(&c.Logging.Format, "AGENTRUN_LOG_FORMAT")
	override(&c.Runtime.SystemPromptPrefix, "AGENTRUN_SYSTEM_PROMPT_PREFIX")
}

func override(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

// Finalize normalizes and validates the merged configuration.
func (c *Config) Finalize() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.Logging.Format)
	}

	return nil
}
