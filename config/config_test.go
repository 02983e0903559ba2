package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentrun.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[providers]
openai_api_key = "sk-test"
deepseek_base_url = "https://deepseek.example/v1"

[postgres]
database_url = "postgres://localhost:5432/agentrun"

[logging]
level = "debug"
format = "json"

[runtime]
system_prompt_prefix = "Be nice."
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Providers.OpenAIAPIKey)
	assert.Equal(t, "https://deepseek.example/v1", cfg.Providers.DeepSeekBaseURL)
	assert.Equal(t, "postgres://localhost:5432/agentrun", cfg.Postgres.DatabaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "Be nice.", cfg.Runtime.SystemPromptPrefix)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[providers]
openai_api_key = "from-file"
`)
	t.Setenv("AGENTRUN_OPENAI_API_KEY", "from-env")
	t.Setenv("AGENTRUN_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Providers.OpenAIAPIKey)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestFinalizeValidation(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = "verbose"
		assert.Error(t, cfg.Finalize())
	})

	t.Run("invalid format", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Format = "yaml"
		assert.Error(t, cfg.Finalize())
	})

	t.Run("normalization", func(t *testing.T) {
		cfg := Default()
		cfg.Logging.Level = " INFO "
		cfg.Logging.Format = "JSON"
		require.NoError(t, cfg.Finalize())
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
	})
}
