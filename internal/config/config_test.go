package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL", "DATABASE_URL",
		"POSTGRES_NOTIFY_CHANNEL", "PORT", "CLINOTE_UPLOAD_DIR", "LOG_LEVEL",
		"CLINOTE_LLM_TIMEOUT", "CLINOTE_LLM_RPS",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clinote.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, float32(0.3), cfg.LLM.Temperature)
	assert.Equal(t, 2000, cfg.LLM.MaxTokens)
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, 200, cfg.Knowledge.ChunkOverlap)
	assert.Equal(t, 4, cfg.Knowledge.TopK)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: "9090"
llm:
  model: gpt-4o
  temperature: 0.1
  timeout: 15s
knowledge:
  top_k: 2
log_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, float32(0.1), cfg.LLM.Temperature)
	assert.Equal(t, 15*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2, cfg.Knowledge.TopK)
	// Untouched keys keep their defaults.
	assert.Equal(t, 1000, cfg.Knowledge.ChunkSize)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "llm:\n  model: gpt-4o\n")
	t.Setenv("OPENAI_MODEL", "gpt-4.1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://localhost/clinote")
	t.Setenv("CLINOTE_LLM_TIMEOUT", "5s")
	t.Setenv("CLINOTE_LLM_RPS", "2.5")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "postgres://localhost/clinote", cfg.Database.URL)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 2.5, cfg.LLM.RequestsPerSecond)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unsupported provider", "llm:\n  provider: anthropic\n"},
		{"temperature", "llm:\n  temperature: 3\n"},
		{"overlap larger than size", "knowledge:\n  chunk_size: 100\n  chunk_overlap: 100\n"},
		{"top k", "knowledge:\n  top_k: 0\n"},
		{"log level", "log_level: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_BadEnvDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("CLINOTE_LLM_TIMEOUT", "soon")

	_, err := Load("")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}
