// Package config loads service configuration from an optional YAML file and
// the environment.  Environment variables win over the file so that
// container deployments can override single values.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure returned from Load.
var ErrInvalid = errors.New("invalid configuration")

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Database  DatabaseConfig  `yaml:"database"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Tracing   TracingConfig   `yaml:"tracing"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig controls the HTTP gateway.
type ServerConfig struct {
	Port           string `yaml:"port"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadMB    int64  `yaml:"max_upload_mb"`
	AllowedOrigins string `yaml:"allowed_origins"`
}

// LLMConfig holds the language model provider and generation parameters.
type LLMConfig struct {
	Provider           string        `yaml:"provider"`
	APIKey             string        `yaml:"api_key"`
	BaseURL            string        `yaml:"base_url"`
	Model              string        `yaml:"model"`
	TranscriptionModel string        `yaml:"transcription_model"`
	EmbeddingModel     string        `yaml:"embedding_model"`
	Temperature        float32       `yaml:"temperature"`
	MaxTokens          int           `yaml:"max_tokens"`
	TopP               float32       `yaml:"top_p"`
	FrequencyPenalty   float32       `yaml:"frequency_penalty"`
	PresencePenalty    float32       `yaml:"presence_penalty"`
	JSONMode           bool          `yaml:"json_mode"`
	Timeout            time.Duration `yaml:"timeout"`
	// RequestsPerSecond caps calls to the provider; zero disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DatabaseConfig points at the Postgres instance holding the knowledge index.
// An empty URL keeps the index in memory.
type DatabaseConfig struct {
	URL           string `yaml:"url"`
	NotifyChannel string `yaml:"notify_channel"`
}

// KnowledgeConfig tunes document chunking and retrieval.
type KnowledgeConfig struct {
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	TopK         int    `yaml:"top_k"`
	Persona      string `yaml:"persona"`
}

// TracingConfig enables the stdout span exporter.
type TracingConfig struct {
	Stdout bool `yaml:"stdout"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			UploadDir:      "uploads",
			MaxUploadMB:    32,
			AllowedOrigins: "*",
		},
		LLM: LLMConfig{
			Provider:           "openai",
			Model:              "gpt-4o-mini",
			TranscriptionModel: "whisper-1",
			EmbeddingModel:     "text-embedding-3-small",
			Temperature:        0.3,
			MaxTokens:          2000,
			TopP:               1.0,
			JSONMode:           true,
			Timeout:            60 * time.Second,
		},
		Database: DatabaseConfig{
			NotifyChannel: "knowledge_updates",
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:    1000,
			ChunkOverlap: 200,
			TopK:         4,
		},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.Model, "OPENAI_MODEL")
	setString(&c.LLM.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.NotifyChannel, "POSTGRES_NOTIFY_CHANNEL")
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.UploadDir, "CLINOTE_UPLOAD_DIR")
	setString(&c.LogLevel, "LOG_LEVEL")
	if v := os.Getenv("CLINOTE_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: CLINOTE_LLM_TIMEOUT: %v", ErrInvalid, err)
		}
		c.LLM.Timeout = d
	}
	if v := os.Getenv("CLINOTE_LLM_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: CLINOTE_LLM_RPS: %v", ErrInvalid, err)
		}
		c.LLM.RequestsPerSecond = rps
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.LLM.Provider != "openai":
		return fmt.Errorf("%w: unsupported LLM provider %q", ErrInvalid, c.LLM.Provider)
	case c.LLM.Model == "":
		return fmt.Errorf("%w: llm.model must be set", ErrInvalid)
	case c.LLM.Temperature < 0 || c.LLM.Temperature > 2:
		return fmt.Errorf("%w: llm.temperature %v out of range [0,2]", ErrInvalid, c.LLM.Temperature)
	case c.LLM.RequestsPerSecond < 0:
		return fmt.Errorf("%w: llm.requests_per_second must not be negative", ErrInvalid)
	case c.Knowledge.ChunkSize <= 0:
		return fmt.Errorf("%w: knowledge.chunk_size must be positive", ErrInvalid)
	case c.Knowledge.ChunkOverlap < 0 || c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize:
		return fmt.Errorf("%w: knowledge.chunk_overlap must be in [0, chunk_size)", ErrInvalid)
	case c.Knowledge.TopK <= 0:
		return fmt.Errorf("%w: knowledge.top_k must be positive", ErrInvalid)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level.  Validate has already
// rejected unknown names.
func (c *Config) SlogLevel() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log_level %q", ErrInvalid, s)
}
