package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"OLLAMA_BASE_URL", "DATABASE_URL", "OPENAI_API_KEY", "DOCRAG_INDEX_PATH"} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

embedder:
  provider: hash
  dimensions: 256

index:
  backend: pgvector

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 256
  batch_size: 50

processor:
  min_words: 80
  overlap: 20
  pdf_blocks: true

ranker:
  enabled: true

conversation:
  upload_policy: always_append

converter:
  timeout: 30s
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "hash", config.Embedder.Provider)
	assert.Equal(t, "hash", config.Embedder.Model)
	assert.Equal(t, 256, config.Embedder.Dimensions)
	assert.Equal(t, "pgvector", config.Index.Backend)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_chunks", config.Database.TableName)
	assert.Equal(t, 80, config.Processor.MinWords)
	assert.Equal(t, 20, config.Processor.Overlap)
	assert.True(t, config.Processor.PDFBlocks)
	assert.True(t, config.Ranker.Enabled)
	assert.Equal(t, "bleve", config.Ranker.Scorer)
	assert.Equal(t, 20, config.Ranker.Candidates)
	assert.Equal(t, "always_append", config.Conversation.UploadPolicy)
	assert.Equal(t, 30*time.Second, config.Converter.Timeout)
	assert.Equal(t, "soffice", config.Converter.Command)

	assert.Empty(t, config.Validate())
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, "ollama", config.LLM.Provider)
	assert.Equal(t, 10000, config.LLM.HistoryMaxLength)
	assert.Equal(t, "nomic-embed-text:latest", config.Embedder.Model)
	assert.Equal(t, 32, config.Embedder.BatchSize)
	assert.Equal(t, "sqlite", config.Index.Backend)
	assert.NotEmpty(t, config.Index.Path)
	assert.Equal(t, 100, config.Processor.MinWords)
	assert.Equal(t, 50, config.Processor.Overlap)
	assert.Equal(t, "append_if_empty", config.Conversation.UploadPolicy)
	assert.Equal(t, "info", config.Log.Level)

	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	clearEnv(t)

	valid := func() Config {
		config := Config{}
		applyDefaults(&config)
		return config
	}

	tests := []struct {
		name          string
		mutate        func(*Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
				c.Database.URL = "postgres://host/%zz"
				c.Processor.Overlap = 100
			},
			errorMessages: []string{
				"llm.base_url: invalid Ollama base URL",
				"llm.max_tokens: max_tokens must be between 1 and 4096",
				"llm.temperature: temperature must be between 0 and 2",
				"database.url: invalid database URL",
				"processor.overlap: overlap must be non-negative and less than min_words",
			},
		},
		{
			name: "openai without key",
			mutate: func(c *Config) {
				c.LLM.Provider = "openai"
				c.Embedder.Provider = "openai"
			},
			errorMessages: []string{
				"llm.api_key: OpenAI API key is required",
				"embedder.api_key: OpenAI API key is required",
			},
		},
		{
			name: "unknown backend, scorer and policy",
			mutate: func(c *Config) {
				c.Index.Backend = "chroma"
				c.Ranker.Scorer = "cross-encoder"
				c.Conversation.UploadPolicy = "replace"
			},
			errorMessages: []string{
				"index.backend: unknown backend: chroma",
				"ranker.scorer: unknown scorer: cross-encoder",
				"conversation.upload_policy: unknown upload policy: replace",
			},
		},
		{
			name: "pgvector needs a database url",
			mutate: func(c *Config) {
				c.Index.Backend = "pgvector"
			},
			errorMessages: []string{
				"database.url: database URL is required for the pgvector backend",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Equal(t, msg, errors[i].Error())
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	// Set environment variables
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DOCRAG_INDEX_PATH", "/tmp/env-index.db")

	config := &Config{}
	config.LLM.Provider = "ollama"
	config.Embedder.Provider = "ollama"
	config.Embedder.APIKey = "sk-explicit"
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "sk-explicit", config.Embedder.APIKey)
	assert.Equal(t, "/tmp/env-index.db", config.Index.Path)

	openaiConfig := &Config{}
	openaiConfig.LLM.Provider = "openai"
	openaiConfig.Embedder.Provider = "openai"
	mergeWithEnv(openaiConfig)
	assert.Empty(t, openaiConfig.LLM.BaseURL)
	assert.Empty(t, openaiConfig.Embedder.BaseURL)
}
