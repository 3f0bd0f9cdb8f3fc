package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	Provider         string  `yaml:"provider"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	APIKey           string  `yaml:"api_key"`
	MaxTokens        int     `yaml:"max_tokens"`
	Temperature      float64 `yaml:"temperature"`
	HistoryMaxLength int     `yaml:"history_max_length"`
}

type EmbedderConfig struct {
	Provider   string  `yaml:"provider"`
	BaseURL    string  `yaml:"base_url"`
	Model      string  `yaml:"model"`
	APIKey     string  `yaml:"api_key"`
	BatchSize  int     `yaml:"batch_size"`
	RateLimit  float64 `yaml:"rate_limit"`
	Dimensions int     `yaml:"dimensions"`
}

type IndexConfig struct {
	Backend  string  `yaml:"backend"`
	Path     string  `yaml:"path"`
	MinScore float64 `yaml:"min_score"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type ProcessorConfig struct {
	MinWords  int  `yaml:"min_words"`
	Overlap   int  `yaml:"overlap"`
	PDFBlocks bool `yaml:"pdf_blocks"`
}

type RankerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Scorer     string `yaml:"scorer"`
	Candidates int    `yaml:"candidates"`
}

type ConversationConfig struct {
	Path         string `yaml:"path"`
	UploadPolicy string `yaml:"upload_policy"`
}

type ConverterConfig struct {
	Command string        `yaml:"command"`
	Timeout time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	LLM          LLMConfig          `yaml:"llm"`
	Embedder     EmbedderConfig     `yaml:"embedder"`
	Index        IndexConfig        `yaml:"index"`
	Database     DatabaseConfig     `yaml:"database"`
	Processor    ProcessorConfig    `yaml:"processor"`
	Ranker       RankerConfig       `yaml:"ranker"`
	Conversation ConversationConfig `yaml:"conversation"`
	Converter    ConverterConfig    `yaml:"converter"`
	Log          LogConfig          `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docrag/config.yaml"),
			"/etc/docrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Apply defaults for unset values
	applyDefaults(&config)

	// Environment variables win over the file
	mergeWithEnv(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.HistoryMaxLength == 0 {
		config.LLM.HistoryMaxLength = 10000
	}

	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	if config.Embedder.Model == "" {
		switch config.Embedder.Provider {
		case "openai":
			config.Embedder.Model = "text-embedding-3-small"
		case "hash":
			config.Embedder.Model = "hash"
		default:
			config.Embedder.Model = "nomic-embed-text:latest"
		}
	}
	if config.Embedder.BaseURL == "" && config.Embedder.Provider == "ollama" {
		config.Embedder.BaseURL = config.LLM.BaseURL
		if config.Embedder.BaseURL == "" {
			config.Embedder.BaseURL = "http://localhost:11434"
		}
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 32
	}
	if config.Embedder.Dimensions == 0 {
		config.Embedder.Dimensions = 768
	}

	if config.Index.Backend == "" {
		config.Index.Backend = "sqlite"
	}
	if config.Index.Path == "" {
		config.Index.Path = filepath.Join(dataDir(), "index.db")
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = config.Embedder.Dimensions
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Processor.MinWords == 0 {
		config.Processor.MinWords = 100
		if config.Processor.Overlap == 0 {
			config.Processor.Overlap = 50
		}
	}

	if config.Ranker.Scorer == "" {
		config.Ranker.Scorer = "bleve"
	}
	if config.Ranker.Candidates == 0 {
		config.Ranker.Candidates = 20
	}

	if config.Conversation.Path == "" {
		config.Conversation.Path = filepath.Join(dataDir(), "conversations.db")
	}
	if config.Conversation.UploadPolicy == "" {
		config.Conversation.UploadPolicy = "append_if_empty"
	}

	if config.Converter.Command == "" {
		config.Converter.Command = "soffice"
	}
	if config.Converter.Timeout == 0 {
		config.Converter.Timeout = 2 * time.Minute
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.LLM.Provider == "ollama" {
			config.LLM.BaseURL = baseURL
		}
		if config.Embedder.Provider == "ollama" {
			config.Embedder.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.LLM.APIKey == "" {
			config.LLM.APIKey = apiKey
		}
		if config.Embedder.APIKey == "" {
			config.Embedder.APIKey = apiKey
		}
	}
	if indexPath := os.Getenv("DOCRAG_INDEX_PATH"); indexPath != "" {
		config.Index.Path = indexPath
	}
}

func dataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(home, ".docrag")
}
