package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case "ollama":
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		} else if _, err := url.ParseRequestURI(c.LLM.BaseURL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid Ollama base URL",
			})
		}
	case "openai":
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "OpenAI API key is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.LLM.HistoryMaxLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "llm.history_max_length",
			Message: "history_max_length must be positive",
		})
	}

	// Validate embedder config
	switch c.Embedder.Provider {
	case "ollama", "hash":
	case "openai":
		if c.Embedder.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "embedder.api_key",
				Message: "OpenAI API key is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Embedder.Provider),
		})
	}

	if c.Embedder.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedder.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	if c.Embedder.Dimensions < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.dimensions",
			Message: "dimensions must be positive",
		})
	}

	// Validate index config
	switch c.Index.Backend {
	case "sqlite":
		if c.Index.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "index.path",
				Message: "index path is required for the sqlite backend",
			})
		}
	case "pgvector":
		if c.Database.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "database URL is required for the pgvector backend",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "index.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Index.Backend),
		})
	}

	if c.Index.MinScore < 0 || c.Index.MinScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "index.min_score",
			Message: "min_score must be between 0 and 1",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.MinWords < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.min_words",
			Message: "min_words must be positive",
		})
	}

	if c.Processor.Overlap < 0 || c.Processor.Overlap >= c.Processor.MinWords {
		errors = append(errors, ValidationError{
			Field:   "processor.overlap",
			Message: "overlap must be non-negative and less than min_words",
		})
	}

	switch c.Ranker.Scorer {
	case "bleve", "overlap":
	default:
		errors = append(errors, ValidationError{
			Field:   "ranker.scorer",
			Message: fmt.Sprintf("unknown scorer: %s", c.Ranker.Scorer),
		})
	}

	if c.Ranker.Candidates < 1 {
		errors = append(errors, ValidationError{
			Field:   "ranker.candidates",
			Message: "candidates must be positive",
		})
	}

	switch c.Conversation.UploadPolicy {
	case "append_if_empty", "always_append":
	default:
		errors = append(errors, ValidationError{
			Field:   "conversation.upload_policy",
			Message: fmt.Sprintf("unknown upload policy: %s", c.Conversation.UploadPolicy),
		})
	}

	return errors
}
