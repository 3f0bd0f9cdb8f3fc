package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/xhad/docrag/internal/models"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Provider   string // ollama, openai or hash
	Model      string
	BaseURL    string // Ollama server URL or OpenAI-compatible endpoint
	APIKey     string
	BatchSize  int
	RateLimit  float64 // embedding requests per second, 0 for unlimited
	Dimensions int     // only used by the hash provider
}

// Embedder batches texts through an embedding client. The same Embedder
// must be used for indexing and for queries.
type Embedder struct {
	config   EmbedderConfig
	embedder *embeddings.EmbedderImpl
}

// NewClient builds the raw embedding client for the configured provider.
func NewClient(config EmbedderConfig) (embeddings.EmbedderClient, error) {
	switch config.Provider {
	case "", "ollama":
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest" // Default Ollama model
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		emb, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		return emb, nil
	case "openai":
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithEmbeddingModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		emb, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		return emb, nil
	case "hash":
		return NewHashingClient(config.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", config.Provider)
	}
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	client, err := NewClient(config)
	if err != nil {
		return nil, err
	}
	return NewEmbedderWithClient(config, client)
}

// NewEmbedderWithClient wraps an existing client, applying batching and
// rate limiting from config.
func NewEmbedderWithClient(config EmbedderConfig, client embeddings.EmbedderClient) (*Embedder, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	if config.Model == "" {
		config.Model = config.Provider
	}

	if config.RateLimit > 0 {
		client = &rateLimitedClient{
			client:  client,
			limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		}
	}

	emb, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(config.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return &Embedder{config: config, embedder: emb}, nil
}

func (e *Embedder) ModelName() string {
	return e.config.Model
}

// Embed returns one vector per text, or ErrEmbeddingUnavailable if any
// batch fails. There is no partial result.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, e.wrap(ctx, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbeddingUnavailable, len(vectors), len(texts))
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", models.ErrEmbeddingUnavailable, i, len(v), dim)
		}
	}

	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, e.wrap(ctx, err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", models.ErrEmbeddingUnavailable)
	}
	return vector, nil
}

func (e *Embedder) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %s: %v", models.ErrEmbeddingUnavailable, e.config.Model, err)
}

type rateLimitedClient struct {
	client  embeddings.EmbedderClient
	limiter *rate.Limiter
}

func (c *rateLimitedClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.client.CreateEmbedding(ctx, texts)
}
