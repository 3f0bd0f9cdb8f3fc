package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/xhad/docrag/internal/types"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider         string // ollama or openai
	Model            string
	Temperature      float64
	MaxTokens        int
	SystemTemplate   string
	BaseURL          string // Ollama server URL or OpenAI-compatible endpoint
	APIKey           string
	HistoryMaxLength int // history longer than this many characters is summarised
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine with the given configuration.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	if config.BaseURL == "" && (config.Provider == "" || config.Provider == "ollama") {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}

	var (
		model llms.Model
		err   error
	)
	switch config.Provider {
	case "", "ollama":
		if config.Model == "" {
			config.Model = "mistral" // Default Ollama model
		}
		model, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	case "openai":
		opts := []openai.Option{openai.WithToken(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, openai.WithModel(config.Model))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model)
}

// NewWithModel creates a ChatEngine around an already constructed model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.HistoryMaxLength <= 0 {
		config.HistoryMaxLength = 10000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = DefaultSystemPrompt
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

func (ce *ChatEngine) SystemTemplate() string {
	return ce.config.SystemTemplate
}

func (ce *ChatEngine) HistoryMaxLength() int {
	return ce.config.HistoryMaxLength
}

// Generate sends a structured prompt and returns the first choice.
func (ce *ChatEngine) Generate(ctx context.Context, messages []types.Message) (string, error) {
	response, err := ce.llm.GenerateContent(ctx, toContent(messages), ce.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	return firstChoice(response)
}

// ChatStream generates a stream of response fragments. The channel is
// closed when generation ends; errors are delivered as a final "Error: "
// fragment.
func (ce *ChatEngine) ChatStream(ctx context.Context, messages []types.Message) (<-chan string, error) {
	resultChan := make(chan string)

	go func() {
		defer close(resultChan)

		streamed := false
		opts := append(ce.callOptions(), llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			streamed = true
			select {
			case resultChan <- string(chunk):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))

		response, err := ce.llm.GenerateContent(ctx, toContent(messages), opts...)
		if err != nil {
			select {
			case resultChan <- fmt.Sprintf("Error: %v", err):
			case <-ctx.Done():
			}
			return
		}

		// Models that ignore the streaming callback still return the full text.
		if !streamed {
			text, err := firstChoice(response)
			if err != nil {
				text = fmt.Sprintf("Error: %v", err)
			}
			select {
			case resultChan <- text:
			case <-ctx.Done():
			}
		}
	}()

	return resultChan, nil
}

// Ask answers a question without retrieval.
func (ce *ChatEngine) Ask(ctx context.Context, query, history string) (string, error) {
	return ce.Generate(ctx, AskPrompt(ce.config.SystemTemplate, query, history))
}

// Summarize compresses a conversation history.
func (ce *ChatEngine) Summarize(ctx context.Context, history string) (string, error) {
	return ce.Generate(ctx, SummaryPrompt(history))
}

// CondenseHistory returns history unchanged when it fits the configured
// budget and its summary otherwise.
func (ce *ChatEngine) CondenseHistory(ctx context.Context, history string) (string, error) {
	return CondenseHistory(ctx, ce, history, ce.config.HistoryMaxLength)
}

// CondenseHistory summarises history with gen when it is longer than
// maxLength characters.
func CondenseHistory(ctx context.Context, gen types.Generator, history string, maxLength int) (string, error) {
	if maxLength <= 0 || len([]rune(history)) <= maxLength {
		return history, nil
	}
	summary, err := gen.Generate(ctx, SummaryPrompt(history))
	if err != nil {
		return "", fmt.Errorf("summarising history: %w", err)
	}
	return summary, nil
}

func (ce *ChatEngine) callOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
}

func toContent(messages []types.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case types.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case types.RoleAI:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return content
}

func firstChoice(response *llms.ContentResponse) (string, error) {
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", fmt.Errorf("chat error: no response from LLM")
	}
	return strings.TrimSpace(response.Choices[0].Content), nil
}
