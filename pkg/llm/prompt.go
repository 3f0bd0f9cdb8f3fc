package llm

import (
	"fmt"
	"strings"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

const (
	DefaultSystemPrompt  = "You are a helpful and concise assistant."
	DefaultSummaryPrompt = "You are an assistant that summarises text while keeping the most important information."
)

// PromptInput is everything that goes into a grounded answer.
type PromptInput struct {
	Query     string
	History   string
	Documents models.RetrievalResult
	Uploaded  []string
}

// BuildPrompt lays out the grounded prompt: system instruction, history,
// retrieved documents, their file names and pages, uploaded texts, the
// request restated, then the user query itself.
func BuildPrompt(system string, in PromptInput) []types.Message {
	if system == "" {
		system = DefaultSystemPrompt
	}

	contents := make([]string, 0, len(in.Documents))
	files := make([]string, 0, len(in.Documents))
	pages := make([]string, 0, len(in.Documents))
	for _, doc := range in.Documents {
		contents = append(contents, doc.Content)
		files = append(files, doc.FileName)
		pages = append(pages, doc.Locator.String())
	}

	return []types.Message{
		{Role: types.RoleSystem, Content: system},
		{Role: types.RoleSystem, Content: "Conversation history: " + in.History},
		{Role: types.RoleSystem, Content: "Documents relevant to the request: " + strings.Join(contents, "\n\n")},
		{Role: types.RoleSystem, Content: "File names: " + strings.Join(files, "\n\n")},
		{Role: types.RoleSystem, Content: "Pages: " + strings.Join(pages, "\n\n")},
		{Role: types.RoleSystem, Content: "Uploaded document: " + strings.Join(in.Uploaded, "\n\n")},
		{Role: types.RoleSystem, Content: "User request: " + in.Query},
		{Role: types.RoleHuman, Content: in.Query},
	}
}

// SummaryPrompt asks the model to compress a conversation history.
func SummaryPrompt(history string) []types.Message {
	return []types.Message{
		{Role: types.RoleSystem, Content: DefaultSummaryPrompt},
		{Role: types.RoleHuman, Content: fmt.Sprintf("Summarise this history: %s", history)},
	}
}

// AskPrompt is a single question with optional history and no retrieval.
func AskPrompt(system, query, history string) []types.Message {
	if system == "" {
		system = DefaultSystemPrompt
	}
	messages := []types.Message{{Role: types.RoleSystem, Content: system}}
	if history != "" {
		messages = append(messages, types.Message{Role: types.RoleSystem, Content: history})
	}
	return append(messages, types.Message{Role: types.RoleHuman, Content: query})
}
