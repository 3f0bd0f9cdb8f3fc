package rag

import (
	"context"
	"fmt"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
	"github.com/xhad/docrag/pkg/llm"
)

type AnswerRequest struct {
	Query          string
	History        string
	ConversationID string
	TopK           int
	UseRanking     bool
}

// Prepared is a grounded prompt ready for generation.
type Prepared struct {
	Messages  []types.Message
	Documents models.RetrievalResult
	Uploaded  []string
	// History is the history that went into the prompt, summarised when it
	// was over budget.
	History string
}

type Answer struct {
	Text      string
	Documents models.RetrievalResult
	History   string
}

// Prepare retrieves context for req and builds the prompt. It fails with
// models.ErrEmptyContext when neither the index nor the conversation
// provides anything to ground on.
func (s *Service) Prepare(ctx context.Context, req AnswerRequest) (*Prepared, error) {
	if s.config.Generator == nil {
		return nil, fmt.Errorf("%w: no generator configured", models.ErrInvalidInput)
	}
	if req.TopK <= 0 {
		req.TopK = 5
	}

	history, err := llm.CondenseHistory(ctx, s.config.Generator, req.History, s.config.HistoryMaxLength)
	if err != nil {
		return nil, err
	}

	var retrieved models.RetrievalResult
	if req.ConversationID != "" {
		retrieved, err = s.RetrieveForConversation(ctx, req.ConversationID, req.Query, req.TopK, req.UseRanking)
	} else {
		retrieved, err = s.Retrieve(ctx, req.Query, req.TopK, req.UseRanking)
	}
	if err != nil {
		return nil, err
	}
	if retrieved.Empty() {
		return nil, models.ErrEmptyContext
	}

	var (
		documents models.RetrievalResult
		uploaded  []string
	)
	for _, r := range retrieved {
		if r.Source == models.SourceUpload {
			uploaded = append(uploaded, r.Content)
			continue
		}
		documents = append(documents, r)
	}

	messages := llm.BuildPrompt(s.config.SystemPrompt, llm.PromptInput{
		Query:     req.Query,
		History:   history,
		Documents: documents,
		Uploaded:  uploaded,
	})
	s.log.Debug("built prompt",
		"messages", len(messages),
		"documents", len(documents),
		"uploaded", len(uploaded))

	return &Prepared{
		Messages:  messages,
		Documents: retrieved,
		Uploaded:  uploaded,
		History:   history,
	}, nil
}

// Answer grounds the query in retrieved context and generates a reply.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	prepared, err := s.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	text, err := s.config.Generator.Generate(ctx, prepared.Messages)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Documents: prepared.Documents, History: prepared.History}, nil
}
