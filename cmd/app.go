package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/docrag/internal/types"
	"github.com/xhad/docrag/pkg/conversation"
	"github.com/xhad/docrag/pkg/extractor"
	"github.com/xhad/docrag/pkg/llm"
	"github.com/xhad/docrag/pkg/processor"
	"github.com/xhad/docrag/pkg/rag"
	"github.com/xhad/docrag/pkg/ranker"
	"github.com/xhad/docrag/pkg/store"
)

type app struct {
	service *rag.Service
	chat    *llm.ChatEngine
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// newApp wires the service from the loaded configuration. The chat engine
// is only built when withChat is set.
func newApp(ctx context.Context, withChat bool) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		MinWords: cfg.Processor.MinWords,
		Overlap:  cfg.Processor.Overlap,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor: %w", err)
	}

	ext := extractor.NewWithConfig(extractor.ExtractorConfig{
		PDFBlocks: cfg.Processor.PDFBlocks,
		Converter: extractor.NewSofficeConverter(cfg.Converter.Command, cfg.Converter.Timeout),
	})

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:   cfg.Embedder.Provider,
		Model:      cfg.Embedder.Model,
		BaseURL:    cfg.Embedder.BaseURL,
		APIKey:     cfg.Embedder.APIKey,
		BatchSize:  cfg.Embedder.BatchSize,
		RateLimit:  cfg.Embedder.RateLimit,
		Dimensions: cfg.Embedder.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectorStore, err := openVectorStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	a.closers = append(a.closers, vectorStore.Close)

	conversations, err := conversation.NewSQLiteStore(cfg.Conversation.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize conversation store: %w", err)
	}
	a.closers = append(a.closers, conversations.Close)

	policy, err := conversation.ParseUploadPolicy(cfg.Conversation.UploadPolicy)
	if err != nil {
		return nil, err
	}

	rnk, err := ranker.NewWithScorerName(cfg.Ranker.Scorer)
	if err != nil {
		return nil, err
	}

	serviceConfig := rag.ServiceConfig{
		Extractor:        ext,
		Processor:        proc,
		Embedder:         embedder,
		Store:            vectorStore,
		Ranker:           rnk,
		Candidates:       cfg.Ranker.Candidates,
		MinScore:         cfg.Index.MinScore,
		Conversations:    conversations,
		UploadPolicy:     policy,
		HistoryMaxLength: cfg.LLM.HistoryMaxLength,
		Logger:           log,
	}

	if withChat {
		a.chat, err = llm.NewWithConfig(llm.ChatConfig{
			Provider:         cfg.LLM.Provider,
			Model:            cfg.LLM.Model,
			Temperature:      cfg.LLM.Temperature,
			MaxTokens:        cfg.LLM.MaxTokens,
			BaseURL:          cfg.LLM.BaseURL,
			APIKey:           cfg.LLM.APIKey,
			HistoryMaxLength: cfg.LLM.HistoryMaxLength,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
		}
		serviceConfig.Generator = a.chat
		serviceConfig.SystemPrompt = a.chat.SystemTemplate()
	}

	a.service, err = rag.NewWithConfig(serviceConfig)
	if err != nil {
		return nil, err
	}

	log.Debug("initialized",
		"backend", cfg.Index.Backend,
		"embedding_model", embedder.ModelName(),
		"scorer", cfg.Ranker.Scorer)

	ok = true
	return a, nil
}

func openVectorStore(ctx context.Context) (types.VectorStore, error) {
	switch cfg.Index.Backend {
	case "pgvector":
		return store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
		})
	default:
		return store.NewSQLiteStore(cfg.Index.Path)
	}
}
