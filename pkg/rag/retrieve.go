package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/pkg/conversation"
)

// Retrieve returns up to topK chunks relevant to query. An empty query lists
// indexed chunks in insertion order instead of searching. With useRanking,
// a wider candidate window is fetched, re-ranked and then cut to topK.
// An empty index yields an empty result, not an error.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, useRanking bool) (models.RetrievalResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrInvalidInput, topK)
	}

	candidates, err := s.candidates(ctx, query, topK, useRanking)
	if err != nil {
		return nil, err
	}
	if useRanking {
		if candidates, err = s.rank(ctx, query, candidates); err != nil {
			return nil, err
		}
	}
	return truncate(candidates, topK), nil
}

// RetrieveForConversation adds the conversation's uploaded texts to the
// candidates of Retrieve. With ranking the union is re-ranked; without it
// the uploads follow the index hits. Either way the result holds at most
// topK entries.
func (s *Service) RetrieveForConversation(ctx context.Context, conversationID, query string, topK int, useRanking bool) (models.RetrievalResult, error) {
	if s.config.Conversations == nil {
		return nil, fmt.Errorf("%w: no conversation store configured", models.ErrInvalidInput)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", models.ErrInvalidInput, topK)
	}

	uploaded, err := s.config.Conversations.GetUploadedChunks(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.candidates(ctx, query, topK, useRanking)
	if err != nil {
		return nil, err
	}

	candidates = append(candidates, uploadedEntries(uploaded)...)
	if useRanking {
		if candidates, err = s.rank(ctx, query, candidates); err != nil {
			return nil, err
		}
	}
	return truncate(candidates, topK), nil
}

// UploadToConversation extracts and chunks path without indexing it and
// attaches the chunk texts to the conversation under the configured
// policy. The conversation is created when it does not exist yet.
func (s *Service) UploadToConversation(ctx context.Context, conversationID, path string) ([]models.Chunk, error) {
	if s.config.Conversations == nil {
		return nil, fmt.Errorf("%w: no conversation store configured", models.ErrInvalidInput)
	}

	log := s.log.With("file", filepath.Base(path), "conversation", conversationID)
	chunks, _, err := s.chunkFile(ctx, path, log)
	if err != nil {
		return nil, err
	}

	if err := s.config.Conversations.Create(ctx, conversationID); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	attached, err := conversation.Attach(ctx, s.config.Conversations, s.config.UploadPolicy, conversationID, texts)
	if err != nil {
		return nil, err
	}

	log.Info("uploaded file to conversation",
		"chunks", len(chunks),
		"attached", len(attached),
		"policy", s.config.UploadPolicy.String())
	return chunks, nil
}

// candidates fetches the unranked retrieval window for query.
func (s *Service) candidates(ctx context.Context, query string, topK int, useRanking bool) (models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		chunks, err := s.config.Store.ListAll(ctx, topK)
		if err != nil {
			return nil, err
		}
		out := make(models.RetrievalResult, len(chunks))
		for i, c := range chunks {
			out[i] = models.FromHit(models.SearchHit{Chunk: c})
		}
		return out, nil
	}

	vector, err := s.config.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	k := topK
	if useRanking && s.config.Ranker != nil && s.config.Candidates > k {
		k = s.config.Candidates
	}

	hits, err := s.config.Store.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	out := make(models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		if s.config.MinScore > 0 && hit.Score < s.config.MinScore {
			continue
		}
		out = append(out, models.FromHit(hit))
	}
	return out, nil
}

// rank reorders candidates with the configured ranker. Listing queries and
// services without a ranker keep the incoming order.
func (s *Service) rank(ctx context.Context, query string, candidates models.RetrievalResult) (models.RetrievalResult, error) {
	if s.config.Ranker == nil || strings.TrimSpace(query) == "" || len(candidates) < 2 {
		return candidates, nil
	}

	order, err := s.config.Ranker.Rank(ctx, query, candidates.Contents())
	if err != nil {
		return nil, fmt.Errorf("ranking candidates: %w", err)
	}
	if len(order) != len(candidates) {
		return nil, fmt.Errorf("ranker returned %d positions for %d candidates", len(order), len(candidates))
	}

	seen := make([]bool, len(candidates))
	ranked := make(models.RetrievalResult, 0, len(order))
	for _, i := range order {
		if i < 0 || i >= len(candidates) || seen[i] {
			return nil, fmt.Errorf("ranker order is not a permutation: position %d", i)
		}
		seen[i] = true
		ranked = append(ranked, candidates[i])
	}
	return ranked, nil
}

func uploadedEntries(texts []string) models.RetrievalResult {
	out := make(models.RetrievalResult, len(texts))
	for i, t := range texts {
		out[i] = models.Retrieved{
			Locator: models.Unknown(),
			Content: t,
			Source:  models.SourceUpload,
		}
	}
	return out
}

func truncate(r models.RetrievalResult, n int) models.RetrievalResult {
	if len(r) > n {
		return r[:n]
	}
	return r
}
