package ranker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
)

// BleveScorer scores candidates with bleve's full-text relevance by
// indexing them into a throwaway in-memory index. Candidates that do not
// match the query score 0.
type BleveScorer struct{}

func NewBleveScorer() *BleveScorer {
	return &BleveScorer{}
}

type candidateDoc struct {
	Text string `json:"text"`
}

func (s *BleveScorer) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	scores := make([]float64, len(candidates))
	if len(candidates) == 0 || query == "" {
		return scores, nil
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating ranking index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	for i, c := range candidates {
		if err := batch.Index(strconv.Itoa(i), candidateDoc{Text: c}); err != nil {
			return nil, fmt.Errorf("indexing candidate %d: %w", i, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("indexing candidates: %w", err)
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("text")
	req := bleve.NewSearchRequestOptions(match, len(candidates), 0, false)

	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}

	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(scores) {
			continue
		}
		scores[i] = hit.Score
	}
	return scores, nil
}
