// Package ranker reorders retrieved candidates by query relevance.
package ranker

import (
	"context"
	"fmt"
	"sort"

	"github.com/xhad/docrag/internal/types"
)

var _ types.Ranker = (*Ranker)(nil)

// Scorer assigns a relevance score to every candidate for query. The
// returned slice is parallel to candidates.
type Scorer interface {
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Ranker sorts candidates by descending score. Candidates with equal scores
// keep their retrieval order.
type Ranker struct {
	scorer Scorer
}

func New(scorer Scorer) *Ranker {
	return &Ranker{scorer: scorer}
}

// NewWithScorerName builds a Ranker around one of the bundled scorers:
// "bleve" (default) or "overlap".
func NewWithScorerName(name string) (*Ranker, error) {
	switch name {
	case "", "bleve":
		return New(NewBleveScorer()), nil
	case "overlap":
		return New(OverlapScorer{}), nil
	default:
		return nil, fmt.Errorf("unknown scorer: %s", name)
	}
}

// Rank returns a permutation of candidate indexes, most relevant first.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []string) ([]int, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	scores, err := r.scorer.Score(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("scoring candidates: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("scorer returned %d scores for %d candidates", len(scores), len(candidates))
	}

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	return order, nil
}
