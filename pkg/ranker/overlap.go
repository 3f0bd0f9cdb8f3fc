package ranker

import (
	"context"
	"math"
	"regexp"
	"strings"
)

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

// OverlapScorer scores each candidate independently by the Ochiai
// coefficient of its word set against the query's: |A∩B| / sqrt(|A||B|).
type OverlapScorer struct{}

func (OverlapScorer) Score(_ context.Context, query string, candidates []string) ([]float64, error) {
	qset := tokenSet(query)
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = ochiai(qset, tokenSet(c))
	}
	return scores, nil
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func ochiai(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range b {
		if _, ok := a[t]; ok {
			inter++
		}
	}
	return float64(inter) / math.Sqrt(float64(len(a))*float64(len(b)))
}
