package llm

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashDimensions = 768

// HashingClient is an offline embedding client. It hashes lowercased words
// and adjacent word pairs into a fixed number of signed buckets and
// L2-normalises the result, so identical texts always get identical vectors
// and texts sharing vocabulary land close together.
type HashingClient struct {
	dims int
}

func NewHashingClient(dims int) *HashingClient {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashingClient{dims: dims}
}

func (c *HashingClient) Dimensions() int {
	return c.dims
}

func (c *HashingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = c.embed(text)
	}
	return out, nil
}

func (c *HashingClient) embed(text string) []float32 {
	v := make([]float32, c.dims)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		c.add(v, w, 1)
		if i > 0 {
			c.add(v, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (c *HashingClient) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	if sum>>63 == 1 {
		weight = -weight
	}
	v[sum%uint64(c.dims)] += weight
}
