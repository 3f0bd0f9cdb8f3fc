// Package store holds the persistent vector indexes chunks are written to
// and searched from.
package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

var (
	_ types.VectorStore = (*SQLiteStore)(nil)
	_ types.VectorStore = (*PGVectorStore)(nil)
)

// validateBatch checks that every chunk is embedded and that all vectors
// share one dimension. want is the index dimension, or 0 if not yet known.
// It returns the batch dimension.
func validateBatch(chunks []models.Chunk, want int) (int, error) {
	dim := want
	for i, c := range chunks {
		if len(c.Vector) == 0 {
			return 0, fmt.Errorf("%w: chunk %d of %s has no vector", models.ErrInvalidInput, c.ChunkID, c.FileName)
		}
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) != dim {
			return 0, fmt.Errorf("%w: chunk %d (#%d in batch) has dimension %d, index expects %d",
				models.ErrInvalidInput, c.ChunkID, i, len(c.Vector), dim)
		}
		if c.Text == "" {
			return 0, fmt.Errorf("%w: chunk %d of %s is empty", models.ErrInvalidInput, c.ChunkID, c.FileName)
		}
	}
	return dim, nil
}

// cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector. Both must have the same length.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rankHits orders hits by descending score, keeping insertion order on ties,
// and truncates to k.
func rankHits(hits []models.SearchHit, k int) []models.SearchHit {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) ([]float32, error) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", models.ErrIndexCorruption, len(data))
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats, nil
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
