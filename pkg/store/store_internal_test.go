package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docrag/internal/models"
)

func TestFloat32Blob(t *testing.T) {
	in := []float32{0, -1.5, 3.25, 1e-7}
	out, err := bytesToFloat32Slice(float32SliceToBytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = bytesToFloat32Slice([]byte{1, 2, 3})
	assert.ErrorIs(t, err, models.ErrIndexCorruption)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosine([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "abc", sanitizeUTF8("a\xffbc"))
	assert.Equal(t, "héllo", sanitizeUTF8("héllo"))
}

func TestSQLiteStoreCorruptEntries(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Store(ctx, []models.Chunk{{
		FileName: "a.pdf", Locator: models.Page(1), Timestamp: time.Now(), ChunkID: 1, Text: "x", Vector: []float32{1, 0},
	}}))

	_, err = s.db.Exec("UPDATE chunks SET embedding = x'0102'")
	require.NoError(t, err)
	_, err = s.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, models.ErrIndexCorruption)

	_, err = s.db.Exec("UPDATE chunks SET embedding = ?, locator = 'chapter:3'", float32SliceToBytes([]float32{1, 0}))
	require.NoError(t, err)
	_, err = s.ListAll(ctx, 0)
	assert.ErrorIs(t, err, models.ErrIndexCorruption)
}
