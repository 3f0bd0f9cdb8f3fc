package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/pkg/store"
)

var stamp = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func chunk(file string, id int, text string, vector ...float32) models.Chunk {
	return models.Chunk{
		FileName:  file,
		Locator:   models.Page(id),
		Timestamp: stamp,
		ChunkID:   id,
		Text:      text,
		Vector:    vector,
	}
}

func openStore(t *testing.T) (*store.SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index", "index.db")
	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestSQLiteStoreSearch(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, s.Store(ctx, []models.Chunk{
		chunk("a.pdf", 1, "north", 1, 0, 0),
		chunk("a.pdf", 2, "north east", 1, 1, 0),
		chunk("b.pdf", 1, "up", 0, 0, 1),
	}))

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "north", hits[0].Chunk.Text)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Equal(t, "north east", hits[1].Chunk.Text)
	assert.Nil(t, hits[0].Chunk.Vector)
	assert.Equal(t, models.Page(1), hits[0].Chunk.Locator)
	assert.True(t, stamp.Equal(hits[0].Chunk.Timestamp))

	// topK larger than the index returns everything
	hits, err = s.Search(ctx, []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	assert.Equal(t, "up", hits[2].Chunk.Text)
}

func TestSQLiteStoreStableTies(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, s.Store(ctx, []models.Chunk{
		chunk("a.pdf", 1, "first", 0, 1),
		chunk("a.pdf", 2, "second", 0, 1),
		chunk("a.pdf", 3, "third", 0, 1),
	}))

	hits, err := s.Search(ctx, []float32{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{hits[0].Chunk.Text, hits[1].Chunk.Text, hits[2].Chunk.Text})
}

func TestSQLiteStoreEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	hits, err := s.Search(ctx, []float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	all, err := s.ListAll(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, all)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStoreDuplicatesAllowed(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	batch := []models.Chunk{chunk("a.pdf", 1, "same", 1, 0)}
	require.NoError(t, s.Store(ctx, batch))
	require.NoError(t, s.Store(ctx, batch))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStoreRejectsBadBatches(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	err := s.Store(ctx, []models.Chunk{chunk("a.pdf", 1, "no vector")})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	err = s.Store(ctx, []models.Chunk{
		chunk("a.pdf", 1, "ok", 1, 0),
		chunk("a.pdf", 2, "wrong width", 1, 0, 0),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a rejected batch stores nothing")

	require.NoError(t, s.Store(ctx, []models.Chunk{chunk("a.pdf", 1, "ok", 1, 0)}))
	err = s.Store(ctx, []models.Chunk{chunk("b.pdf", 1, "wider", 1, 0, 0)})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = s.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSQLiteStoreListAll(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	var batch []models.Chunk
	for i := 1; i <= 5; i++ {
		batch = append(batch, chunk("a.pdf", i, fmt.Sprintf("chunk %d", i), float32(i), 1))
	}
	require.NoError(t, s.Store(ctx, batch))

	first, err := s.ListAll(ctx, 0)
	require.NoError(t, err)
	second, err := s.ListAll(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 5)
	assert.Equal(t, "chunk 1", first[0].Text)
	assert.Nil(t, first[0].Vector)

	limited, err := s.ListAll(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Store(ctx, []models.Chunk{
		{FileName: "budget.xlsx", Locator: models.Sheet("Q1"), Timestamp: stamp, ChunkID: 1, Text: "totals", Vector: []float32{0.5, 0.5}},
		{FileName: "r.pdf", Locator: models.PageRange(2, 4), Timestamp: stamp, ChunkID: 1, Text: "range", Vector: []float32{0.1, 0.9}},
	}))
	require.NoError(t, s.Close())

	reopened, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.ListAll(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, models.Sheet("Q1"), all[0].Locator)
	assert.Equal(t, models.PageRange(2, 4), all[1].Locator)

	hits, err := reopened.Search(ctx, []float32{0.1, 0.9}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "range", hits[0].Chunk.Text)
}

func TestSQLiteStoreDeleteAll(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	require.NoError(t, s.Store(ctx, []models.Chunk{chunk("a.pdf", 1, "x", 1, 1)}))
	require.NoError(t, s.DeleteAll(ctx))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	// a fresh dimension can be used once the index is empty
	require.NoError(t, s.Store(ctx, []models.Chunk{chunk("a.pdf", 1, "x", 1, 1, 1)}))
}

func TestSQLiteStoreConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s, _ := openStore(t)

	const writers, perBatch = 8, 10

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var batch []models.Chunk
			for i := 1; i <= perBatch; i++ {
				batch = append(batch, chunk(fmt.Sprintf("f%d.pdf", w), i, "text", float32(w), float32(i)))
			}
			assert.NoError(t, s.Store(ctx, batch))
		}(w)

		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Search(ctx, []float32{1, 1}, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers*perBatch, n)

	// each writer's batch stays contiguous and ordered
	all, err := s.ListAll(ctx, 0)
	require.NoError(t, err)
	for i := 0; i < len(all); i += perBatch {
		for j := 0; j < perBatch; j++ {
			assert.Equal(t, all[i].FileName, all[i+j].FileName)
			assert.Equal(t, j+1, all[i+j].ChunkID)
		}
	}
}
