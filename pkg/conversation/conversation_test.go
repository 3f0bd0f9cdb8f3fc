package conversation_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
	"github.com/xhad/docrag/pkg/conversation"
)

func stores(t *testing.T) map[string]types.ConversationStore {
	t.Helper()
	sqlite, err := conversation.NewSQLiteStore(filepath.Join(t.TempDir(), "conversations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]types.ConversationStore{
		"memory": conversation.NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.GetUploadedChunks(ctx, "missing")
			assert.ErrorIs(t, err, models.ErrNotFound)
			_, err = s.AppendUploadedChunks(ctx, "missing", []string{"x"}, false)
			assert.ErrorIs(t, err, models.ErrNotFound)
			assert.ErrorIs(t, s.Create(ctx, ""), models.ErrInvalidInput)

			require.NoError(t, s.Create(ctx, "c1"))
			chunks, err := s.GetUploadedChunks(ctx, "c1")
			require.NoError(t, err)
			assert.Empty(t, chunks)

			all, err := s.AppendUploadedChunks(ctx, "c1", []string{"one", "two"}, true)
			require.NoError(t, err)
			assert.Equal(t, []string{"one", "two"}, all)

			all, err = s.AppendUploadedChunks(ctx, "c1", []string{"ignored"}, true)
			require.NoError(t, err)
			assert.Equal(t, []string{"one", "two"}, all)

			all, err = s.AppendUploadedChunks(ctx, "c1", []string{"three"}, false)
			require.NoError(t, err)
			assert.Equal(t, []string{"one", "two", "three"}, all)
			require.NoError(t, s.Create(ctx, "c1"))

			chunks, err = s.GetUploadedChunks(ctx, "c1")
			require.NoError(t, err)
			assert.Equal(t, []string{"one", "two", "three"}, chunks)
		})
	}
}

func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "conversations.db")

	s, err := conversation.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, "c1"))
	_, err = s.AppendUploadedChunks(ctx, "c1", []string{"kept"}, false)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = conversation.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	chunks, err := s.GetUploadedChunks(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, chunks)
}

func TestAttach(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		policy conversation.UploadPolicy
		first  []string
		second []string
		want   []string
		stored []string
	}{
		{
			name:   "append if empty keeps the first upload",
			policy: conversation.AppendIfEmpty,
			first:  []string{"a1", "a2"},
			second: []string{"b1"},
			want:   []string{"a1", "a2"},
			stored: []string{"a1", "a2"},
		},
		{
			name:   "always append accumulates",
			policy: conversation.AlwaysAppend,
			first:  []string{"a1", "a2"},
			second: []string{"b1"},
			want:   []string{"a1", "a2", "b1"},
			stored: []string{"a1", "a2", "b1"},
		},
		{
			name:   "empty first upload leaves room",
			policy: conversation.AppendIfEmpty,
			first:  nil,
			second: []string{"b1"},
			want:   []string{"b1"},
			stored: []string{"b1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := conversation.NewMemoryStore()
			require.NoError(t, s.Create(ctx, "c"))

			got, err := conversation.Attach(ctx, s, tt.policy, "c", tt.first)
			require.NoError(t, err)
			assert.Equal(t, len(tt.first), len(got))

			got, err = conversation.Attach(ctx, s, tt.policy, "c", tt.second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			stored, err := s.GetUploadedChunks(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, tt.stored, stored)
		})
	}

	_, err := conversation.Attach(ctx, conversation.NewMemoryStore(), conversation.AlwaysAppend, "nope", []string{"x"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAttachConcurrentUploadsKeepFirst(t *testing.T) {
	ctx := context.Background()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Create(ctx, "c"))

			const uploads = 8
			var wg sync.WaitGroup
			errs := make(chan error, uploads)
			for i := 0; i < uploads; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := conversation.Attach(ctx, s, conversation.AppendIfEmpty, "c",
						[]string{fmt.Sprintf("upload-%d-a", i), fmt.Sprintf("upload-%d-b", i)})
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			stored, err := s.GetUploadedChunks(ctx, "c")
			require.NoError(t, err)
			require.Len(t, stored, 2)
			assert.Equal(t, strings.TrimSuffix(stored[0], "-a"), strings.TrimSuffix(stored[1], "-b"))
		})
	}
}

func TestParseUploadPolicy(t *testing.T) {
	p, err := conversation.ParseUploadPolicy("always_append")
	require.NoError(t, err)
	assert.Equal(t, conversation.AlwaysAppend, p)

	p, err = conversation.ParseUploadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, conversation.AppendIfEmpty, p)
	assert.Equal(t, "append_if_empty", p.String())

	_, err = conversation.ParseUploadPolicy("replace")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
