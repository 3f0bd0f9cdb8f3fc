package conversation

import (
	"context"
	"fmt"
	"sync"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

var _ types.ConversationStore = (*MemoryStore)(nil)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conversations: make(map[string][]string)}
}

// Create registers id. Creating an existing conversation is a no-op.
func (m *MemoryStore) Create(_ context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty conversation id", models.ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		m.conversations[id] = nil
	}
	return nil
}

func (m *MemoryStore) GetUploadedChunks(_ context.Context, id string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chunks, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}
	return append([]string(nil), chunks...), nil
}

func (m *MemoryStore) AppendUploadedChunks(_ context.Context, id string, chunks []string, onlyIfEmpty bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}
	if len(chunks) > 0 && !(onlyIfEmpty && len(existing) > 0) {
		existing = append(existing, chunks...)
		m.conversations[id] = existing
	}
	return append([]string(nil), existing...), nil
}

func (m *MemoryStore) Close() error {
	return nil
}
