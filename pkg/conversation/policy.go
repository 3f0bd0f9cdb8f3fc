// Package conversation stores the chunk texts uploaded during a chat
// session and decides how new uploads join the retrieval candidates.
package conversation

import (
	"context"
	"fmt"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

// UploadPolicy controls what happens to a new upload when the conversation
// already holds uploaded chunks.
type UploadPolicy int

const (
	// AppendIfEmpty records new chunks only while the conversation has none.
	// Later uploads are ignored and the first upload keeps answering.
	AppendIfEmpty UploadPolicy = iota
	// AlwaysAppend records every upload.
	AlwaysAppend
)

func (p UploadPolicy) String() string {
	switch p {
	case AppendIfEmpty:
		return "append_if_empty"
	case AlwaysAppend:
		return "always_append"
	default:
		return fmt.Sprintf("UploadPolicy(%d)", int(p))
	}
}

func ParseUploadPolicy(s string) (UploadPolicy, error) {
	switch s {
	case "", "append_if_empty":
		return AppendIfEmpty, nil
	case "always_append":
		return AlwaysAppend, nil
	default:
		return 0, fmt.Errorf("%w: unknown upload policy %q", models.ErrInvalidInput, s)
	}
}

// Attach applies policy to newChunks for conversation id and returns the
// uploaded texts that should join the retrieval candidates, oldest first.
// The policy check and the append happen atomically inside the store.
func Attach(ctx context.Context, store types.ConversationStore, policy UploadPolicy, id string, newChunks []string) ([]string, error) {
	var onlyIfEmpty bool
	switch policy {
	case AppendIfEmpty:
		onlyIfEmpty = true
	case AlwaysAppend:
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, policy)
	}
	return store.AppendUploadedChunks(ctx, id, newChunks, onlyIfEmpty)
}
