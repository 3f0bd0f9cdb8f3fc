package types

import (
	"context"

	"github.com/xhad/docrag/internal/models"
)

// Core interfaces

// VectorStore persists embedded chunks and answers nearest-neighbour queries.
// A single Store or DeleteAll call is all-or-nothing.
type VectorStore interface {
	Store(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, vector []float32, topK int) ([]models.SearchHit, error)
	ListAll(ctx context.Context, limit int) ([]models.Chunk, error)
	DeleteAll(ctx context.Context) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Embedder maps texts to vectors. Indexing and querying must use the same model.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// Ranker reorders candidates by relevance to the query and returns the
// permutation as indexes into candidates.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []string) ([]int, error)
}

// ConversationStore keeps the chunk texts uploaded during a conversation.
type ConversationStore interface {
	Create(ctx context.Context, conversationID string) error
	GetUploadedChunks(ctx context.Context, conversationID string) ([]string, error)
	// AppendUploadedChunks adds chunks as one atomic step and returns every
	// uploaded text of the conversation afterwards, oldest first. With
	// onlyIfEmpty nothing is added once the conversation holds uploads.
	AppendUploadedChunks(ctx context.Context, conversationID string, chunks []string, onlyIfEmpty bool) ([]string, error)
	Close() error
}

// Message is one role-tagged entry of a structured prompt.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem = "system"
	RoleHuman  = "human"
	RoleAI     = "ai"
)

// Generator produces text from a structured prompt.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}
