package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
)

var _ types.ConversationStore = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT    PRIMARY KEY,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS uploaded_chunks (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id TEXT    NOT NULL REFERENCES conversations (id),
	content         TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS uploaded_chunks_conversation_idx ON uploaded_chunks (conversation_id);
`

// SQLiteStore persists conversation uploads in a SQLite file.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating conversation directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating conversation schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Create registers id. Creating an existing conversation is a no-op.
func (s *SQLiteStore) Create(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty conversation id", models.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO conversations (id, created_at) VALUES (?, ?)",
		id, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("creating conversation %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) GetUploadedChunks(ctx context.Context, id string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := exists(ctx, tx, id); err != nil {
		return nil, err
	}
	return uploaded(ctx, tx, id)
}

// AppendUploadedChunks checks the policy and inserts chunks in one
// transaction.
func (s *SQLiteStore) AppendUploadedChunks(ctx context.Context, id string, chunks []string, onlyIfEmpty bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := exists(ctx, tx, id); err != nil {
		return nil, err
	}

	existing, err := uploaded(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 || (onlyIfEmpty && len(existing) > 0) {
		return existing, nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO uploaded_chunks (conversation_id, content) VALUES (?, ?)")
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, id, c); err != nil {
			return nil, fmt.Errorf("storing uploaded chunk: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing uploaded chunks: %w", err)
	}
	return append(existing, chunks...), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func exists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM conversations WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("conversation %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("looking up conversation %s: %w", id, err)
	}
	return nil
}

func uploaded(ctx context.Context, tx *sql.Tx, id string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT content FROM uploaded_chunks WHERE conversation_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("reading uploaded chunks: %w", err)
	}
	defer rows.Close()

	var chunks []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("reading uploaded chunks: %w", err)
		}
		chunks = append(chunks, content)
	}
	return chunks, rows.Err()
}
