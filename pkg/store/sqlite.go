package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/xhad/docrag/internal/models"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	file_name  TEXT    NOT NULL,
	locator    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	chunk_id   INTEGER NOT NULL,
	content    TEXT    NOT NULL,
	dim        INTEGER NOT NULL,
	embedding  BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS chunks_file_name_idx ON chunks (file_name);
`

// SQLiteStore is an embedded vector index in a single SQLite file. Search is
// an exact cosine scan over every row. One writer at a time; readers run
// concurrently against the last committed state.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (creating if needed) the index at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// dimension returns the vector width of the stored entries, 0 when empty.
func (s *SQLiteStore) dimension(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}) (int, error) {
	var dim int
	err := q.QueryRowContext(ctx, "SELECT dim FROM chunks ORDER BY seq LIMIT 1").Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading index dimension: %w", err)
	}
	return dim, nil
}

// Store appends all chunks in one transaction.
func (s *SQLiteStore) Store(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	want, err := s.dimension(ctx, tx)
	if err != nil {
		return err
	}
	dim, err := validateBatch(chunks, want)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, file_name, locator, created_at, chunk_id, content, dim, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		locator, err := c.Locator.MarshalText()
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(),
			c.FileName,
			string(locator),
			c.Timestamp.UnixNano(),
			c.ChunkID,
			sanitizeUTF8(c.Text),
			dim,
			float32SliceToBytes(c.Vector),
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d of %s: %w", c.ChunkID, c.FileName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Search returns up to topK entries by descending cosine similarity.
func (s *SQLiteStore) Search(ctx context.Context, vector []float32, topK int) ([]models.SearchHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", models.ErrInvalidInput)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, locator, created_at, chunk_id, content, dim, embedding
		FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		chunk, err := scanChunk(rows, true)
		if err != nil {
			return nil, err
		}
		if len(chunk.Vector) != len(vector) {
			return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
				models.ErrInvalidInput, len(vector), len(chunk.Vector))
		}
		hits = append(hits, models.SearchHit{
			Chunk: chunk.WithoutVector(),
			Score: cosine(vector, chunk.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	return rankHits(hits, topK), nil
}

// ListAll scans entries in insertion order. limit <= 0 returns everything.
func (s *SQLiteStore) ListAll(ctx context.Context, limit int) ([]models.Chunk, error) {
	if limit <= 0 {
		limit = -1
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT file_name, locator, created_at, chunk_id, content, dim, embedding
		FROM chunks ORDER BY seq LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows, false)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	return chunks, nil
}

func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func scanChunk(rows *sql.Rows, withVector bool) (models.Chunk, error) {
	var (
		c         models.Chunk
		locator   string
		createdAt int64
		dim       int
		blob      []byte
	)
	if err := rows.Scan(&c.FileName, &locator, &createdAt, &c.ChunkID, &c.Text, &dim, &blob); err != nil {
		return models.Chunk{}, fmt.Errorf("failed to scan chunk: %w", err)
	}

	loc, err := models.ParseLocator(locator)
	if err != nil {
		return models.Chunk{}, err
	}
	c.Locator = loc
	c.Timestamp = time.Unix(0, createdAt).UTC()

	vector, err := bytesToFloat32Slice(blob)
	if err != nil {
		return models.Chunk{}, err
	}
	if len(vector) != dim {
		return models.Chunk{}, fmt.Errorf("%w: chunk %d of %s has %d floats, recorded dimension %d",
			models.ErrIndexCorruption, c.ChunkID, c.FileName, len(vector), dim)
	}
	if withVector {
		c.Vector = vector
	}
	return c, nil
}
