package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/docrag/internal/models"
)

// ivfflatLists is the list count of the ivfflat index. Search probes every
// list so results are exact and top_k beyond the stored count returns all.
const ivfflatLists = 100

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// PGVectorStore keeps chunks in a Postgres table with a pgvector column and
// an ivfflat cosine index.
type PGVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			file_name TEXT NOT NULL,
			locator TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			chunk_id INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, pgx.Identifier{vs.config.TableName}.Sanitize(), vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// Create vector index
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = %d)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(),
		pgx.Identifier{vs.config.TableName}.Sanitize(),
		ivfflatLists)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *PGVectorStore) table() string {
	return pgx.Identifier{vs.config.TableName}.Sanitize()
}

// Store inserts all chunks in a single transaction, sent in batches.
func (vs *PGVectorStore) Store(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if _, err := validateBatch(chunks, vs.config.VectorDim); err != nil {
		return err
	}

	// Begin transaction
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, file_name, locator, created_at, chunk_id, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`, vs.table())

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(chunks))

		batch := &pgx.Batch{}
		for _, c := range chunks[start:end] {
			locator, err := c.Locator.MarshalText()
			if err != nil {
				return err
			}
			batch.Queue(stmt,
				uuid.New().String(),
				c.FileName,
				string(locator),
				c.Timestamp,
				c.ChunkID,
				sanitizeUTF8(c.Text),
				pgvector.NewVector(c.Vector),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (vs *PGVectorStore) Search(ctx context.Context, vector []float32, topK int) ([]models.SearchHit, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != vs.config.VectorDim {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d",
			models.ErrInvalidInput, len(vector), vs.config.VectorDim)
	}

	query := fmt.Sprintf(`
		SELECT file_name, locator, created_at, chunk_id, content, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, seq
		LIMIT $2`, vs.table())

	// Read-only; rolled back once the rows are read.
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", ivfflatLists)); err != nil {
		return nil, fmt.Errorf("failed to set probes: %w", err)
	}

	rows, err := tx.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var hits []models.SearchHit
	for rows.Next() {
		var (
			hit     models.SearchHit
			locator string
		)
		if err := rows.Scan(&hit.Chunk.FileName, &locator, &hit.Chunk.Timestamp,
			&hit.Chunk.ChunkID, &hit.Chunk.Text, &hit.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if hit.Chunk.Locator, err = models.ParseLocator(locator); err != nil {
			return nil, err
		}
		hit.Chunk.Timestamp = hit.Chunk.Timestamp.UTC()
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return hits, nil
}

// ListAll scans entries in insertion order. limit <= 0 returns everything.
func (vs *PGVectorStore) ListAll(ctx context.Context, limit int) ([]models.Chunk, error) {
	query := fmt.Sprintf(`
		SELECT file_name, locator, created_at, chunk_id, content
		FROM %s
		ORDER BY seq`, vs.table())

	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			c         models.Chunk
			locator   string
			createdAt time.Time
		)
		if err := rows.Scan(&c.FileName, &locator, &createdAt, &c.ChunkID, &c.Text); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if c.Locator, err = models.ParseLocator(locator); err != nil {
			return nil, err
		}
		c.Timestamp = createdAt.UTC()
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return chunks, nil
}

func (vs *PGVectorStore) DeleteAll(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "TRUNCATE "+vs.table()); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

func (vs *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := vs.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+vs.table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (vs *PGVectorStore) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}
