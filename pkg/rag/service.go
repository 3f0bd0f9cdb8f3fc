// Package rag ties extraction, chunking, embedding, indexing and ranking
// together into the ingestion and retrieval operations used by the CLI.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xhad/docrag/internal/logger"
	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/internal/types"
	"github.com/xhad/docrag/pkg/conversation"
	"github.com/xhad/docrag/pkg/extractor"
	"github.com/xhad/docrag/pkg/processor"
)

type ServiceConfig struct {
	Extractor *extractor.Extractor
	Processor *processor.Processor
	Embedder  types.Embedder
	Store     types.VectorStore

	// Ranker is optional. Without one, ranking requests keep similarity order.
	Ranker types.Ranker
	// Candidates is how many hits are fetched before ranking.
	Candidates int
	// MinScore drops search hits scoring below it. 0 disables the filter.
	MinScore float64

	// Conversations is optional; conversation operations fail without it.
	Conversations types.ConversationStore
	UploadPolicy  conversation.UploadPolicy

	// Generator is only needed by Answer.
	Generator        types.Generator
	SystemPrompt     string
	HistoryMaxLength int

	Logger *slog.Logger
	Clock  func() time.Time
}

type Service struct {
	config ServiceConfig
	log    *slog.Logger
}

func NewWithConfig(config ServiceConfig) (*Service, error) {
	if config.Extractor == nil {
		return nil, fmt.Errorf("%w: extractor is required", models.ErrInvalidInput)
	}
	if config.Processor == nil {
		return nil, fmt.Errorf("%w: processor is required", models.ErrInvalidInput)
	}
	if config.Embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", models.ErrInvalidInput)
	}
	if config.Store == nil {
		return nil, fmt.Errorf("%w: vector store is required", models.ErrInvalidInput)
	}
	if config.Candidates <= 0 {
		config.Candidates = 20
	}
	if config.HistoryMaxLength <= 0 {
		config.HistoryMaxLength = 10000
	}
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Service{config: config, log: config.Logger}, nil
}

// ProcessAndIndex runs one file through detection, extraction, chunking and
// embedding, then stores every chunk in a single call. Nothing is stored
// unless all chunks were embedded. The returned chunks carry no vectors.
func (s *Service) ProcessAndIndex(ctx context.Context, path string) ([]models.Chunk, error) {
	start := time.Now()
	name := filepath.Base(path)
	log := s.log.With("file", name, "ingest_id", uuid.NewString())

	chunks, format, err := s.chunkFile(ctx, path, log)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		log.Info("no text found", "format", format.String())
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.config.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, models.NewStageError(name, models.StageEmbed, err)
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}

	if err := s.config.Store.Store(ctx, chunks); err != nil {
		return nil, models.NewStageError(name, models.StageStore, err)
	}

	out := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = c.WithoutVector()
	}

	log.Info("indexed file",
		"format", format.String(),
		"chunks", len(out),
		"elapsed", time.Since(start))
	return out, nil
}

// chunkFile detects, extracts and chunks path without embedding.
func (s *Service) chunkFile(ctx context.Context, path string, log *slog.Logger) ([]models.Chunk, extractor.Format, error) {
	name := filepath.Base(path)

	format, err := extractor.DetectFormat(name, "")
	if err != nil {
		return nil, format, models.NewStageError(name, models.StageDetect, err)
	}

	if format == extractor.FormatXLSX {
		if macros, err := extractor.HasMacros(path); err == nil && macros {
			log.Warn("workbook contains macros", "format", format.String())
		}
	}

	segments, err := s.config.Extractor.Extract(ctx, path, format)
	if err != nil {
		return nil, format, models.NewStageError(name, models.StageExtract, err)
	}

	return s.config.Processor.Process(name, format, segments), format, nil
}

// ProcessFiles ingests each path independently. A failing file is recorded
// in the report and does not stop the others. onFile, when set, is called
// after every file.
func (s *Service) ProcessFiles(ctx context.Context, paths []string, onFile func(models.FileOutcome)) (models.FolderReport, error) {
	var report models.FolderReport
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome := models.FileOutcome{File: filepath.Base(path)}
		chunks, err := s.ProcessAndIndex(ctx, path)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			outcome.Err = err
			s.log.Warn("failed to ingest file", "file", outcome.File, "stage", stageOf(err), "error", err)
		}
		outcome.Chunks = len(chunks)

		report.Outcomes = append(report.Outcomes, outcome)
		if onFile != nil {
			onFile(outcome)
		}
	}
	return report, nil
}

// ProcessFolder ingests the regular files directly inside dir, in name
// order. Subdirectories are not visited.
func (s *Service) ProcessFolder(ctx context.Context, dir string, onFile func(models.FileOutcome)) (models.FolderReport, error) {
	paths, err := FolderFiles(dir)
	if err != nil {
		return models.FolderReport{}, err
	}
	return s.ProcessFiles(ctx, paths, onFile)
}

// FolderFiles lists the regular files directly inside dir, sorted by name.
func FolderFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading folder %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// AddChunk embeds and stores a single piece of text under the given file
// name and locator. The text gets the same leader stripping and whitespace
// collapsing as extracted text.
func (s *Service) AddChunk(ctx context.Context, fileName string, locator models.Locator, text string) (models.Chunk, error) {
	text = strings.Join(strings.Fields(extractor.StripLeaders(text)), " ")
	if fileName == "" || text == "" {
		return models.Chunk{}, fmt.Errorf("%w: file name and text are required", models.ErrInvalidInput)
	}

	vectors, err := s.config.Embedder.Embed(ctx, []string{text})
	if err != nil {
		return models.Chunk{}, models.NewStageError(fileName, models.StageEmbed, err)
	}

	chunk := models.Chunk{
		FileName:  fileName,
		Locator:   locator,
		Timestamp: s.config.Clock(),
		ChunkID:   1,
		Text:      text,
		Vector:    vectors[0],
	}
	if err := s.config.Store.Store(ctx, []models.Chunk{chunk}); err != nil {
		return models.Chunk{}, models.NewStageError(fileName, models.StageStore, err)
	}
	return chunk.WithoutVector(), nil
}

// ListAll returns up to limit indexed chunks in insertion order; limit <= 0
// returns everything.
func (s *Service) ListAll(ctx context.Context, limit int) ([]models.Chunk, error) {
	return s.config.Store.ListAll(ctx, limit)
}

func (s *Service) DeleteAll(ctx context.Context) error {
	if err := s.config.Store.DeleteAll(ctx); err != nil {
		return err
	}
	s.log.Info("cleared index")
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.config.Store.Count(ctx)
}

func stageOf(err error) string {
	var stageErr *models.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
