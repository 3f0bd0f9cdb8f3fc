package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat rejects a file before any extraction is attempted.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtractionFailure covers malformed files, unreadable archives and
	// failed legacy document conversion.
	ErrExtractionFailure = errors.New("extraction failure")

	// ErrEmbeddingUnavailable means the embedding model could not be reached
	// or returned an unusable answer. Nothing is stored when it occurs.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrEmptyContext means there is nothing to ground an answer on.
	ErrEmptyContext = errors.New("no documents found for query")

	// ErrIndexCorruption means a stored entry could not be decoded.
	ErrIndexCorruption = errors.New("index corruption")

	ErrNotFound = errors.New("not found")

	ErrInvalidInput = errors.New("invalid input")
)

// Pipeline stages reported in StageError.
const (
	StageDetect  = "detect"
	StageExtract = "extract"
	StageEmbed   = "embed"
	StageStore   = "store"
)

// StageError ties a failure to the file and pipeline stage it happened in.
type StageError struct {
	File  string
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.File, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError returns nil when err is nil.
func NewStageError(file, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{File: file, Stage: stage, Err: err}
}
