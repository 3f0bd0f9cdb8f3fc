// Package extractor turns PDF, Word and Excel files into ordered raw text
// segments tagged with where in the file they came from.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/docrag/internal/models"
)

type ExtractorConfig struct {
	// PDFBlocks switches PDF extraction from one segment per page to
	// row blocks with heading detection.
	PDFBlocks bool

	// Converter turns legacy .doc files into .docx. Defaults to soffice.
	Converter Converter
}

type Extractor struct {
	config ExtractorConfig
}

func NewWithConfig(config ExtractorConfig) *Extractor {
	if config.Converter == nil {
		config.Converter = NewSofficeConverter("", 0)
	}
	return &Extractor{config: config}
}

// Extract reads path as the given format and returns its segments in
// document order. Every failure wraps models.ErrExtractionFailure except
// an unknown format, which wraps models.ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, path string, format Format) ([]models.RawSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		segments []models.RawSegment
		err      error
	)

	switch format {
	case FormatPDF:
		segments, err = extractPDF(ctx, path, e.config.PDFBlocks)
	case FormatDOCX:
		segments, err = extractDOCX(ctx, path)
	case FormatDOC:
		segments, err = extractDOC(ctx, path, e.config.Converter)
	case FormatXLSX:
		segments, err = extractXLSX(ctx, path)
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, format)
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.Is(err, models.ErrExtractionFailure) {
			err = fmt.Errorf("%w: %v", models.ErrExtractionFailure, err)
		}
		return nil, err
	}

	return segments, nil
}
