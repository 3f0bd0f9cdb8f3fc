package extractor

import (
	"archive/zip"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/xhad/docrag/internal/models"
)

const vbaProjectPart = "xl/vbaProject.bin"

func extractXLSX(ctx context.Context, path string) ([]models.RawSegment, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook: %v", models.ErrExtractionFailure, err)
	}
	defer f.Close()

	var segments []models.RawSegment
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet %q: %v", models.ErrExtractionFailure, sheet, err)
		}

		if text := sheetText(rows); text != "" {
			segments = append(segments, models.RawSegment{Text: text, Locator: models.Sheet(sheet)})
		}
	}

	return segments, nil
}

// sheetText trims every cell, drops rows with no content and joins what is
// left row-major with single spaces.
func sheetText(rows [][]string) string {
	var words []string
	for _, row := range rows {
		var cells []string
		for _, cell := range row {
			if cell = strings.TrimSpace(cell); cell != "" {
				cells = append(cells, cell)
			}
		}
		words = append(words, cells...)
	}
	return strings.Join(words, " ")
}

// HasMacros reports whether the workbook at path carries a VBA project.
func HasMacros(path string) (bool, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return false, fmt.Errorf("%w: opening workbook: %v", models.ErrExtractionFailure, err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if strings.EqualFold(file.Name, vbaProjectPart) {
			return true, nil
		}
	}
	return false, nil
}
