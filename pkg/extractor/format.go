package extractor

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/xhad/docrag/internal/models"
)

// Format is the closed set of document formats the pipeline accepts.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatDOC
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatDOC:
		return "doc"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

var extensions = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".doc":  FormatDOC,
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSX,
}

var contentTypes = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": FormatDOCX,
	"application/msword": FormatDOC,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": FormatXLSX,
	"application/vnd.ms-excel.sheet.macroenabled.12":                    FormatXLSX,
}

// DetectFormat resolves the format from the file extension, falling back to
// the declared content type when the extension is not recognised.
func DetectFormat(name, contentType string) (Format, error) {
	if f, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return f, nil
	}

	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			if f, ok := contentTypes[strings.ToLower(mediaType)]; ok {
				return f, nil
			}
		}
	}

	return FormatUnknown, fmt.Errorf("%w: %s", models.ErrUnsupportedFormat, filepath.Base(name))
}

// Supported reports whether name has one of the accepted extensions.
func Supported(name string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}
