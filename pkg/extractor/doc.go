package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/xhad/docrag/internal/models"
)

// Converter turns a legacy .doc file into a .docx file inside outDir and
// returns the path of the result.
type Converter interface {
	Convert(ctx context.Context, path, outDir string) (string, error)
}

// SofficeConverter shells out to LibreOffice in headless mode.
type SofficeConverter struct {
	command string
	timeout time.Duration
}

func NewSofficeConverter(command string, timeout time.Duration) *SofficeConverter {
	if command == "" {
		command = "soffice"
	}
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &SofficeConverter{command: command, timeout: timeout}
}

func (c *SofficeConverter) Convert(ctx context.Context, path, outDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.command, "--headless", "--convert-to", "docx", "--outdir", outDir, path)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w: %s", c.command, err, strings.TrimSpace(stderr.String()))
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(outDir, base+".docx")
	if _, err := os.Stat(out); err != nil {
		return "", fmt.Errorf("%s produced no output: %w", c.command, err)
	}
	return out, nil
}

func extractDOC(ctx context.Context, path string, converter Converter) ([]models.RawSegment, error) {
	outDir, err := os.MkdirTemp("", "docrag-doc-*")
	if err != nil {
		return nil, fmt.Errorf("creating conversion dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	converted, err := converter.Convert(ctx, path, outDir)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: converting %s: %v", models.ErrExtractionFailure, filepath.Base(path), err)
	}

	return extractDOCX(ctx, converted)
}
