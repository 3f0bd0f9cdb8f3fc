package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/xhad/docrag/internal/models"
)

// headingMaxWords is the word count below which a block counts as a heading.
const headingMaxWords = 5

func extractPDF(ctx context.Context, path string, blocks bool) (segments []models.RawSegment, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			segments = nil
			err = fmt.Errorf("%w: reading pdf: %v", models.ErrExtractionFailure, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening pdf: %v", models.ErrExtractionFailure, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		if blocks {
			rows, err := p.GetTextByRow()
			if err != nil {
				return nil, fmt.Errorf("%w: page %d: %v", models.ErrExtractionFailure, i, err)
			}
			lines := make([]string, 0, len(rows))
			for _, row := range rows {
				var b strings.Builder
				for _, word := range row.Content {
					b.WriteString(word.S)
				}
				lines = append(lines, b.String())
			}
			segments = append(segments, blockSegments(i, lines)...)
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", models.ErrExtractionFailure, i, err)
		}
		if seg, ok := pageSegment(i, text); ok {
			segments = append(segments, seg)
		}
	}

	return segments, nil
}

func pageSegment(page int, text string) (models.RawSegment, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.RawSegment{}, false
	}
	return models.RawSegment{Text: text, Locator: models.Page(page)}, true
}

// blockSegments groups a page's text blocks into segments. A heading block
// ends the running text and becomes a segment of its own.
func blockSegments(page int, blocks []string) []models.RawSegment {
	var (
		segments []models.RawSegment
		running  []string
	)

	flush := func() {
		if len(running) == 0 {
			return
		}
		segments = append(segments, models.RawSegment{
			Text:    strings.Join(running, " "),
			Locator: models.Page(page),
		})
		running = nil
	}

	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if isHeading(block) {
			flush()
			segments = append(segments, models.RawSegment{Text: block, Locator: models.Page(page)})
			continue
		}
		running = append(running, block)
	}
	flush()

	return segments
}

func isHeading(block string) bool {
	if len(strings.Fields(block)) < headingMaxWords {
		return true
	}

	hasLetter := false
	for _, r := range block {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}
