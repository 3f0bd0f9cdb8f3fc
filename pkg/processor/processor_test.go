package processor_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/pkg/extractor"
	"github.com/xhad/docrag/pkg/processor"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newProcessor(t *testing.T, minWords, overlap int) *processor.Processor {
	t.Helper()
	p, err := processor.NewWithConfig(processor.ProcessorConfig{
		MinWords: minWords,
		Overlap:  overlap,
		Clock:    func() time.Time { return fixedTime },
	})
	require.NoError(t, err)
	return p
}

func numberedWords(from, to int) string {
	words := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		words = append(words, fmt.Sprintf("w%d", i))
	}
	return strings.Join(words, " ")
}

func TestNewWithConfig(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{})
	require.NoError(t, err)
	assert.Equal(t, processor.DefaultMinWords, p.MinWords())
	assert.Equal(t, processor.DefaultOverlap, p.Overlap())

	p, err = processor.NewWithConfig(processor.ProcessorConfig{MinWords: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Overlap())

	for _, cfg := range []processor.ProcessorConfig{
		{MinWords: 10, Overlap: 10},
		{MinWords: 10, Overlap: 12},
		{MinWords: 10, Overlap: -1},
		{MinWords: -5},
	} {
		_, err := processor.NewWithConfig(cfg)
		assert.ErrorIs(t, err, models.ErrInvalidInput, "%+v", cfg)
	}
}

func TestProcessor_Scenario250Words(t *testing.T) {
	p := newProcessor(t, 100, 50)

	segments := []models.RawSegment{{Text: numberedWords(1, 250), Locator: models.Unknown()}}
	chunks := p.Process("notes.docx", extractor.FormatDOCX, segments)

	require.Len(t, chunks, 4)
	wantRanges := [][2]int{{1, 100}, {51, 150}, {101, 200}, {151, 250}}
	for i, c := range chunks {
		assert.Equal(t, numberedWords(wantRanges[i][0], wantRanges[i][1]), c.Text)
		assert.Equal(t, "notes.docx", c.FileName)
		assert.Equal(t, models.Unknown(), c.Locator)
		assert.Equal(t, i+1, c.ChunkID)
		assert.Equal(t, fixedTime, c.Timestamp)
		assert.Nil(t, c.Vector)
	}
}

func TestProcessor_ChunkCountFormula(t *testing.T) {
	configs := [][2]int{{100, 50}, {10, 3}, {7, 0}, {5, 4}}

	for _, cfg := range configs {
		n, o := cfg[0], cfg[1]
		p := newProcessor(t, n, o)

		for l := 0; l <= 3*n+7; l++ {
			segments := []models.RawSegment{{Text: numberedWords(1, l)}}
			if l == 0 {
				segments = []models.RawSegment{{Text: "   "}}
			}
			chunks := p.Process("f.pdf", extractor.FormatPDF, segments)

			want := 0
			switch {
			case l == 0:
			case l <= n:
				want = 1
			default:
				want = (l - o + (n - o) - 1) / (n - o)
			}
			require.Len(t, chunks, want, "N=%d O=%d L=%d", n, o, l)
			assert.Equal(t, want, p.Windows(l))

			// consecutive chunks share exactly O words
			for i := 1; i < len(chunks) && l > n; i++ {
				prev := strings.Fields(chunks[i-1].Text)
				cur := strings.Fields(chunks[i].Text)
				if o > 0 {
					assert.Equal(t, prev[len(prev)-o:], cur[:o])
				}
			}

			// chunk ids are 1..n
			for i, c := range chunks {
				assert.Equal(t, i+1, c.ChunkID)
			}
		}
	}
}

func TestProcessor_PageAttribution(t *testing.T) {
	p := newProcessor(t, 6, 2)

	segments := []models.RawSegment{
		{Text: "a b c d", Locator: models.Page(1)},
		{Text: "e f g h", Locator: models.Page(2)},
		{Text: "i j k l m n", Locator: models.Page(3)},
	}
	chunks := p.Process("report.pdf", extractor.FormatPDF, segments)

	require.Len(t, chunks, 3)
	assert.Equal(t, "a b c d e f", chunks[0].Text)
	assert.Equal(t, models.PageRange(1, 2), chunks[0].Locator)
	assert.Equal(t, "e f g h i j", chunks[1].Text)
	assert.Equal(t, models.PageRange(2, 3), chunks[1].Locator)
	assert.Equal(t, "i j k l m n", chunks[2].Text)
	assert.Equal(t, models.Page(3), chunks[2].Locator)
}

func TestProcessor_WorkbookOneChunkPerSheet(t *testing.T) {
	p := newProcessor(t, 3, 1)

	segments := []models.RawSegment{
		{Text: "Item Cost Paper 12 Ink 30", Locator: models.Sheet("Budget")},
		{Text: "approved", Locator: models.Sheet("Notes")},
		{Text: "  ", Locator: models.Sheet("Blank")},
	}
	chunks := p.Process("budget.xlsx", extractor.FormatXLSX, segments)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Item Cost Paper 12 Ink 30", chunks[0].Text)
	assert.Equal(t, models.Sheet("Budget"), chunks[0].Locator)
	assert.Equal(t, 1, chunks[0].ChunkID)
	assert.Equal(t, models.Sheet("Notes"), chunks[1].Locator)
	assert.Equal(t, 2, chunks[1].ChunkID)
}

func TestProcessor_StripsLeaderNoise(t *testing.T) {
	p := newProcessor(t, 100, 50)

	segments := []models.RawSegment{
		{Text: "Contents ........ 3\nIntroduction ----- 4 ___ end", Locator: models.Page(1)},
		{Text: "Appendix.....9", Locator: models.Page(2)},
	}
	chunks := p.Process("toc.pdf", extractor.FormatPDF, segments)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Contents 3 Introduction 4 end Appendix 9", chunks[0].Text)
	for _, leader := range []string{"...", "---", "___"} {
		assert.NotContains(t, chunks[0].Text, leader)
	}
}

func TestProcessor_EmptyInput(t *testing.T) {
	p := newProcessor(t, 100, 50)
	assert.Empty(t, p.Process("empty.pdf", extractor.FormatPDF, nil))
	assert.Empty(t, p.Process("empty.xlsx", extractor.FormatXLSX, nil))
}
