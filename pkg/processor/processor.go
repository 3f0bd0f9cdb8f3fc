// Package processor splits extracted document segments into overlapping
// word windows and tags each window with its origin.
package processor

import (
	"fmt"
	"strings"
	"time"

	"github.com/xhad/docrag/internal/models"
	"github.com/xhad/docrag/pkg/extractor"
)

const (
	DefaultMinWords = 100
	DefaultOverlap  = 50
)

type ProcessorConfig struct {
	// MinWords is the window size in words.
	MinWords int
	// Overlap is the number of words shared by consecutive windows.
	Overlap int
	// Clock stamps chunks; time.Now when nil.
	Clock func() time.Time
}

type Processor struct {
	config ProcessorConfig
}

// NewWithConfig fills in defaults for a zero config and rejects window
// settings that would not advance.
func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.MinWords == 0 {
		config.MinWords = DefaultMinWords
		if config.Overlap == 0 {
			config.Overlap = DefaultOverlap
		}
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	if config.MinWords < 0 {
		return nil, fmt.Errorf("%w: min_words must be positive, got %d", models.ErrInvalidInput, config.MinWords)
	}
	if config.Overlap < 0 || config.Overlap >= config.MinWords {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", models.ErrInvalidInput, config.Overlap, config.MinWords)
	}

	return &Processor{config: config}, nil
}

func (p *Processor) MinWords() int { return p.config.MinWords }
func (p *Processor) Overlap() int  { return p.config.Overlap }

type word struct {
	text    string
	locator models.Locator
}

// Process turns the segments of one file into chunks. Workbooks yield one
// chunk per sheet; every other format is windowed across all segments.
// All chunks share one timestamp and carry chunk ids 1..n.
func (p *Processor) Process(fileName string, format extractor.Format, segments []models.RawSegment) []models.Chunk {
	timestamp := p.config.Clock()

	var chunks []models.Chunk
	emit := func(text string, locator models.Locator) {
		chunks = append(chunks, models.Chunk{
			FileName:  fileName,
			Locator:   locator,
			Timestamp: timestamp,
			ChunkID:   len(chunks) + 1,
			Text:      text,
		})
	}

	if format == extractor.FormatXLSX {
		for _, seg := range segments {
			if text := cleanText(seg.Text); text != "" {
				emit(text, seg.Locator)
			}
		}
		return chunks
	}

	words := tokenize(segments)
	step := p.config.MinWords - p.config.Overlap

	for start := 0; start < len(words); start += step {
		end := min(start+p.config.MinWords, len(words))
		window := words[start:end]

		texts := make([]string, len(window))
		for i, w := range window {
			texts[i] = w.text
		}
		emit(strings.Join(texts, " "), attribute(window[0].locator, window[len(window)-1].locator))

		if end == len(words) {
			break
		}
	}

	return chunks
}

// Windows returns how many chunks a run of n words produces.
func (p *Processor) Windows(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= p.config.MinWords {
		return 1
	}
	step := p.config.MinWords - p.config.Overlap
	return (n - p.config.Overlap + step - 1) / step
}

func tokenize(segments []models.RawSegment) []word {
	var words []word
	for _, seg := range segments {
		for _, w := range strings.Fields(extractor.StripLeaders(seg.Text)) {
			words = append(words, word{text: w, locator: seg.Locator})
		}
	}
	return words
}

// attribute picks the locator for a window spanning first..last.
func attribute(first, last models.Locator) models.Locator {
	if first == last {
		return first
	}
	if isPaged(first) && isPaged(last) {
		return models.PageRange(first.Start, last.End)
	}
	return models.Unknown()
}

func isPaged(l models.Locator) bool {
	return l.Kind == models.LocatorPage || l.Kind == models.LocatorPageRange
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(extractor.StripLeaders(text)), " ")
}
