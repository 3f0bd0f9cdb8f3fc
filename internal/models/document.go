package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LocatorKind tells which variant a Locator holds.
type LocatorKind int

const (
	LocatorUnknown LocatorKind = iota
	LocatorPage
	LocatorPageRange
	LocatorSheet
)

// Locator identifies where a piece of text came from inside its file: a page,
// a page range, a workbook sheet, or nothing at all.
type Locator struct {
	Kind  LocatorKind
	Start int
	End   int
	Sheet string
}

func Page(n int) Locator {
	return Locator{Kind: LocatorPage, Start: n, End: n}
}

// PageRange collapses to a single Page when start and end are equal.
func PageRange(start, end int) Locator {
	if start == end {
		return Page(start)
	}
	return Locator{Kind: LocatorPageRange, Start: start, End: end}
}

func Sheet(name string) Locator {
	return Locator{Kind: LocatorSheet, Sheet: name}
}

func Unknown() Locator {
	return Locator{}
}

// String renders the locator the way it is shown to users and the LLM:
// "3", "3-5", the sheet name, or "" when unknown.
func (l Locator) String() string {
	switch l.Kind {
	case LocatorPage:
		return strconv.Itoa(l.Start)
	case LocatorPageRange:
		return fmt.Sprintf("%d-%d", l.Start, l.End)
	case LocatorSheet:
		return l.Sheet
	default:
		return ""
	}
}

// MarshalText encodes the locator for storage ("page:3", "pages:3-5",
// "sheet:Name", "unknown").
func (l Locator) MarshalText() ([]byte, error) {
	switch l.Kind {
	case LocatorPage:
		return []byte("page:" + strconv.Itoa(l.Start)), nil
	case LocatorPageRange:
		return []byte(fmt.Sprintf("pages:%d-%d", l.Start, l.End)), nil
	case LocatorSheet:
		return []byte("sheet:" + l.Sheet), nil
	default:
		return []byte("unknown"), nil
	}
}

func (l *Locator) UnmarshalText(text []byte) error {
	parsed, err := ParseLocator(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLocator is the inverse of MarshalText.
func ParseLocator(s string) (Locator, error) {
	kind, value, _ := strings.Cut(s, ":")
	switch kind {
	case "", "unknown":
		return Unknown(), nil
	case "page":
		n, err := strconv.Atoi(value)
		if err != nil {
			return Locator{}, fmt.Errorf("%w: bad page locator %q", ErrIndexCorruption, s)
		}
		return Page(n), nil
	case "pages":
		a, b, ok := strings.Cut(value, "-")
		if !ok {
			return Locator{}, fmt.Errorf("%w: bad page range locator %q", ErrIndexCorruption, s)
		}
		start, err1 := strconv.Atoi(a)
		end, err2 := strconv.Atoi(b)
		if err1 != nil || err2 != nil {
			return Locator{}, fmt.Errorf("%w: bad page range locator %q", ErrIndexCorruption, s)
		}
		return PageRange(start, end), nil
	case "sheet":
		return Sheet(value), nil
	default:
		return Locator{}, fmt.Errorf("%w: unknown locator kind %q", ErrIndexCorruption, s)
	}
}

// RawSegment is one piece of text produced by an extractor, in document order.
type RawSegment struct {
	Text    string
	Locator Locator
}

// Chunk is the unit stored in and retrieved from the vector index.
// Vector stays nil until the chunk has been embedded.
type Chunk struct {
	FileName  string
	Locator   Locator
	Timestamp time.Time
	ChunkID   int
	Text      string
	Vector    []float32
}

// WithoutVector returns a copy of the chunk with the vector dropped.
func (c Chunk) WithoutVector() Chunk {
	c.Vector = nil
	return c
}

// SearchHit is a chunk returned by a similarity search together with its score.
type SearchHit struct {
	Chunk Chunk
	Score float64
}

// Retrieved is one entry of a RetrievalResult. Source is "index" for chunks
// coming from the vector index and "upload" for conversation uploads.
type Retrieved struct {
	FileName  string
	Locator   Locator
	Timestamp time.Time
	Content   string
	Score     float64
	Source    string
}

const (
	SourceIndex  = "index"
	SourceUpload = "upload"
)

// RetrievalResult is the ordered answer to a query.
type RetrievalResult []Retrieved

// Empty reports the "no documents found" outcome.
func (r RetrievalResult) Empty() bool {
	return len(r) == 0
}

func (r RetrievalResult) Contents() []string {
	out := make([]string, len(r))
	for i, item := range r {
		out[i] = item.Content
	}
	return out
}

// FromHit converts an index hit into a retrieval entry.
func FromHit(hit SearchHit) Retrieved {
	return Retrieved{
		FileName:  hit.Chunk.FileName,
		Locator:   hit.Chunk.Locator,
		Timestamp: hit.Chunk.Timestamp,
		Content:   hit.Chunk.Text,
		Score:     hit.Score,
		Source:    SourceIndex,
	}
}

// FileOutcome is the result of ingesting one file during a folder upload.
type FileOutcome struct {
	File   string
	Chunks int
	Err    error
}

func (o FileOutcome) OK() bool {
	return o.Err == nil
}

// FolderReport aggregates per-file outcomes of a folder ingestion.
type FolderReport struct {
	Outcomes []FileOutcome
}

func (r FolderReport) Succeeded() []FileOutcome {
	var out []FileOutcome
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func (r FolderReport) Failed() []FileOutcome {
	var out []FileOutcome
	for _, o := range r.Outcomes {
		if !o.OK() {
			out = append(out, o)
		}
	}
	return out
}

func (r FolderReport) TotalChunks() int {
	total := 0
	for _, o := range r.Outcomes {
		total += o.Chunks
	}
	return total
}
