package extractor

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/xhad/docrag/internal/models"
)

const (
	documentPart = "word/document.xml"
	relsPart     = "word/_rels/document.xml.rels"

	cellSeparator = " | "
	rowSeparator  = " || "
)

func extractDOCX(ctx context.Context, path string) ([]models.RawSegment, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening docx archive: %v", models.ErrExtractionFailure, err)
	}
	defer reader.Close()

	return readDOCX(ctx, &reader.Reader)
}

func readDOCX(ctx context.Context, reader *zip.Reader) ([]models.RawSegment, error) {
	var body, rels *zip.File
	for _, file := range reader.File {
		switch file.Name {
		case documentPart:
			body = file
		case relsPart:
			rels = file
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %s missing", models.ErrExtractionFailure, documentPart)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExtractionFailure, err)
	}
	texts, err := parseBody(ctx, rc)
	rc.Close()
	if err != nil {
		return nil, err
	}

	if rels != nil {
		rc, err := rels.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrExtractionFailure, err)
		}
		images, err := parseImageRefs(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		for _, target := range images {
			texts = append(texts, fmt.Sprintf("[Image: %s]", target))
		}
	}

	segments := make([]models.RawSegment, len(texts))
	for i, text := range texts {
		segments[i] = models.RawSegment{Text: text, Locator: models.Unknown()}
	}
	return segments, nil
}

// parseBody walks the direct children of w:body in order and returns one
// text per non-blank paragraph and one per table.
func parseBody(ctx context.Context, r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		texts  []string
		inBody bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %v", models.ErrExtractionFailure, documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				inBody = t.Name.Local == "body"
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			var text string
			switch t.Name.Local {
			case "p":
				text, err = paragraphText(dec)
			case "tbl":
				text, err = tableText(dec)
			default:
				err = dec.Skip()
			}
			if err != nil {
				return nil, fmt.Errorf("%w: parsing %s: %v", models.ErrExtractionFailure, documentPart, err)
			}
			if text != "" {
				texts = append(texts, text)
			}
		case xml.EndElement:
			if t.Name.Local == "body" {
				inBody = false
			}
		}
	}

	return texts, nil
}

// paragraphText consumes tokens up to the end of the current w:p.
func paragraphText(dec *xml.Decoder) (string, error) {
	var (
		b      strings.Builder
		depth  = 1
		inText bool
	)

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab", "br", "cr":
				b.WriteByte(' ')
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "t" {
				inText = false
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}

// tableText consumes tokens up to the end of the current w:tbl. Nested
// tables are flattened into the cell that holds them.
func tableText(dec *xml.Decoder) (string, error) {
	var (
		rows     []string
		cells    []string
		cell     strings.Builder
		depth    = 1
		tblDepth = 1
		inText   bool
	)

	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				if tblDepth == 1 {
					cells = nil
				}
			case "tc":
				if tblDepth == 1 {
					cell.Reset()
				}
			case "p":
				if cell.Len() > 0 {
					cell.WriteByte(' ')
				}
			case "t":
				inText = true
			case "tab", "br", "cr":
				cell.WriteByte(' ')
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "tbl":
				tblDepth--
			case "tc":
				if tblDepth == 1 {
					cells = append(cells, strings.Join(strings.Fields(cell.String()), " "))
				}
			case "tr":
				if tblDepth == 1 && hasContent(cells) {
					rows = append(rows, strings.Join(cells, cellSeparator))
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				cell.Write(t)
			}
		}
	}

	return strings.Join(rows, rowSeparator), nil
}

func hasContent(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return true
		}
	}
	return false
}

type relationships struct {
	Relationships []struct {
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

func parseImageRefs(r io.Reader) ([]string, error) {
	var rels relationships
	if err := xml.NewDecoder(r).Decode(&rels); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", models.ErrExtractionFailure, relsPart, err)
	}

	var targets []string
	for _, rel := range rels.Relationships {
		if strings.HasSuffix(rel.Type, "/image") {
			targets = append(targets, rel.Target)
		}
	}
	return targets, nil
}
