package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xhad/docrag/internal/models"
)

func TestIsHeading(t *testing.T) {
	tests := []struct {
		block string
		want  bool
	}{
		{"Introduction", true},
		{"1. Scope of work", true},
		{"TERMS AND CONDITIONS OF THE AGREEMENT", true},
		{"The parties agree to the following terms today.", false},
		{"12 34 56 78 90 11", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, isHeading(tt.block), tt.block)
	}
}

func TestBlockSegments(t *testing.T) {
	blocks := []string{
		"OVERVIEW",
		"This paragraph describes the overall plan in detail.",
		"It continues on the next row of the page.",
		"",
		"Budget",
		"Costs are expected to rise over the next year.",
	}

	got := blockSegments(4, blocks)

	assert.Equal(t, []models.RawSegment{
		{Text: "OVERVIEW", Locator: models.Page(4)},
		{Text: "This paragraph describes the overall plan in detail. It continues on the next row of the page.", Locator: models.Page(4)},
		{Text: "Budget", Locator: models.Page(4)},
		{Text: "Costs are expected to rise over the next year.", Locator: models.Page(4)},
	}, got)
}

func TestPageSegment(t *testing.T) {
	seg, ok := pageSegment(2, "  hello world \n")
	assert.True(t, ok)
	assert.Equal(t, models.RawSegment{Text: "hello world", Locator: models.Page(2)}, seg)

	_, ok = pageSegment(3, " \n\t")
	assert.False(t, ok)
}
