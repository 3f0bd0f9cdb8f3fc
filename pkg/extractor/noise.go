package extractor

import "regexp"

var leaders = regexp.MustCompile(`\.{3,}|-{3,}|_{3,}`)

// StripLeaders replaces runs of three or more dots, dashes or underscores
// (table-of-contents leaders, horizontal rules) with a single space.
func StripLeaders(text string) string {
	return leaders.ReplaceAllString(text, " ")
}
