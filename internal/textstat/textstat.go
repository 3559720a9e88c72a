// Package textstat measures the shape of a text: how many words it has and
// how it is split into paragraphs. Both the adaptation prompt and the
// post-adaptation validation count words and paragraphs the same way, so the
// numbers the model is asked for are the numbers it is later checked against.
package textstat

import (
	"regexp"
	"strings"
)

// paragraphBreakRe matches a blank line: a newline followed by optional
// whitespace and another newline. Handles \r\n line endings as well.
var paragraphBreakRe = regexp.MustCompile(`\r?\n[ \t\r]*\n`)

// Words returns the number of whitespace-separated words in text.
func Words(text string) int {
	return len(strings.Fields(text))
}

// Paragraphs splits text on blank-line boundaries and returns the non-empty
// paragraphs, each trimmed of surrounding whitespace.
func Paragraphs(text string) []string {
	parts := paragraphBreakRe.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParagraphCount returns len(Paragraphs(text)). Text that holds only
// whitespace has zero paragraphs.
func ParagraphCount(text string) int {
	return len(Paragraphs(text))
}

// Excerpt returns at most maxRunes runes of text on a single line, with an
// ellipsis appended when the text was cut. Used for tabular listings.
func Excerpt(text string, maxRunes int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if maxRunes <= 0 {
		return flat
	}
	runes := []rune(flat)
	if len(runes) <= maxRunes {
		return flat
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
