package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted page text before chunking: line endings become
// "\n", runs of horizontal whitespace collapse to one space, and every line is
// trimmed. Line breaks are kept so chunk line ranges stay meaningful.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = collapseSpaces(line)
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

func collapseSpaces(line string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range strings.TrimSpace(line) {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
