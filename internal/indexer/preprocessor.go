package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text before chunking: CRLF becomes LF, control
// characters are dropped, runs of horizontal whitespace collapse to one space and
// trailing spaces are cut from every line. Blank lines are kept, collapsed to one,
// since the paragraph strategy splits on them.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	blankRun := 0
	for _, line := range strings.Split(text, "\n") {
		line = collapseSpaces(line)
		if line == "" {
			blankRun++
			continue
		}
		if b.Len() > 0 {
			if blankRun > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)
		blankRun = 0
	}
	return b.String()
}

func collapseSpaces(line string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range line {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
