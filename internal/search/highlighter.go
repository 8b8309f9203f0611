package search

import (
	"strings"
	"unicode/utf8"
)

// Highlight returns a window of at most maxLen runes of content, centred on the first
// word of query that occurs in it, with "..." marking cut ends. Without a match the
// window starts at the beginning. maxLen <= 0 returns content unchanged.
func Highlight(content, query string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	runes := []rune(content)
	lower := []rune(strings.ToLower(content))

	at := 0
	if len(lower) == len(runes) {
		for _, w := range strings.Fields(strings.ToLower(query)) {
			if i := runeIndex(lower, []rune(w)); i >= 0 {
				at = i
				break
			}
		}
	}

	start := at - maxLen/4
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(runes) {
		end = len(runes)
		start = end - maxLen
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(string(runes[start:end]))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func runeIndex(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
