package lexicon

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/shitsumon/internal/models"
)

type runeClass int

const (
	classNone runeClass = iota
	classHangul
	classWord
)

func classOf(r rune) runeClass {
	switch {
	case unicode.Is(unicode.Hangul, r):
		return classHangul
	case unicode.IsLetter(r) || unicode.IsDigit(r):
		return classWord
	default:
		return classNone
	}
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// Normalize rewrites every known business term or synonym in query, longest phrase first,
// and returns the rewritten text with the substitutions made in order.
//
// Matching ignores case and respects word boundaries: a phrase may not be glued to a
// letter or digit of its own script on either side. A Hangul phrase may still be followed
// by Hangul, since particles attach directly to the noun (급여가, 직원들을). Text produced by
// an earlier substitution is never matched again, and a phrase that already reads as its
// technical term is left alone, so normalizing technical vocabulary is a no-op.
func (l *Lexicon) Normalize(query string) (string, []models.AppliedMapping) {
	candidates, _ := l.snapshot()
	applied := []models.AppliedMapping{}
	if len(candidates) == 0 || strings.TrimSpace(query) == "" {
		return query, applied
	}

	text := []rune(norm.NFC.String(query))
	lower := lowerRunes(text)
	locked := make([]bool, len(text))

	for _, c := range candidates {
		n := len(c.phrase)
		techLower := string(lowerRunes([]rune(c.technical)))
		for i := 0; i+n <= len(text); {
			if !matchAt(text, lower, locked, c.phrase, i) {
				i++
				continue
			}
			original := string(text[i : i+n])
			if l.mode == models.ReplaceModeReplace && string(lower[i:i+n]) == techLower {
				i += n
				continue
			}

			repl := c.technical
			if l.mode == models.ReplaceModeAppend {
				repl = original + "(" + c.technical + ")"
			}
			r := []rune(repl)
			text = splice(text, i, i+n, r)
			lower = splice(lower, i, i+n, lowerRunes(r))
			locked = splice(locked, i, i+n, trues(len(r)))
			applied = append(applied, models.AppliedMapping{
				Original:    original,
				Replacement: c.technical,
				Category:    c.category,
			})
			if l.occurrence == OccurrenceFirst {
				break
			}
			i += len(r)
		}
	}
	return string(text), applied
}

// matchAt reports whether phrase occurs unlocked at text[i:] on word boundaries.
func matchAt(text, lower []rune, locked []bool, phrase []rune, i int) bool {
	n := len(phrase)
	for k := 0; k < n; k++ {
		if locked[i+k] || lower[i+k] != phrase[k] {
			return false
		}
	}
	if i > 0 {
		if c := classOf(text[i-1]); c != classNone && c == classOf(text[i]) {
			return false
		}
	}
	if j := i + n; j < len(text) {
		c := classOf(text[j])
		if c != classNone && c == classOf(text[j-1]) && c != classHangul {
			return false
		}
	}
	return true
}

func splice[T any](s []T, from, to int, with []T) []T {
	out := make([]T, 0, len(s)-(to-from)+len(with))
	out = append(out, s[:from]...)
	out = append(out, with...)
	return append(out, s[to:]...)
}

func trues(n int) []bool {
	b := make([]bool, n)
	for i := range b {
		b[i] = true
	}
	return b
}
