package lexicon

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
)

// UnknownTerm is a word of a question that matches no known phrase.
type UnknownTerm struct {
	Term        string   `json:"term"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// koreanSuffixes are particles and endings stripped from Hangul tokens, longest first.
var koreanSuffixes = []string{
	"에서는", "에게서", "으로써", "으로서", "이라는", "이라고",
	"까지", "부터", "에서", "에게", "으로", "처럼", "보다", "마다", "이나", "이랑", "하고", "별로",
	"들", "과", "와", "은", "는", "이", "가", "을", "를", "의", "에", "도", "로", "만", "인", "별",
}

var stopwords = toSet(
	// Korean request verbs, quantifiers and comparison words
	"보여줘", "보여주세요", "알려줘", "알려주세요", "찾아줘", "해줘", "주세요", "조회", "조회해줘",
	"이상", "이하", "미만", "초과", "모든", "전체", "각", "및", "또는", "그리고", "어떤", "무엇",
	"얼마", "몇", "누구", "언제", "어디", "가장", "많은", "적은", "높은", "낮은", "최근", "평균",
	// English
	"a", "an", "the", "of", "for", "in", "on", "by", "to", "and", "or", "with", "from", "at",
	"show", "me", "list", "all", "what", "which", "who", "how", "many", "much", "is", "are",
	"give", "get", "find", "top", "than", "more", "less", "each", "per", "please", "whose",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// DetectUnknownTerms lists the content words of query that match no business term or
// synonym, each with up to the configured number of nearest known phrases by edit distance.
// It is advisory and never changes what Normalize does.
func (l *Lexicon) DetectUnknownTerms(query string) []UnknownTerm {
	_, known := l.snapshot()
	out := []UnknownTerm{}
	seen := map[string]bool{}
	for _, tok := range tokenize(norm.NFC.String(query)) {
		word := stem(strings.ToLower(tok))
		if len([]rune(word)) < 2 || stopwords[word] || seen[word] {
			continue
		}
		seen[word] = true
		if _, ok := known[word]; ok {
			continue
		}
		out = append(out, UnknownTerm{Term: word, Suggestions: l.suggest(word, known)})
	}
	return out
}

// tokenize splits on anything that is not a letter or digit and drops tokens with digits,
// which are values rather than vocabulary.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	out := fields[:0]
	for _, f := range fields {
		if strings.IndexFunc(f, unicode.IsDigit) < 0 {
			out = append(out, f)
		}
	}
	return out
}

// stem strips up to two trailing particles from a Hangul word, keeping at least two runes.
func stem(word string) string {
	if classOf([]rune(word)[0]) != classHangul {
		return word
	}
	for pass := 0; pass < 2; pass++ {
		stripped := false
		for _, suf := range koreanSuffixes {
			rest := strings.TrimSuffix(word, suf)
			if rest != word && len([]rune(rest)) >= 2 {
				word, stripped = rest, true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return word
}

type suggestion struct {
	phrase   string
	distance int
}

func (l *Lexicon) suggest(word string, known map[string]string) []string {
	wl := len([]rune(word))
	var cands []suggestion
	for lower, phrase := range known {
		d := levenshtein.ComputeDistance(word, lower)
		longest := wl
		if n := len([]rune(lower)); n > longest {
			longest = n
		}
		// a distance equal to the longer length means nothing is shared
		if d >= longest {
			continue
		}
		cands = append(cands, suggestion{phrase: phrase, distance: d})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return cands[i].phrase < cands[j].phrase
	})
	if len(cands) > l.maxSuggest {
		cands = cands[:l.maxSuggest]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.phrase
	}
	return out
}
