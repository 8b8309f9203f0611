package keyword

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// TermDictionary provides the vocabulary a SpellChecker suggests from.
type TermDictionary interface {
	GetAllTerms() ([]string, error)
	GetTermFrequency(term string) (int, error)
}

// Suggestion is a spelling suggestion with its score.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// SpellChecker suggests indexed terms close to misspelled query terms.
type SpellChecker struct {
	dictionary     TermDictionary
	maxDistance    int
	maxSuggestions int

	mu      sync.RWMutex
	terms   []string
	termSet map[string]struct{}
	loaded  bool
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum edit distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMaxSuggestions sets the maximum number of suggestions per term.
func WithMaxSuggestions(n int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// NewSpellChecker creates a SpellChecker over dict.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{dictionary: dict, maxDistance: 2, maxSuggestions: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh reloads the term cache from the dictionary. Call it after the index changes.
func (s *SpellChecker) Refresh() error {
	terms, err := s.dictionary.GetAllTerms()
	if err != nil {
		return err
	}
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	s.mu.Lock()
	s.terms, s.termSet, s.loaded = terms, set, true
	s.mu.Unlock()
	return nil
}

func (s *SpellChecker) ensureLoaded() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh()
}

// Suggest returns indexed terms within the maximum edit distance of term, closest and
// most frequent first.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	if err := s.ensureLoaded(); err != nil {
		return nil
	}
	term = strings.ToLower(term)
	s.mu.RLock()
	terms := s.terms
	s.mu.RUnlock()

	var out []Suggestion
	for _, t := range terms {
		lt := strings.ToLower(t)
		if lt == term {
			continue
		}
		diff := len([]rune(lt)) - len([]rune(term))
		if diff < 0 {
			diff = -diff
		}
		if diff > s.maxDistance {
			continue
		}
		d := levenshtein.ComputeDistance(term, lt)
		if d > s.maxDistance {
			continue
		}
		freq, err := s.dictionary.GetTermFrequency(t)
		if err != nil || freq < 1 {
			continue
		}
		out = append(out, Suggestion{Term: t, Distance: d, Frequency: freq, Score: float64(freq) / float64(d+1)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > s.maxSuggestions {
		out = out[:s.maxSuggestions]
	}
	return out
}

// Correct replaces every unknown term of query with its best suggestion. It reports
// whether anything changed.
func (s *SpellChecker) Correct(query string) (string, bool) {
	if err := s.ensureLoaded(); err != nil {
		return query, false
	}
	words := tokenizeQuery(query)
	changed := false
	for i, w := range words {
		s.mu.RLock()
		_, known := s.termSet[w]
		s.mu.RUnlock()
		if known {
			continue
		}
		if sugg := s.Suggest(w); len(sugg) > 0 {
			words[i] = sugg[0].Term
			changed = true
		}
	}
	return strings.Join(words, " "), changed
}
