// Package lexicon rewrites business vocabulary in a question into the technical names used by
// the database schema, and flags words it does not know.
package lexicon

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Occurrence policies.
const (
	OccurrenceFirst = "first"
	OccurrenceAll   = "all"
)

// TermLister loads the mappings a Lexicon is built from.
type TermLister interface {
	ListTerms(ctx context.Context, category string) ([]*models.TermMapping, error)
}

// candidate is one matchable phrase: a business term or one of its synonyms.
type candidate struct {
	phrase    []rune // NFC, lower-cased
	technical string
	category  string
	business  bool
}

// Lexicon is a cached, reloadable view of the term mappings.
// Reads are safe for concurrent use; Reload swaps the cache atomically.
type Lexicon struct {
	store      TermLister
	mode       string
	occurrence string
	maxSuggest int
	logger     *zap.Logger

	mu         sync.RWMutex
	candidates []candidate
	known      map[string]string // lower-cased phrase -> phrase as written
	mappings   []*models.TermMapping
}

// Option configures a Lexicon.
type Option func(*Lexicon)

// WithReplaceMode sets models.ReplaceModeReplace (default) or models.ReplaceModeAppend.
func WithReplaceMode(mode string) Option {
	return func(l *Lexicon) {
		if mode != "" {
			l.mode = mode
		}
	}
}

// WithOccurrence sets whether only the first or all occurrences of a term are rewritten.
func WithOccurrence(o string) Option {
	return func(l *Lexicon) {
		if o != "" {
			l.occurrence = o
		}
	}
}

// WithMaxSuggestions caps the suggestions attached to each unknown term.
func WithMaxSuggestions(n int) Option {
	return func(l *Lexicon) {
		if n > 0 {
			l.maxSuggest = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lexicon) { l.logger = logger }
}

// New builds a Lexicon over store and loads it.
func New(ctx context.Context, store TermLister, opts ...Option) (*Lexicon, error) {
	l := &Lexicon{
		store:      store,
		mode:       models.ReplaceModeReplace,
		occurrence: OccurrenceAll,
		maxSuggest: 3,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	switch l.mode {
	case models.ReplaceModeReplace, models.ReplaceModeAppend:
	default:
		return nil, models.NewConfigurationError("replace_mode", "unknown mode %q", l.mode)
	}
	switch l.occurrence {
	case OccurrenceFirst, OccurrenceAll:
	default:
		return nil, models.NewConfigurationError("occurrence", "unknown policy %q", l.occurrence)
	}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload rebuilds the cache from the store.
func (l *Lexicon) Reload(ctx context.Context) error {
	mappings, err := l.store.ListTerms(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load term mappings: %w", err)
	}
	candidates, known := buildCandidates(mappings)

	l.mu.Lock()
	l.candidates = candidates
	l.known = known
	l.mappings = mappings
	l.mu.Unlock()

	l.logger.Debug("lexicon loaded", zap.Int("mappings", len(mappings)), zap.Int("phrases", len(candidates)))
	return nil
}

// Mappings returns the cached mappings.
func (l *Lexicon) Mappings() []*models.TermMapping {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*models.TermMapping, len(l.mappings))
	copy(out, l.mappings)
	return out
}

// Size returns the number of matchable phrases.
func (l *Lexicon) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.candidates)
}

func (l *Lexicon) snapshot() ([]candidate, map[string]string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.candidates, l.known
}

// buildCandidates orders phrases longest first; at equal length business terms precede
// synonyms, then phrases sort lexically. A phrase claimed twice keeps its first owner.
func buildCandidates(mappings []*models.TermMapping) ([]candidate, map[string]string) {
	var all []candidate
	known := make(map[string]string)
	add := func(m *models.TermMapping, phrase string, business bool) {
		phrase = norm.NFC.String(strings.TrimSpace(phrase))
		if phrase == "" {
			return
		}
		lower := lowerRunes([]rune(phrase))
		all = append(all, candidate{
			phrase:    lower,
			technical: m.TechnicalTerm,
			category:  m.Category,
			business:  business,
		})
		if _, ok := known[string(lower)]; !ok {
			known[string(lower)] = phrase
		}
	}
	for _, m := range mappings {
		add(m, m.BusinessTerm, true)
		for _, s := range m.Synonyms {
			add(m, s, false)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if len(a.phrase) != len(b.phrase) {
			return len(a.phrase) > len(b.phrase)
		}
		if a.business != b.business {
			return a.business
		}
		return string(a.phrase) < string(b.phrase)
	})

	out := all[:0]
	seen := make(map[string]bool, len(all))
	for _, c := range all {
		if seen[string(c.phrase)] {
			continue
		}
		seen[string(c.phrase)] = true
		out = append(out, c)
	}
	return out, known
}
