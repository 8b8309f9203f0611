package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDict struct {
	freq map[string]int
}

func (f *fakeDict) GetAllTerms() ([]string, error) {
	out := make([]string, 0, len(f.freq))
	for t := range f.freq {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeDict) GetTermFrequency(term string) (int, error) {
	return f.freq[term], nil
}

func TestSpellChecker_Suggest(t *testing.T) {
	dict := &fakeDict{freq: map[string]int{"salary": 5, "sales": 2, "salt": 1, "project": 3}}
	sc := NewSpellChecker(dict, WithMaxDistance(2), WithMaxSuggestions(2))

	got := sc.Suggest("salery")
	require.NotEmpty(t, got)
	assert.Equal(t, "salary", got[0].Term)
	assert.Equal(t, 1, got[0].Distance)
	assert.LessOrEqual(t, len(got), 2)

	assert.Empty(t, sc.Suggest("salary"), "exact term is not its own suggestion")
	assert.Empty(t, sc.Suggest("xyzzyqq"))
}

func TestSpellChecker_Correct(t *testing.T) {
	dict := &fakeDict{freq: map[string]int{"salary": 5, "department": 4}}
	sc := NewSpellChecker(dict)

	got, changed := sc.Correct("Salery by departmnt")
	assert.True(t, changed)
	assert.Equal(t, "salary by department", got)

	got, changed = sc.Correct("salary")
	assert.False(t, changed)
	assert.Equal(t, "salary", got)
}

func TestSpellChecker_OverIndex(t *testing.T) {
	idx := newIndex(t)
	seedHistory(t, idx)
	sc := NewSpellChecker(idx)

	got := sc.Suggest("projectz")
	require.NotEmpty(t, got)
	assert.Equal(t, "projects", got[0].Term)
}
