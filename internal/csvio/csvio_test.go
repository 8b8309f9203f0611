package csvio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"empty brackets", "[]", nil},
		{"double quoted", `["연봉", "월급"]`, []string{"연봉", "월급"}},
		{"single quoted", `['wage', 'pay']`, []string{"wage", "pay"}},
		{"escaped quote", `["say \"hi\"", 'it\'s']`, []string{`say "hi"`, "it's"}},
		{"comma inside item", `["a, b", "c"]`, []string{"a, b", "c"}},
		{"bare values", "a, b ,c", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseList(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{`["a"`, `["a]`, `[a]`} {
		_, err := ParseList(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatListRoundTrip(t *testing.T) {
	for _, l := range [][]string{
		{"a"},
		{"연봉", "월급", "wage"},
		{`quote "x"`, "back\\slash", "a, b"},
		{"a\rb", "bell\a", "tab\there", "line\nbreak"},
		{"zero\u200bwidth", "nul\x00byte", "\x7f", "é"},
	} {
		got, err := ParseList(FormatList(l))
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
	assert.Equal(t, "[]", FormatList(nil))
	assert.Equal(t, `["a", "b"]`, FormatList([]string{"a", "b"}))
}

func TestWriteRead(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Table{
		Header: []string{"business_term", "synonyms"},
		Rows:   [][]string{{"급여", FormatList([]string{"연봉", "pay"})}},
	}))

	recs, err := Read(strings.NewReader("\ufeff"+buf.String()), "business_term")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "급여", recs[0].Get("business_term"))
	syn, err := ParseList(recs[0].Get("synonyms"))
	require.NoError(t, err)
	assert.Equal(t, []string{"연봉", "pay"}, syn)

	_, err = Read(strings.NewReader("a,b\n1,2\n"), "c")
	assert.ErrorContains(t, err, `"c"`)
	_, err = Read(strings.NewReader(""))
	assert.Error(t, err)
}
