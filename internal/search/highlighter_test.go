package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHighlight(t *testing.T) {
	tests := []struct {
		name    string
		content string
		query   string
		maxLen  int
		want    string
	}{
		{"short content unchanged", "short", "x", 10, "short"},
		{"no limit", "x", "x", 0, "x"},
		{"no match takes prefix", "long text here", "zzz", 4, "long..."},
		{"window around match", "aaaa bbbb salary cccc dddd", "SALARY", 8, "...b salary..."},
		{"match near end", "aaaa bbbb cccc salary", "salary", 8, "...c salary"},
		{"korean runes", "직원 급여 규정 안내 문서입니다", "급여", 6, "... 급여 규정..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Highlight(tt.content, tt.query, tt.maxLen))
		})
	}
}
