package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shitsumon/internal/models"
)

func newIndex(t *testing.T) *HistoryIndex {
	t.Helper()
	idx, err := NewHistoryIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func seedHistory(t *testing.T, idx *HistoryIndex) {
	t.Helper()
	errMsg := "no such table: salaries"
	recs := []*models.QueryHistoryRecord{
		{ID: 1, NaturalQuery: "부서별 평균 급여", GeneratedSQL: "SELECT dept, AVG(salary) FROM employees GROUP BY dept", Success: true},
		{ID: 2, NaturalQuery: "list all projects", GeneratedSQL: "SELECT * FROM projects", Success: true},
		{ID: 3, NaturalQuery: "total salary", GeneratedSQL: "SELECT SUM(amount) FROM salaries", Success: false, ErrorMessage: &errMsg},
	}
	require.NoError(t, idx.Rebuild(recs))
}

func ids(hits []*Hit) []int64 {
	out := make([]int64, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.ID)
	}
	return out
}

func TestHistoryIndex_Search(t *testing.T) {
	idx := newIndex(t)
	seedHistory(t, idx)
	ctx := context.Background()

	count, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	tests := []struct {
		name  string
		query string
		want  []int64
	}{
		{"korean question", "급여", []int64{1}},
		{"english question", "projects", []int64{2}},
		{"sql text", "employees", []int64{1}},
		{"no match", "inventory", []int64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := idx.Search(ctx, tt.query, 10, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(hits))
		})
	}
}

func TestHistoryIndex_EmptyQuery(t *testing.T) {
	idx := newIndex(t)
	seedHistory(t, idx)

	hits, err := idx.Search(context.Background(), "   ", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHistoryIndex_QuestionBoost(t *testing.T) {
	idx := newIndex(t)
	require.NoError(t, idx.IndexHistory(&models.QueryHistoryRecord{ID: 10, NaturalQuery: "orders by month", GeneratedSQL: "SELECT 1"}))
	require.NoError(t, idx.IndexHistory(&models.QueryHistoryRecord{ID: 11, NaturalQuery: "revenue", GeneratedSQL: "SELECT month FROM orders"}))

	hits, err := idx.Search(context.Background(), "orders", 10, &SearchOptions{QuestionBoost: 3})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(10), hits[0].ID)
}

func TestHistoryIndex_Fuzzy(t *testing.T) {
	idx := newIndex(t)
	seedHistory(t, idx)
	ctx := context.Background()

	hits, err := idx.Search(ctx, "projcts", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, "projcts", 10, &SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids(hits))
}

func TestHistoryIndex_Delete(t *testing.T) {
	idx := newIndex(t)
	seedHistory(t, idx)

	require.NoError(t, idx.Delete(2))
	hits, err := idx.Search(context.Background(), "projects", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestHistoryIndex_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.bleve")
	idx, err := NewHistoryIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.IndexHistory(&models.QueryHistoryRecord{ID: 7, NaturalQuery: "active customers"}))
	require.NoError(t, idx.Close())

	idx, err = NewHistoryIndex(path)
	require.NoError(t, err)
	defer idx.Close()
	hits, err := idx.Search(context.Background(), "customers", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids(hits))
}
