package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

func openStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.DB().Exec(`CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT, salary INTEGER, photo BLOB)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`INSERT INTO employees (name, salary, photo) VALUES ('김민수', 7000000, x'6869'), ('이영희', 5000000, NULL)`)
	require.NoError(t, err)
	return s
}

func TestExecute_Select(t *testing.T) {
	s := openStore(t)
	ex := New(s.DB())

	res, err := ex.Execute(context.Background(), "SELECT name, salary, photo FROM employees WHERE salary >= 6000000")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "salary", "photo"}, res.Columns)
	assert.Equal(t, 1, res.RowCount)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "김민수", res.Rows[0]["name"])
	assert.EqualValues(t, 7000000, res.Rows[0]["salary"])
	assert.Equal(t, "hi", res.Rows[0]["photo"], "blobs are returned as strings")
	assert.GreaterOrEqual(t, res.ElapsedMS, int64(0))
}

func TestExecute_EmptyResult(t *testing.T) {
	s := openStore(t)
	res, err := New(s.DB()).Execute(context.Background(), "SELECT * FROM employees WHERE salary > 99999999")
	require.NoError(t, err)
	assert.Equal(t, 0, res.RowCount)
	assert.NotNil(t, res.Rows)
}

func TestExecute_Update(t *testing.T) {
	s := openStore(t)
	res, err := New(s.DB()).Execute(context.Background(), "UPDATE employees SET salary = salary + 1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.RowCount)
	assert.Empty(t, res.Rows)
}

func TestExecute_ResultSetStatements(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		columns []string
		rows    int
	}{
		{"cte", "WITH rich AS (SELECT name FROM employees WHERE salary >= 6000000) SELECT name FROM rich;", []string{"name"}, 1},
		{"recursive cte", "with recursive cnt(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM cnt WHERE x < 3) select x from cnt", []string{"x"}, 3},
		{"values", "VALUES (1, 'a'), (2, 'b')", []string{"column1", "column2"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openStore(t)
			res, err := New(s.DB()).Execute(context.Background(), tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.columns, res.Columns)
			assert.Equal(t, tt.rows, res.RowCount)
			assert.Len(t, res.Rows, tt.rows)
		})
	}

	t.Run("pragma", func(t *testing.T) {
		s := openStore(t)
		res, err := New(s.DB()).Execute(context.Background(), "PRAGMA table_info(employees)")
		require.NoError(t, err)
		assert.Contains(t, res.Columns, "name")
		assert.Equal(t, 4, res.RowCount)
	})
}

func TestExecute_CTEDelete(t *testing.T) {
	s := openStore(t)
	res, err := New(s.DB()).Execute(context.Background(),
		"WITH poor AS (SELECT id FROM employees WHERE salary < 6000000) DELETE FROM employees WHERE id IN (SELECT id FROM poor)")
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)
	assert.Empty(t, res.Columns)
}

func TestExecute_Rejected(t *testing.T) {
	s := openStore(t)
	_, err := New(s.DB()).Execute(context.Background(), "SELECT * FROM missing_table")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExecution))

	var execErr *models.ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "SELECT * FROM missing_table", execErr.SQL)
}

type failingStore struct{ storage.HistoryStore }

func (failingStore) InsertHistory(context.Context, *models.QueryHistoryRecord) error {
	return errors.New("disk full")
}

type recordingIndex struct{ ids []int64 }

func (r *recordingIndex) IndexHistory(rec *models.QueryHistoryRecord) error {
	r.ids = append(r.ids, rec.ID)
	return nil
}

func TestHistoryLogger_Log(t *testing.T) {
	s := openStore(t)
	idx := &recordingIndex{}
	hl := NewHistoryLogger(s, idx, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &models.QueryHistoryRecord{NaturalQuery: "직원 목록", GeneratedSQL: "SELECT * FROM employees", Success: true, ResultCount: 2}
	hl.Log(ctx, rec)

	require.NotZero(t, rec.ID, "logged even though the request context is done")
	got, err := s.GetHistory(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ResultCount)
	assert.Equal(t, []int64{rec.ID}, idx.ids)
}

func TestHistoryLogger_SwallowsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	idx := &recordingIndex{}
	hl := NewHistoryLogger(failingStore{}, idx, zap.New(core))

	assert.NotPanics(t, func() {
		hl.Log(context.Background(), &models.QueryHistoryRecord{NaturalQuery: "q"})
	})
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	err, ok := entry.ContextMap()["error"].(string)
	require.True(t, ok)
	assert.Contains(t, err, "logging error")
	assert.Empty(t, idx.ids)
}
