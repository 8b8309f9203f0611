package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shitsumon/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_createsParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "shitsumon.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, path, s.Path())

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Positive(t, st.DiskBytes)
}

func TestOpenTarget(t *testing.T) {
	_, err := OpenTarget(filepath.Join(t.TempDir(), "missing.db"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "sales.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, total_amount REAL)`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	db, err := OpenTarget(path)
	require.NoError(t, err)
	defer db.Close()
	tables, err := NewCatalog(db, InternalTables...).Tables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "orders", tables[0].Name)
}

func TestDocuments_CRUD(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := &models.Document{
		Title:    "handbook",
		Content:  "salaries are paid monthly",
		DocType:  "txt",
		Metadata: models.Metadata{models.MetaSourcePath: "/docs/handbook.txt", models.MetaModTime: 42},
	}
	require.NoError(t, s.CreateDocument(ctx, doc))
	assert.NotZero(t, doc.ID)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "handbook", got.Title)
	assert.Equal(t, "/docs/handbook.txt", got.Metadata.String(models.MetaSourcePath))
	assert.False(t, got.HasEmbedding())

	mtime, err := s.SourceModTime(ctx, "/docs/handbook.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(42), mtime)

	n, err := s.DeleteDocumentsBySource(ctx, "/docs/handbook.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, doc.ID), models.ErrNotFound)
}

func TestNearestDocuments_orderingAndTies(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	docs := []*models.Document{
		{Title: "far", Content: "a", Embedding: models.Vector{0, 1, 0}},
		{Title: "tie-first", Content: "b", Embedding: models.Vector{1, 0, 0}},
		{Title: "no-embedding", Content: "c"},
		{Title: "tie-second", Content: "d", Embedding: models.Vector{2, 0, 0}},
		{Title: "opposite", Content: "e", Embedding: models.Vector{-1, 0, 0}},
		{Title: "degenerate", Content: "f", Embedding: models.Vector{0, 0, 0}},
	}
	require.NoError(t, s.BatchCreateDocuments(ctx, docs))

	got, err := s.NearestDocuments(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, got, 4)

	titles := []string{got[0].Title, got[1].Title, got[2].Title, got[3].Title}
	assert.Equal(t, []string{"tie-first", "tie-second", "far", "opposite"}, titles)
	assert.InDelta(t, 0, got[0].Distance, 1e-6)
	assert.InDelta(t, 1, got[2].Distance, 1e-6)
	assert.InDelta(t, 2, got[3].Distance, 1e-6)

	top, err := s.NearestDocuments(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "tie-first", top[0].Title)

	n, err := s.CountEmbeddedDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestKeywordDocuments(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, d := range []*models.Document{
		{Title: "Payroll", Content: "monthly salary schedule"},
		{Title: "Holidays", Content: "100% paid leave"},
		{Title: "Benefits", Content: "SALARY bands"},
	} {
		require.NoError(t, s.CreateDocument(ctx, d))
	}

	got, err := s.KeywordDocuments(ctx, "salary", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Payroll", got[0].Title)
	assert.Equal(t, "Benefits", got[1].Title)

	got, err = s.KeywordDocuments(ctx, "%", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Holidays", got[0].Title)

	got, err = s.KeywordDocuments(ctx, "  ", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	st, err := s.HistoryStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
	assert.Zero(t, st.SuccessRate)

	msg := "no such table: staff"
	recs := []*models.QueryHistoryRecord{
		{NaturalQuery: "q1", GeneratedSQL: "SELECT 1", Success: true, ExecutionTimeMS: 10, ResultCount: 1},
		{NaturalQuery: "q2", GeneratedSQL: "SELECT * FROM staff", Success: false, ExecutionTimeMS: 30, ErrorMessage: &msg},
	}
	for _, r := range recs {
		require.NoError(t, s.InsertHistory(ctx, r))
	}

	recent, err := s.RecentHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].NaturalQuery)
	require.NotNil(t, recent[0].ErrorMessage)
	assert.Equal(t, msg, *recent[0].ErrorMessage)
	assert.Nil(t, recent[1].ErrorMessage)
	assert.True(t, recent[1].Success)

	st, err = s.HistoryStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Total)
	assert.Equal(t, int64(1), st.Successes)
	assert.InDelta(t, 50, st.SuccessRate, 1e-9)
	assert.InDelta(t, 20, st.AvgExecutionMS, 1e-9)

	byID, err := s.HistoryByIDs(ctx, []int64{recs[1].ID, 999, recs[0].ID})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	assert.Equal(t, "q2", byID[0].NaturalQuery)
}

func TestExamples_RecordOutcome(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ex := &models.QueryExample{
		NaturalLanguageQuery: "모든 직원을 보여주세요",
		SQLQuery:             "SELECT * FROM employees;",
		QueryCategory:        "select",
		Difficulty:           models.DifficultyEasy,
		Tags:                 models.StringList{"employees"},
		SuccessRate:          1,
		UsageCount:           1,
	}
	require.NoError(t, s.CreateExample(ctx, ex))

	got, err := s.RecordExampleOutcome(ctx, ex.ID, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, got.SuccessRate, 1e-9)
	assert.Equal(t, int64(2), got.UsageCount)

	stored, err := s.GetExample(ctx, ex.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stored.SuccessRate, 1e-9)
	assert.Equal(t, models.StringList{"employees"}, stored.Tags)

	_, err = s.RecordExampleOutcome(ctx, 999, true)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExamples_SearchAndNearest(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, ex := range []*models.QueryExample{
		{NaturalLanguageQuery: "count staff", SQLQuery: "SELECT COUNT(*) FROM employees", QueryCategory: "aggregation", SuccessRate: 0.5, Embedding: models.Vector{0, 1}},
		{NaturalLanguageQuery: "list staff", SQLQuery: "SELECT * FROM employees", QueryCategory: "select", SuccessRate: 0.9, Embedding: models.Vector{1, 0}},
		{NaturalLanguageQuery: "list departments", SQLQuery: "SELECT * FROM departments", QueryCategory: "select", SuccessRate: 0.9},
	} {
		require.NoError(t, s.CreateExample(ctx, ex))
	}

	got, err := s.SearchExamples(ctx, "staff", "", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "list staff", got[0].NaturalLanguageQuery)

	got, err = s.TopExamples(ctx, "select", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "list staff", got[0].NaturalLanguageQuery)

	cats, err := s.ExampleCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"aggregation", "select"}, cats)

	near, err := s.NearestExamples(ctx, []float32{0.9, 0.1}, 5)
	require.NoError(t, err)
	require.Len(t, near, 2)
	assert.Equal(t, "list staff", near[0].NaturalLanguageQuery)
}

func TestTerms_uniqueCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := &models.TermMapping{BusinessTerm: "Salary", TechnicalTerm: "salary", Synonyms: models.StringList{"pay"}, Category: "hr"}
	require.NoError(t, s.CreateTerm(ctx, m))
	assert.Error(t, s.CreateTerm(ctx, &models.TermMapping{BusinessTerm: "SALARY", TechnicalTerm: "x"}))

	got, err := s.GetTermByBusiness(ctx, "salary")
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, models.StringList{"pay"}, got.Synonyms)

	up := &models.TermMapping{BusinessTerm: "salary", TechnicalTerm: "emp_salary", Category: "hr"}
	require.NoError(t, s.UpsertTerm(ctx, up))
	assert.Equal(t, m.ID, up.ID)

	got, err = s.GetTerm(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "emp_salary", got.TechnicalTerm)

	found, err := s.SearchTerms(ctx, "PAY", "")
	require.NoError(t, err)
	assert.Empty(t, found, "upsert replaced synonyms")

	require.NoError(t, s.CreateTerm(ctx, &models.TermMapping{BusinessTerm: "부서", TechnicalTerm: "department", Category: "org"}))
	cats, err := s.TermCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hr", "org"}, cats)

	list, err := s.ListTerms(ctx, "org")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteTerm(ctx, m.ID))
	assert.ErrorIs(t, s.DeleteTerm(ctx, m.ID), models.ErrNotFound)
}

func TestDescriptions_Upsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertColumnDescription(ctx, &models.ColumnDescription{
		TableName: "employees", ColumnName: "salary", Description: "monthly pay",
	}))
	require.NoError(t, s.UpsertColumnDescription(ctx, &models.ColumnDescription{
		TableName: "employees", ColumnName: "salary", Description: "monthly gross pay", DataExamples: models.StringList{"5000000"},
	}))

	cols, err := s.ListColumnDescriptions(ctx, "employees")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "monthly gross pay", cols[0].Description)
	assert.Equal(t, models.StringList{"5000000"}, cols[0].DataExamples)

	require.NoError(t, s.UpsertTableDescription(ctx, &models.TableDescription{TableName: "employees", Description: "staff"}))
	tables, err := s.ListTableDescriptions(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	require.NoError(t, s.DeleteColumnDescription(ctx, "employees", "salary"))
	assert.ErrorIs(t, s.DeleteColumnDescription(ctx, "employees", "salary"), models.ErrNotFound)
}

func TestCatalog(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	_, err := s.DB().Exec(`CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT, salary INTEGER);
		INSERT INTO employees (name, salary) VALUES ('Kim', 5000000), ('Lee', NULL)`)
	require.NoError(t, err)

	cat := NewCatalog(s.DB(), InternalTables...)
	tables, err := cat.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 1, "internal tables are hidden")
	assert.Equal(t, "employees", tables[0].Name)
	assert.Equal(t, []models.Column{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT"}, {Name: "salary", Type: "INTEGER"}}, tables[0].Columns)

	cols, rows, err := cat.SampleRows(ctx, "employees", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "salary"}, cols)
	assert.Equal(t, [][]string{{"1", "Kim", "5000000"}}, rows)

	_, rows, err = cat.SampleRows(ctx, "employees", 5)
	require.NoError(t, err)
	assert.Equal(t, "NULL", rows[1][2])
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.CreateDocument(ctx, &models.Document{Content: "x", Embedding: models.Vector{1}}))
	require.NoError(t, s.CreateTerm(ctx, &models.TermMapping{BusinessTerm: "급여", TechnicalTerm: "salary"}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, int64(1), st.EmbeddedDocuments)
	assert.Equal(t, int64(1), st.Terms)
	assert.Zero(t, st.DiskBytes)
}
