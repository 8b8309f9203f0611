package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/embedding"
	"github.com/hyperjump/shitsumon/internal/examples"
	"github.com/hyperjump/shitsumon/internal/executor"
	"github.com/hyperjump/shitsumon/internal/indexer"
	"github.com/hyperjump/shitsumon/internal/keyword"
	"github.com/hyperjump/shitsumon/internal/lexicon"
	"github.com/hyperjump/shitsumon/internal/llm"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/pipeline"
	"github.com/hyperjump/shitsumon/internal/schema"
	"github.com/hyperjump/shitsumon/internal/search"
	"github.com/hyperjump/shitsumon/internal/storage"
)

func newTestServer(t *testing.T, responses ...string) (http.Handler, *storage.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	_, err = s.DB().Exec(`
		CREATE TABLE employees (id INTEGER PRIMARY KEY, name TEXT, salary INTEGER);
		INSERT INTO employees (name, salary) VALUES ('김철수', 6500000), ('이영희', 5200000);`)
	require.NoError(t, err)

	emb := embedding.NewMockEmbedder(64)
	lex, err := lexicon.New(ctx, s)
	require.NoError(t, err)
	terms := lexicon.NewManager(s, lex, nil)
	_, err = terms.SeedDefaults(ctx)
	require.NoError(t, err)
	enh, err := schema.New(ctx, storage.NewCatalog(s.DB(), storage.InternalTables...), s)
	require.NoError(t, err)
	chunker, err := indexer.NewChunker(indexer.ChunkOptions{MaxSize: 200, Overlap: 20, Strategy: indexer.StrategyParagraph})
	require.NoError(t, err)
	idx := indexer.New(s, emb, chunker, nil)
	hist, err := keyword.NewHistoryIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = hist.Close() })
	bank := examples.NewBank(s, emb)
	retriever := search.NewRetriever(s, emb)

	if len(responses) == 0 {
		responses = []string{"SELECT name FROM employees WHERE salary >= 6000000;"}
	}
	a, err := pipeline.New(pipeline.Components{
		Lexicon:   lex,
		Retriever: retriever,
		Examples:  bank,
		Schema:    enh,
		LLM:       llm.NewScripted(responses...),
		Executor:  executor.New(s.DB()),
		History:   executor.NewHistoryLogger(s, hist, nil),
	})
	require.NoError(t, err)

	srv := NewServer(Deps{
		Assistant:    a,
		Terms:        terms,
		Examples:     bank,
		Schema:       enh,
		Indexer:      idx,
		Retriever:    retriever,
		Store:        s,
		HistoryIndex: hist,
	}, &config.ServerConfig{MaxUploadMB: 1}, nil)
	return srv.Router(), s
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestAsk(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/ask", models.AskRequest{Question: "급여가 6000000원 이상인 직원"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res pipeline.AskResult
	decode(t, w, &res)
	assert.True(t, res.Success)
	assert.Contains(t, res.Normalized, "salary")
	require.NotNil(t, res.Result)
	assert.Equal(t, 1, res.Result.RowCount)

	w = do(t, h, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		History []models.QueryHistoryRecord `json:"history"`
	}
	decode(t, w, &hist)
	require.Len(t, hist.History, 1)
	assert.True(t, hist.History[0].Success)

	w = do(t, h, http.MethodGet, "/api/v1/history/search?q=employees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &hist)
	assert.Len(t, hist.History, 1)

	w = do(t, h, http.MethodGet, "/api/v1/history/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats models.HistoryStats
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.Total)
}

func TestErrorStatuses(t *testing.T) {
	h, _ := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"empty question", http.MethodPost, "/api/v1/ask", models.AskRequest{}, http.StatusBadRequest},
		{"bad sql", http.MethodPost, "/api/v1/execute", executeRequest{SQL: "SELECT * FROM nowhere"}, http.StatusUnprocessableEntity},
		{"missing sql", http.MethodPost, "/api/v1/execute", executeRequest{}, http.StatusBadRequest},
		{"missing term", http.MethodDelete, "/api/v1/terms/999", nil, http.StatusNotFound},
		{"bad id", http.MethodDelete, "/api/v1/terms/abc", nil, http.StatusBadRequest},
		{"invalid term", http.MethodPost, "/api/v1/terms", models.TermMapping{BusinessTerm: "x"}, http.StatusBadRequest},
		{"unknown table", http.MethodGet, "/api/v1/schema?table=nope", nil, http.StatusNotFound},
		{"search without query", http.MethodGet, "/api/v1/documents/search", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			var e ErrResponse
			decode(t, w, &e)
			assert.NotEmpty(t, e.ErrorText)
		})
	}
}

func TestExecute(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/execute", executeRequest{SQL: "SELECT COUNT(*) AS n FROM employees"})
	require.Equal(t, http.StatusOK, w.Code)
	var res models.QueryResult
	decode(t, w, &res)
	assert.Equal(t, []string{"n"}, res.Columns)
	assert.EqualValues(t, 2, res.Rows[0]["n"])
}

func TestTerms(t *testing.T) {
	h, _ := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/v1/terms", models.TermMapping{BusinessTerm: "성과급", TechnicalTerm: "bonus", Category: "hr"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.TermMapping
	decode(t, w, &created)
	require.NotZero(t, created.ID)

	w = do(t, h, http.MethodPost, "/api/v1/terms/normalize", normalizeRequest{Query: "성과급 합계"})
	require.Equal(t, http.StatusOK, w.Code)
	var norm struct {
		Normalized string `json:"normalized"`
	}
	decode(t, w, &norm)
	assert.Equal(t, "bonus 합계", norm.Normalized)

	w = do(t, h, http.MethodPut, fmt.Sprintf("/api/v1/terms/%d", created.ID),
		models.TermMapping{BusinessTerm: "성과급", TechnicalTerm: "incentive", Category: "hr"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/v1/terms?q=incentive", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Terms []models.TermMapping `json:"terms"`
	}
	decode(t, w, &list)
	require.Len(t, list.Terms, 1)

	w = do(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/terms/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExamples(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPost, "/api/v1/examples", models.QueryExample{
		NaturalLanguageQuery: "직원 수",
		SQLQuery:             "SELECT COUNT(*) FROM employees",
		QueryCategory:        "hr",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ex models.QueryExample
	decode(t, w, &ex)
	assert.Equal(t, models.DifficultyMedium, ex.Difficulty)

	w = do(t, h, http.MethodGet, "/api/v1/examples?category=hr", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Examples []models.QueryExample `json:"examples"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Examples, 1)

	w = do(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/examples/%d", ex.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSchema(t *testing.T) {
	h, _ := newTestServer(t)
	w := do(t, h, http.MethodPut, "/api/v1/schema/columns", models.ColumnDescription{
		TableName: "employees", ColumnName: "salary", Description: "월 급여", BusinessMeaning: "급여",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/v1/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		Tables  []models.Table `json:"tables"`
		Context string         `json:"context"`
	}
	decode(t, w, &out)
	require.Len(t, out.Tables, 1)
	assert.Contains(t, out.Context, "월 급여")
}

func upload(t *testing.T, h http.Handler, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("category", "hr"))
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestDocuments(t *testing.T) {
	h, _ := newTestServer(t)

	w := upload(t, h, "policy.txt", "급여는 매월 25일에 지급된다.\n\n성과급은 연말에 지급된다.")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res indexer.IngestResult
	decode(t, w, &res)
	require.NotEmpty(t, res.DocumentIDs)

	w = upload(t, h, "virus.exe", "MZ")
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = do(t, h, http.MethodGet, "/api/v1/documents/search?q="+url.QueryEscape("급여")+"&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sr models.SearchResponse
	decode(t, w, &sr)
	assert.NotEmpty(t, sr.Results)

	w = do(t, h, http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Documents []models.Document `json:"documents"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Documents, len(res.DocumentIDs))

	w = do(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", res.DocumentIDs[0]), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", res.DocumentIDs[0]), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/v1/documents", models.DocumentInput{Title: "메모", Content: "휴가 규정"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}
