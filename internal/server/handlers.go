package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/indexer"
	"github.com/hyperjump/shitsumon/internal/keyword"
	"github.com/hyperjump/shitsumon/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.fail(w, r, "health", err)
		return
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question))
	res, err := s.deps.Assistant.Ask(r.Context(), req)
	if err != nil {
		s.fail(w, r, "ask", err)
		return
	}
	render.JSON(w, r, res)
}

type executeRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		_ = render.Render(w, r, ErrInvalidRequest(errors.New("sql is required")))
		return
	}
	res, err := s.deps.Assistant.Execute(r.Context(), req.SQL)
	if err != nil {
		s.fail(w, r, "execute", err)
		return
	}
	render.JSON(w, r, res)
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", 50)
	recs, err := s.deps.Store.RecentHistory(r.Context(), limit)
	if err != nil {
		s.fail(w, r, "history list", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"history": recs})
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Store.HistoryStats(r.Context())
	if err != nil {
		s.fail(w, r, "history stats", err)
		return
	}
	render.JSON(w, r, stats)
}

func (s *Server) handleHistorySearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.HistoryIndex == nil {
		_ = render.Render(w, r, errResponse(http.StatusNotImplemented, errors.New("history search not enabled")))
		return
	}
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		_ = render.Render(w, r, ErrInvalidRequest(errors.New("q is required")))
		return
	}
	opts := &keyword.SearchOptions{QuestionBoost: 2, FuzzyEnabled: r.URL.Query().Get("fuzzy") == "true"}
	hits, err := s.deps.HistoryIndex.Search(r.Context(), q, intParam(r, "limit", 20), opts)
	if err != nil {
		s.fail(w, r, "history search", err)
		return
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	recs, err := s.deps.Store.HistoryByIDs(r.Context(), ids)
	if err != nil {
		s.fail(w, r, "history search", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"query": q, "history": recs})
}

func (s *Server) handleTermsList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	var (
		terms []*models.TermMapping
		err   error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		terms, err = s.deps.Terms.Search(r.Context(), q, category)
	} else {
		terms, err = s.deps.Terms.List(r.Context(), category)
	}
	if err != nil {
		s.fail(w, r, "terms list", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"terms": terms})
}

func (s *Server) handleTermsAdd(w http.ResponseWriter, r *http.Request) {
	var t models.TermMapping
	if err := render.DecodeJSON(r.Body, &t); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := s.deps.Terms.Add(r.Context(), &t); err != nil {
		s.fail(w, r, "terms add", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, t)
}

func (s *Server) handleTermsUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	var t models.TermMapping
	if err := render.DecodeJSON(r.Body, &t); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	t.ID = id
	if err := s.deps.Terms.Update(r.Context(), &t); err != nil {
		s.fail(w, r, "terms update", err)
		return
	}
	render.JSON(w, r, t)
}

func (s *Server) handleTermsDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Terms.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "terms delete", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"id": id, "status": "deleted"})
}

type normalizeRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleTermsNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	lex := s.deps.Terms.Lexicon()
	normalized, applied := lex.Normalize(req.Query)
	if applied == nil {
		applied = []models.AppliedMapping{}
	}
	render.JSON(w, r, map[string]interface{}{
		"query":         req.Query,
		"normalized":    normalized,
		"mappings":      applied,
		"unknown_terms": lex.DetectUnknownTerms(req.Query),
	})
}

func (s *Server) handleExamplesList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	category := r.URL.Query().Get("category")
	var (
		exs []*models.QueryExample
		err error
	)
	if q != "" || category != "" {
		exs, err = s.deps.Examples.Search(r.Context(), q, category, intParam(r, "limit", 20))
	} else {
		exs, err = s.deps.Examples.List(r.Context())
	}
	if err != nil {
		s.fail(w, r, "examples list", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"examples": exs})
}

func (s *Server) handleExamplesAdd(w http.ResponseWriter, r *http.Request) {
	var ex models.QueryExample
	if err := render.DecodeJSON(r.Body, &ex); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := s.deps.Examples.Add(r.Context(), &ex); err != nil {
		s.fail(w, r, "examples add", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, ex)
}

func (s *Server) handleExamplesDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Examples.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "examples delete", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"id": id, "status": "deleted"})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if table := r.URL.Query().Get("table"); table != "" {
		text, err := s.deps.Schema.EnhancedContext(ctx, table)
		if err != nil {
			s.fail(w, r, "schema", err)
			return
		}
		render.JSON(w, r, map[string]interface{}{"table": table, "context": text})
		return
	}
	enhanced := r.URL.Query().Get("enhanced") != "false"
	render.JSON(w, r, map[string]interface{}{
		"tables":  s.deps.Schema.Tables(),
		"context": s.deps.Schema.Context(ctx, enhanced),
	})
}

func (s *Server) handleSchemaColumns(w http.ResponseWriter, r *http.Request) {
	var d models.ColumnDescription
	if err := render.DecodeJSON(r.Body, &d); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if err := s.deps.Schema.DescribeColumn(r.Context(), &d); err != nil {
		s.fail(w, r, "describe column", err)
		return
	}
	render.JSON(w, r, d)
}

func (s *Server) handleDocumentsList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.deps.Store.ListDocuments(r.Context(), intParam(r, "offset", 0), intParam(r, "limit", 50))
	if err != nil {
		s.fail(w, r, "documents list", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"documents": docs})
}

// handleDocumentsAdd accepts a multipart upload in the "file" field, or a JSON document.
func (s *Server) handleDocumentsAdd(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var in models.DocumentInput
		if err := render.DecodeJSON(r.Body, &in); err != nil {
			_ = render.Render(w, r, ErrInvalidRequest(err))
			return
		}
		doc, err := s.deps.Indexer.AddDocument(r.Context(), &in)
		if err != nil {
			s.fail(w, r, "add document", err)
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, doc)
		return
	}

	maxBytes := s.config.MaxUploadMB << 20
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxUploadMB << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(fmt.Errorf("invalid upload: %w", err)))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(fmt.Errorf("file field is required: %w", err)))
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	s.logger.Debug("upload", zap.String("filename", header.Filename), zap.Int("bytes", len(content)))
	res, err := s.deps.Indexer.IngestBytes(r.Context(), header.Filename, content, indexer.IngestOptions{
		Category: r.FormValue("category"),
	})
	if err != nil {
		s.fail(w, r, "upload", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, res)
}

func (s *Server) handleDocumentsSearch(w http.ResponseWriter, r *http.Request) {
	q := &models.SearchQuery{Query: r.URL.Query().Get("q"), Limit: intParam(r, "limit", 3)}
	if t := r.URL.Query().Get("threshold"); t != "" {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			_ = render.Render(w, r, ErrInvalidRequest(fmt.Errorf("threshold: %w", err)))
			return
		}
		q.Threshold = &v
	}
	resp, err := s.deps.Retriever.Search(r.Context(), q)
	if err != nil {
		s.fail(w, r, "documents search", err)
		return
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleDocumentsDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Store.DeleteDocument(r.Context(), id); err != nil {
		s.fail(w, r, "documents delete", err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"id": id, "status": "deleted"})
}

func (s *Server) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		_ = render.Render(w, r, ErrInvalidRequest(fmt.Errorf("invalid id %q", chi.URLParam(r, "id"))))
		return 0, false
	}
	return id, true
}

func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}
