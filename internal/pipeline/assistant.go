// Package pipeline runs a question through normalization, retrieval, prompting, the
// language model, extraction, execution and logging.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/chart"
	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/examples"
	"github.com/hyperjump/shitsumon/internal/lexicon"
	"github.com/hyperjump/shitsumon/internal/llm"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/prompt"
	"github.com/hyperjump/shitsumon/internal/sqlextract"
)

// Normalizer rewrites business vocabulary into schema vocabulary.
type Normalizer interface {
	Normalize(query string) (string, []models.AppliedMapping)
	DetectUnknownTerms(query string) []lexicon.UnknownTerm
}

// DocumentRetriever finds documents related to a question.
type DocumentRetriever interface {
	FindSimilar(ctx context.Context, query string, k int, threshold *float64) (*models.SearchResponse, error)
}

// ExampleFinder supplies few-shot examples and learns from their outcomes.
type ExampleFinder interface {
	FindSimilar(ctx context.Context, question string, k int, threshold float64) ([]models.ScoredExample, string, error)
	RecordOutcome(ctx context.Context, id int64, success bool) (*models.QueryExample, error)
}

// SchemaDescriber renders the target database schema for the prompt.
type SchemaDescriber interface {
	Context(ctx context.Context, enhanced bool) string
}

// Executor runs SQL.
type Executor interface {
	Execute(ctx context.Context, sql string) (*models.QueryResult, error)
}

// HistoryRecorder logs outcomes. It must never fail the request.
type HistoryRecorder interface {
	Log(ctx context.Context, rec *models.QueryHistoryRecord)
}

// Components are the collaborators of an Assistant. LLM and Executor are required; any
// other nil component switches its stage off.
type Components struct {
	Lexicon   Normalizer
	Retriever DocumentRetriever
	Examples  ExampleFinder
	Schema    SchemaDescriber
	LLM       llm.Client
	Executor  Executor
	History   HistoryRecorder
}

// AskResult is everything one question produced.
type AskResult struct {
	RequestID     string                  `json:"request_id"`
	Question      string                  `json:"question"`
	Normalized    string                  `json:"normalized_question"`
	Mappings      []models.AppliedMapping `json:"mappings"`
	UnknownTerms  []lexicon.UnknownTerm   `json:"unknown_terms,omitempty"`
	Documents     []*models.SearchResult  `json:"documents"`
	RetrievalMode string                  `json:"retrieval_mode,omitempty"`
	Examples      []models.ScoredExample  `json:"examples"`
	Prompt        string                  `json:"prompt,omitempty"`
	RawResponse   string                  `json:"raw_response,omitempty"`
	SQL           string                  `json:"sql"`
	StatementType string                  `json:"statement_type,omitempty"`
	Result        *models.QueryResult     `json:"result,omitempty"`
	Chart         *chart.Chart            `json:"chart,omitempty"`
	Success       bool                    `json:"success"`
	Error         string                  `json:"error,omitempty"`
	ElapsedMS     int64                   `json:"elapsed_ms"`
}

// Assistant answers natural-language questions with SQL.
type Assistant struct {
	c Components

	topK             int
	threshold        *float64
	exampleK         int
	exampleThreshold float64
	enhancedSchema   bool
	charts           bool
	dialect          string
	keepPrompt       bool
	logger           *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRetrieval sets how many documents are retrieved and the minimum similarity.
func WithRetrieval(k int, threshold *float64) Option {
	return func(a *Assistant) {
		if k > 0 {
			a.topK = k
		}
		a.threshold = threshold
	}
}

// WithExamples sets how many few-shot examples are used and their minimum similarity.
func WithExamples(k int, threshold float64) Option {
	return func(a *Assistant) {
		if k > 0 {
			a.exampleK = k
		}
		a.exampleThreshold = threshold
	}
}

// WithEnhancedSchema describes the schema with column descriptions and sample rows.
func WithEnhancedSchema(on bool) Option {
	return func(a *Assistant) { a.enhancedSchema = on }
}

// WithCharts draws a chart for every successful result, not only when asked.
func WithCharts(on bool) Option {
	return func(a *Assistant) { a.charts = on }
}

// WithDialect names the SQL dialect in the prompt.
func WithDialect(d string) Option {
	return func(a *Assistant) {
		if d != "" {
			a.dialect = d
		}
	}
}

// WithPromptInResult copies the prompt into every AskResult.
func WithPromptInResult(on bool) Option {
	return func(a *Assistant) { a.keepPrompt = on }
}

// New returns an assistant over c.
func New(c Components, opts ...Option) (*Assistant, error) {
	if c.LLM == nil {
		return nil, models.NewConfigurationError("llm", "a language model client is required")
	}
	if c.Executor == nil {
		return nil, models.NewConfigurationError("executor", "an executor is required")
	}
	a := &Assistant{
		c:                c,
		topK:             3,
		exampleK:         3,
		exampleThreshold: 0.5,
		enhancedSchema:   true,
		dialect:          prompt.DefaultDialect,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Ask answers req. The returned error is only for an invalid request: an unreachable
// model or a rejected statement yields a result with Success false and Error set, and is
// still written to the history.
func (a *Assistant) Ask(ctx context.Context, req models.AskRequest) (*AskResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	res := &AskResult{
		RequestID:  uuid.NewString(),
		Question:   req.Question,
		Normalized: req.Question,
		Mappings:   []models.AppliedMapping{},
		Documents:  []*models.SearchResult{},
		Examples:   []models.ScoredExample{},
	}
	log := a.logger.With(zap.String("request_id", res.RequestID))

	if a.c.Lexicon != nil && config.On(req.UseLexicon) {
		res.Normalized, res.Mappings = a.c.Lexicon.Normalize(req.Question)
		if res.Mappings == nil {
			res.Mappings = []models.AppliedMapping{}
		}
		res.UnknownTerms = a.c.Lexicon.DetectUnknownTerms(req.Question)
		log.Debug("question normalized", zap.String("normalized", res.Normalized), zap.Int("mappings", len(res.Mappings)))
	}

	if a.c.Retriever != nil && config.On(req.UseRAG) {
		k, threshold := a.topK, a.threshold
		if req.TopK > 0 {
			k = req.TopK
		}
		if req.Threshold != nil {
			threshold = req.Threshold
		}
		resp, err := a.c.Retriever.FindSimilar(ctx, res.Normalized, k, threshold)
		if err != nil {
			log.Warn("document retrieval failed, continuing without context", zap.Error(err))
		} else {
			res.Documents = resp.Results
			res.RetrievalMode = resp.Mode
		}
	}

	if a.c.Examples != nil && config.On(req.UseExample) {
		exs, _, err := a.c.Examples.FindSimilar(ctx, res.Normalized, a.exampleK, a.exampleThreshold)
		if err != nil {
			log.Warn("example lookup failed, continuing without examples", zap.Error(err))
		} else {
			res.Examples = exs
		}
	}

	var schema string
	if a.c.Schema != nil {
		schema = a.c.Schema.Context(ctx, a.enhancedSchema)
	}
	text := prompt.Build(prompt.Input{
		Question:  res.Normalized,
		Schema:    schema,
		Documents: res.Documents,
		Mappings:  res.Mappings,
		FewShot:   examples.FormatFewShot(res.Examples),
		Dialect:   a.dialect,
	})
	if a.keepPrompt {
		res.Prompt = text
	}

	raw, err := a.c.LLM.Generate(ctx, text)
	if err != nil {
		log.Error("language model failed", zap.Error(err))
		res.Error = "SQL generation failed: " + err.Error()
		a.finish(ctx, res, start, 0)
		return res, nil
	}
	res.RawResponse = raw

	sql, err := sqlextract.Find(raw)
	if errors.Is(err, models.ErrNoSQLFound) {
		log.Warn("no SQL statement in model response, executing it verbatim")
	}
	res.SQL = sql
	res.StatementType = sqlextract.Kind(sql)

	var execMS int64
	qr, err := a.c.Executor.Execute(ctx, sql)
	if err != nil {
		log.Warn("generated SQL failed", zap.String("sql", sql), zap.Error(err))
		res.Error = err.Error()
	} else {
		res.Success = true
		res.Result = qr
		execMS = qr.ElapsedMS
		if req.Chart || a.charts {
			if c := chart.Auto(qr); c.Kind != chart.KindNone {
				res.Chart = c
			}
		}
	}
	a.recordOutcomes(ctx, log, res)
	a.finish(ctx, res, start, execMS)
	return res, nil
}

// Execute runs sql directly and logs it with the statement itself as the question.
func (a *Assistant) Execute(ctx context.Context, sql string) (*models.QueryResult, error) {
	qr, err := a.c.Executor.Execute(ctx, sql)
	rec := &models.QueryHistoryRecord{NaturalQuery: sql, GeneratedSQL: sql}
	if err != nil {
		msg := err.Error()
		rec.ErrorMessage = &msg
	} else {
		rec.Success = true
		rec.ExecutionTimeMS = qr.ElapsedMS
		rec.ResultCount = qr.RowCount
	}
	if a.c.History != nil {
		a.c.History.Log(ctx, rec)
	}
	return qr, err
}

func (a *Assistant) recordOutcomes(ctx context.Context, log *zap.Logger, res *AskResult) {
	if a.c.Examples == nil {
		return
	}
	for _, ex := range res.Examples {
		if ex.Example == nil {
			continue
		}
		if _, err := a.c.Examples.RecordOutcome(ctx, ex.Example.ID, res.Success); err != nil {
			log.Warn("failed to update example stats", zap.Int64("example_id", ex.Example.ID), zap.Error(err))
		}
	}
}

func (a *Assistant) finish(ctx context.Context, res *AskResult, start time.Time, execMS int64) {
	res.ElapsedMS = time.Since(start).Milliseconds()
	if a.c.History == nil {
		return
	}
	rec := &models.QueryHistoryRecord{
		NaturalQuery:    res.Question,
		GeneratedSQL:    res.SQL,
		Success:         res.Success,
		ExecutionTimeMS: execMS,
	}
	if res.Result != nil {
		rec.ResultCount = res.Result.RowCount
	}
	if res.Error != "" {
		msg := res.Error
		rec.ErrorMessage = &msg
	}
	a.c.History.Log(ctx, rec)
}
